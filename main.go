// Package main is the entry point for the news-pipeline binary.
package main

import "github.com/gdeltlens/news-pipeline/cmd"

func main() {
	cmd.Execute()
}
