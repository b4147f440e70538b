// Package parser extracts structured article content from raw HTML and runs
// extraction on an isolated worker pool so a pathological page cannot take
// down the orchestrator.
package parser

import (
	"errors"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/gdeltlens/news-pipeline/internal/news"
)

const (
	minParagraphRunes = 25
	keywordCount      = 10
	summarySentences  = 5
)

// Extract parses HTML into a ParsedArticle: title, body text, a
// frequency-scored summary, and keywords.
func Extract(url, html string) (news.ParsedArticle, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return news.ParsedArticle{}, err
	}

	doc.Find("script,style,noscript,nav,header,footer,aside,form,iframe").Remove()

	title := extractTitle(doc)
	text := extractText(doc)
	if text == "" && title == "" {
		return news.ParsedArticle{}, errors.New("no extractable content")
	}

	keywords := Keywords(title, text, keywordCount)
	summary := Summarize(title, text, summarySentences)

	return news.ParsedArticle{
		Title:    title,
		Text:     text,
		Summary:  summary,
		Keywords: keywords,
	}, nil
}

func extractTitle(doc *goquery.Document) string {
	if og, ok := doc.Find(`meta[property="og:title"]`).Attr("content"); ok {
		if t := strings.TrimSpace(og); t != "" {
			return t
		}
	}
	if t := strings.TrimSpace(doc.Find("title").First().Text()); t != "" {
		return t
	}
	return strings.TrimSpace(doc.Find("h1").First().Text())
}

// extractText joins the substantive paragraph nodes. Short paragraphs are
// boilerplate more often than content and are dropped.
func extractText(doc *goquery.Document) string {
	var paragraphs []string
	doc.Find("p").Each(func(_ int, s *goquery.Selection) {
		p := strings.Join(strings.Fields(s.Text()), " ")
		if len([]rune(p)) >= minParagraphRunes {
			paragraphs = append(paragraphs, p)
		}
	})
	return strings.Join(paragraphs, "\n\n")
}
