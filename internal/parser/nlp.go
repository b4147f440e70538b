package parser

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
)

var sentenceExpr = regexp.MustCompile(`[^.!?]+[.!?]+["')\]]*|\S[^.!?]*$`)

var stopwords = buildStopwords(
	"a about above after again against all am an and any are as at be because " +
		"been before being below between both but by can did do does doing down " +
		"during each few for from further had has have having he her here hers " +
		"herself him himself his how i if in into is it its itself just me more " +
		"most my myself no nor not now of off on once only or other our ours " +
		"ourselves out over own said say says she should so some such than that " +
		"the their theirs them themselves then there these they this those " +
		"through to too under until up very was we were what when where which " +
		"while who whom why will with would you your yours yourself yourselves")

func buildStopwords(words string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(words) {
		set[w] = struct{}{}
	}
	return set
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// wordFrequencies counts non-stopword tokens longer than two runes.
func wordFrequencies(text string) map[string]int {
	freq := make(map[string]int)
	for _, tok := range tokenize(text) {
		if len([]rune(tok)) <= 2 {
			continue
		}
		if _, stop := stopwords[tok]; stop {
			continue
		}
		freq[tok]++
	}
	return freq
}

// Keywords returns the n most frequent substantive words from the title and
// body, ties broken alphabetically for determinism.
func Keywords(title, text string, n int) []string {
	freq := wordFrequencies(title + " " + text)
	words := make([]string, 0, len(freq))
	for w := range freq {
		words = append(words, w)
	}
	sort.Slice(words, func(i, j int) bool {
		if freq[words[i]] != freq[words[j]] {
			return freq[words[i]] > freq[words[j]]
		}
		return words[i] < words[j]
	})
	if len(words) > n {
		words = words[:n]
	}
	return words
}

// Summarize picks the highest-scoring sentences (by keyword frequency, title
// words weighted double) and joins them in original document order.
func Summarize(title, text string, maxSentences int) string {
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return ""
	}
	if len(sentences) <= maxSentences {
		return strings.Join(sentences, " ")
	}

	freq := wordFrequencies(text)
	titleWords := make(map[string]struct{})
	for w := range wordFrequencies(title) {
		titleWords[w] = struct{}{}
	}

	type scored struct {
		index int
		score int
	}
	ranked := make([]scored, len(sentences))
	for i, s := range sentences {
		score := 0
		for _, tok := range tokenize(s) {
			score += freq[tok]
			if _, ok := titleWords[tok]; ok {
				score += freq[tok]
			}
		}
		ranked[i] = scored{index: i, score: score}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	keep := make(map[int]struct{}, maxSentences)
	for _, s := range ranked[:maxSentences] {
		keep[s.index] = struct{}{}
	}
	var out []string
	for i, s := range sentences {
		if _, ok := keep[i]; ok {
			out = append(out, s)
		}
	}
	return strings.Join(out, " ")
}

func splitSentences(text string) []string {
	var sentences []string
	for _, m := range sentenceExpr.FindAllString(text, -1) {
		if s := strings.TrimSpace(m); s != "" {
			sentences = append(sentences, s)
		}
	}
	return sentences
}
