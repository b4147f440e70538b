package parser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKeywordsFrequencyOrder(t *testing.T) {
	t.Parallel()

	text := "storm storm storm surge surge levee levee levee levee the and of"
	keywords := Keywords("", text, 3)

	require.Equal(t, []string{"levee", "storm", "surge"}, keywords)
}

func TestKeywordsSkipsStopwordsAndShortTokens(t *testing.T) {
	t.Parallel()

	keywords := Keywords("the a an", "it is to of by ab cd xyz", 10)
	require.Equal(t, []string{"xyz"}, keywords)
}

func TestKeywordsTiesAlphabetical(t *testing.T) {
	t.Parallel()

	keywords := Keywords("", "zebra apple mango", 3)
	require.Equal(t, []string{"apple", "mango", "zebra"}, keywords)
}

func TestSummarizeShortTextReturnedWhole(t *testing.T) {
	t.Parallel()

	text := "One sentence here. Another sentence there."
	require.Equal(t, "One sentence here. Another sentence there.", Summarize("title", text, 5))
}

func TestSummarizeSelectsTopSentencesInOrder(t *testing.T) {
	t.Parallel()

	sentences := []string{
		"The flood covered the town and the flood kept rising.",
		"Nothing notable happened elsewhere.",
		"Flood waters and flood damage dominated the flood reporting.",
		"A cat sat quietly.",
		"Officials monitored the flood levels around the flood plain.",
	}
	text := strings.Join(sentences, " ")

	summary := Summarize("Flood report", text, 2)

	require.Contains(t, summary, "flood reporting")
	require.NotContains(t, summary, "cat sat")
	require.NotContains(t, summary, "Nothing notable")
	// Document order is preserved regardless of score order.
	first := strings.Index(summary, "flood reporting")
	second := strings.Index(summary, "flood levels")
	if second >= 0 && first >= 0 {
		require.Less(t, first, second)
	}
}

func TestSummarizeEmptyText(t *testing.T) {
	t.Parallel()

	require.Equal(t, "", Summarize("title", "", 5))
}

func TestSplitSentences(t *testing.T) {
	t.Parallel()

	got := splitSentences(`First one. Second one! Third one? "Quoted end." Trailing fragment`)
	require.Equal(t, []string{
		"First one.",
		"Second one!",
		"Third one?",
		`"Quoted end."`,
		"Trailing fragment",
	}, got)
}
