package utils

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// punctuationRegex matches everything that is not a letter, digit, underscore or space
var punctuationRegex = regexp.MustCompile(`[^\p{L}\p{N}_\s]`)

var leadingArticles = map[string]bool{
	"the": true,
	"a":   true,
	"an":  true,
}

// NormalizeTitle prepares a title for comparison: lower-case, punctuation removed,
// whitespace collapsed and leading articles dropped. When only articles remain the
// cleaned title is kept as is. Normalizing a normalized title is a no-op.
func NormalizeTitle(title string) string {
	if title == "" {
		return ""
	}

	cleaned := cases.Lower(language.Und).String(title)
	cleaned = punctuationRegex.ReplaceAllString(cleaned, "")
	words := strings.Fields(cleaned)

	i := 0
	for i < len(words) && leadingArticles[words[i]] {
		i++
	}
	if i == len(words) {
		return strings.Join(words, " ")
	}

	return strings.Join(words[i:], " ")
}

// TitleSimilarity scores two titles between 0 and 1 from the edit distance of their
// normalized forms. It is only used for diagnostics.
func TitleSimilarity(a, b string) float64 {
	na, nb := NormalizeTitle(a), NormalizeTitle(b)
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return 1
	}

	longest := utf8.RuneCountInString(na)
	if n := utf8.RuneCountInString(nb); n > longest {
		longest = n
	}

	distance := levenshtein.ComputeDistance(na, nb)
	return 1 - float64(distance)/float64(longest)
}
