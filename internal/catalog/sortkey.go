package catalog

import (
	"strings"

	"golang.org/x/text/cases"
)

var sortFolder = cases.Fold()

var leadingArticles = []string{"the ", "a ", "an "}

// SortKey derives the case-folded sort key for an artist name, stripping a
// leading English article so "The Beatles" sorts under B.
func SortKey(artist string) string {
	key := sortFolder.String(strings.TrimSpace(artist))
	for _, article := range leadingArticles {
		if strings.HasPrefix(key, article) && len(key) > len(article) {
			key = key[len(article):]
			break
		}
	}
	return strings.TrimSpace(key)
}
