package mapping

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// CleanText collapses whitespace runs, non-breaking spaces included.
func CleanText(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	s = strings.Join(strings.Fields(s), " ")
	return strings.TrimSpace(s)
}

var reTag = regexp.MustCompile(`<\s*/?\s*[a-zA-Z][a-zA-Z0-9]*[^<>]*>`)

// CleanRemark reduces HTML pasted in by web forms to plain text. Line breaks
// and block boundaries become newlines; values without markup are returned
// trimmed but otherwise untouched.
func CleanRemark(s string) string {
	s = strings.TrimSpace(s)
	if !reTag.MatchString(s) {
		return s
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return s
	}
	doc.Find("br").ReplaceWithHtml("\n")
	doc.Find("p, div, li, tr").Each(func(_ int, sel *goquery.Selection) {
		sel.AppendHtml("\n")
	})
	doc.Find("script, style").Remove()

	var lines []string
	for _, ln := range strings.Split(doc.Text(), "\n") {
		if ln = CleanText(ln); ln != "" {
			lines = append(lines, ln)
		}
	}
	return strings.Join(lines, "\n")
}
