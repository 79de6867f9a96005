package htmlutil

import (
	"bytes"
	"regexp"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

func GetText(node *html.Node) string {
	var buffer bytes.Buffer
	getTextRecursive(node, &buffer)
	return buffer.String()
}

func getTextRecursive(node *html.Node, buffer *bytes.Buffer) {
	if node == nil {
		return
	}
	if node.Type == html.TextNode {
		buffer.WriteString(node.Data)
		return
	}
	child := node.FirstChild
	for child != nil {
		getTextRecursive(child, buffer)
		child = child.NextSibling
	}
}

var innerWhitespace = regexp.MustCompile(`\s\s+`)

func removeNonPrintable(s string) string {
	newStr := strings.Builder{}
	for _, c := range s {
		if unicode.IsPrint(c) {
			newStr.WriteRune(c)
		}
	}
	return newStr.String()
}

// CleanText extracts the trimmed, whitespace-collapsed text of a selection.
func CleanText(sel *goquery.Selection) string {
	var raw strings.Builder
	for _, n := range sel.Nodes {
		raw.WriteString(GetText(n))
	}
	text := removeNonPrintable(raw.String())
	text = strings.Trim(text, " \t\n")
	return innerWhitespace.ReplaceAllString(text, " ")
}

var parenthetical = regexp.MustCompile(`\(.*?\)`)

// StripParentheticals removes every "(...)" group, e.g. the year suffixes
// the leaderboard appends to team labels.
func StripParentheticals(s string) string {
	return strings.TrimSpace(parenthetical.ReplaceAllString(s, ""))
}

var nonDigit = regexp.MustCompile(`[^0-9]`)

// DigitsOnly strips every non-digit rune, leaving a parseable integer
// token (or the empty string).
func DigitsOnly(s string) string {
	return nonDigit.ReplaceAllString(s, "")
}
