package htmlutil

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
)

func TestGetText(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(
		`<div class="name"><span>맨유</span> <span class="inner">레전드</span></div>`,
	))
	require.NoError(t, err)

	sel := doc.Find(".name")
	require.Len(t, sel.Nodes, 1)
	require.Equal(t, "맨유 레전드", GetText(sel.Nodes[0]))

	require.Equal(t, "", GetText(nil))
}

func TestCleanTextNestedNodes(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(
		`<div class="td team_color">
			<span class="name"><span class="inner">  리버풀
				(20-21)</span></span>
		</div>`,
	))
	require.NoError(t, err)

	require.Equal(t, "리버풀 (20-21)", CleanText(doc.Find(".team_color .name")))
}

func TestCleanText(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(
		`<div class="name">  맨유
			레전드  </div>`,
	))
	require.NoError(t, err)

	require.Equal(t, "맨유 레전드", CleanText(doc.Find(".name")))
}

func TestStripParentheticals(t *testing.T) {
	require.Equal(t, "리버풀", StripParentheticals("리버풀 (20-21)"))
	require.Equal(t, "arsenal", StripParentheticals("arsenal(legacy)(old)"))
	require.Equal(t, "no groups", StripParentheticals("no groups"))
}

func TestDigitsOnly(t *testing.T) {
	require.Equal(t, "123456789000", DigitsOnly("123,456,789,000"))
	require.Equal(t, "", DigitsOnly("bp"))
}
