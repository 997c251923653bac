package parser

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var blankLinesRegex = regexp.MustCompile(`\n\s*\n+`)

func htmlToPlainText(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}

	doc.Find("script, style, head").Each(func(i int, el *goquery.Selection) {
		el.Remove()
	})
	doc.Find("br").Each(func(i int, el *goquery.Selection) {
		el.ReplaceWithHtml("\n")
	})
	doc.Find("p, div, tr, li").Each(func(i int, el *goquery.Selection) {
		el.AppendHtml("\n")
	})

	text := doc.Find("body").Text()
	text = strings.TrimSpace(text)
	text = blankLinesRegex.ReplaceAllString(text, "\n\n")

	return text, nil
}
