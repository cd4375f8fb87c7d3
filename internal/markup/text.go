package markup

import (
	"html"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Escape makes feed-provided text safe to embed in a message body.
func Escape(s string) string {
	return html.EscapeString(s)
}

// Link renders an allowed hyperlink tag.
func Link(href, text string) string {
	return `<a href="` + html.EscapeString(href) + `">` + Escape(text) + `</a>`
}

// PlainText renders HTML as plain text, keeping line breaks. Hyperlinks
// become "text (href)".
func PlainText(s string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<body>" + s + "</body>"))
	if err != nil {
		return s
	}

	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		text := a.Text()
		if href != "" && href != text {
			a.SetText(text + " (" + href + ")")
		}
	})
	doc.Find("br").ReplaceWithHtml("\n")
	doc.Find("p, div, li").Each(func(_ int, el *goquery.Selection) {
		el.AppendHtml("\n")
	})

	return strings.TrimSpace(doc.Find("body").Text())
}
