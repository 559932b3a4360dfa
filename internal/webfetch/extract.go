package webfetch

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// noise is removed before text extraction.
const noise = "script, style, noscript, template, iframe, svg, nav, header, footer, aside, form"

// extract pulls the title and readable text out of a document. The main
// content region is preferred over the whole body when the page marks one.
func extract(doc *goquery.Document, maxChars int) Page {
	title := strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" {
		title = strings.TrimSpace(doc.Find("h1").First().Text())
	}
	title = strings.Join(strings.Fields(title), " ")

	doc.Find(noise).Remove()

	root := doc.Find("article").First()
	if root.Length() == 0 {
		root = doc.Find("main, [role='main']").First()
	}
	if root.Length() == 0 {
		root = doc.Find("body")
	}

	content, truncated := truncate(collapse(root.Text()), maxChars)
	return Page{Title: title, Content: content, Truncated: truncated}
}

// collapse squeezes runs of whitespace inside each line and drops blank
// lines, keeping line breaks between blocks.
func collapse(text string) string {
	lines := strings.Split(text, "\n")
	out := lines[:0]
	for _, line := range lines {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

func truncate(text string, maxChars int) (string, bool) {
	runes := []rune(text)
	if len(runes) <= maxChars {
		return text, false
	}
	return strings.TrimSpace(string(runes[:maxChars])) + "...", true
}
