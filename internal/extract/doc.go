package extract

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
)

// DocExtractor parses HTML with goquery, removes boilerplate elements, and
// returns the text of the main content area.
type DocExtractor struct{}

// NewDocExtractor creates a DocExtractor.
func NewDocExtractor() *DocExtractor {
	return &DocExtractor{}
}

func (d *DocExtractor) Name() string { return "goquery" }

func (d *DocExtractor) Extract(body []byte) (*Content, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "goquery: parse")
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())

	doc.Find("script, style, nav, footer, noscript").Remove()

	text := collapseWhitespace(doc.Find("body").Text())
	if text == "" {
		return nil, eris.New("goquery: empty page")
	}

	return &Content{Title: title, Text: text}, nil
}

// collapseWhitespace joins non-empty lines with single spaces between words.
func collapseWhitespace(s string) string {
	var b strings.Builder
	for _, line := range strings.Split(s, "\n") {
		for _, field := range strings.Fields(line) {
			if b.Len() > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(field)
		}
	}
	return b.String()
}
