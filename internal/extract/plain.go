package extract

import (
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
)

// PlainExtractor strips HTML with regular expressions. Cruder than the
// goquery strategy but tolerant of malformed markup; used as the fallback.
type PlainExtractor struct{}

// NewPlainExtractor creates a PlainExtractor.
func NewPlainExtractor() *PlainExtractor {
	return &PlainExtractor{}
}

func (p *PlainExtractor) Name() string { return "plain" }

var (
	titleRe = regexp.MustCompile(`(?i)<title[^>]*>(.*?)</title>`)
	tagRe   = regexp.MustCompile(`<[^>]+>`)
	spaceRe = regexp.MustCompile(`[ \t]+`)
	nlRe    = regexp.MustCompile(`\n{3,}`)

	blockRes = []*regexp.Regexp{
		regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`),
		regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`),
		regexp.MustCompile(`(?is)<nav[^>]*>.*?</nav>`),
		regexp.MustCompile(`(?is)<footer[^>]*>.*?</footer>`),
	}
)

func (p *PlainExtractor) Extract(body []byte) (*Content, error) {
	var title string
	if m := titleRe.FindSubmatch(body); len(m) > 1 {
		title = strings.TrimSpace(string(m[1]))
	}

	html := string(body)
	for _, re := range blockRes {
		html = re.ReplaceAllString(html, "")
	}
	html = tagRe.ReplaceAllString(html, " ")

	html = strings.NewReplacer(
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
		"&#39;", "'",
		"&nbsp;", " ",
	).Replace(html)

	html = spaceRe.ReplaceAllString(html, " ")
	html = nlRe.ReplaceAllString(html, "\n\n")

	text := strings.TrimSpace(html)
	if text == "" {
		return nil, eris.New("plain: empty page")
	}

	return &Content{Title: title, Text: text}, nil
}
