package crawler

import (
	"bytes"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
)

// staticExtensions are never worth fetching.
var staticExtensions = []string{
	".css", ".js", ".pdf", ".jpg", ".jpeg", ".png", ".gif", ".svg",
	".ico", ".woff", ".woff2", ".ttf", ".eot",
}

// NormalizeURL validates a seed URL and returns its canonical form. A bare
// host gets an https scheme. An unparseable URL or one without a host is a
// configuration error.
func NormalizeURL(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, eris.New("crawler: empty url")
	}
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, eris.Wrapf(err, "crawler: parse url %q", raw)
	}
	if u.Host == "" {
		return nil, eris.Errorf("crawler: url %q has no host", raw)
	}

	u.Fragment = ""
	u.RawQuery = ""
	if u.Path == "" {
		u.Path = "/"
	}
	return u, nil
}

// CleanURL normalizes a discovered link: fragment and query stripped,
// trailing slash removed (except for the bare root).
func CleanURL(u *url.URL) string {
	c := *u
	c.Fragment = ""
	c.RawQuery = ""
	if c.Path != "/" {
		c.Path = strings.TrimSuffix(c.Path, "/")
	}
	return c.String()
}

// ExtractLinks pulls same-host outbound links from an HTML body, resolved
// absolute, cleaned, and deduplicated in document order.
func ExtractLinks(base *url.URL, body []byte) []string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil
	}

	seen := make(map[string]struct{})
	var links []string

	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") ||
			strings.HasPrefix(href, "javascript:") || strings.HasPrefix(href, "mailto:") {
			return
		}

		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		abs := base.ResolveReference(ref)
		if abs.Host != base.Host {
			return
		}
		if hasStaticExtension(abs.Path) {
			return
		}

		clean := CleanURL(abs)
		if _, dup := seen[clean]; dup {
			return
		}
		seen[clean] = struct{}{}
		links = append(links, clean)
	})

	return links
}

func hasStaticExtension(path string) bool {
	lower := strings.ToLower(path)
	for _, ext := range staticExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}
