package crawler

import (
	"net/url"
	"path"
	"strings"
)

// PathMatcher filters URLs against glob-style exclude patterns from the
// crawl configuration (e.g. "/careers/*", "/*.pdf"). A pattern ending in
// "/*" also matches deeper paths, so "/careers/*" excludes
// "/careers/a/b/c".
type PathMatcher struct {
	patterns []string
}

// NewPathMatcher creates a PathMatcher. With no patterns nothing is excluded.
func NewPathMatcher(patterns []string) *PathMatcher {
	return &PathMatcher{patterns: patterns}
}

// IsExcluded checks whether a URL matches any exclude pattern. An
// unparseable URL is excluded.
func (m *PathMatcher) IsExcluded(rawURL string) bool {
	if len(m.patterns) == 0 {
		return false
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return true
	}

	urlPath := strings.ToLower(u.Path)
	for _, pattern := range m.patterns {
		if matchSegmented(strings.ToLower(pattern), urlPath) {
			return true
		}
	}
	return false
}

func matchSegmented(pattern, urlPath string) bool {
	if ok, _ := path.Match(pattern, urlPath); ok {
		return true
	}
	if strings.HasSuffix(pattern, "/*") {
		prefix := strings.TrimSuffix(pattern, "/*")
		if urlPath == prefix || strings.HasPrefix(urlPath, prefix+"/") {
			return true
		}
	}
	return false
}
