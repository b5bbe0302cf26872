// Package extract turns raw HTML into analyzable plaintext via an ordered
// chain of extraction strategies.
package extract

import (
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Content is the extracted text of a page.
type Content struct {
	Title string
	Text  string
}

// Extractor is one extraction strategy.
type Extractor interface {
	Name() string
	Extract(body []byte) (*Content, error)
}

// Chain tries extractors in priority order, returning the first success.
type Chain struct {
	extractors []Extractor
}

// NewChain creates a Chain. Extractors are tried in order.
func NewChain(extractors ...Extractor) *Chain {
	return &Chain{extractors: extractors}
}

// DefaultChain returns the standard chain: structured goquery extraction
// first, regex tag stripping as the fallback.
func DefaultChain() *Chain {
	return NewChain(NewDocExtractor(), NewPlainExtractor())
}

// Extract runs the chain on the given HTML body.
func (c *Chain) Extract(body []byte) (*Content, error) {
	var lastErr error
	for _, e := range c.extractors {
		content, err := e.Extract(body)
		if err == nil && content != nil {
			return content, nil
		}
		if err != nil {
			zap.L().Debug("extract: strategy failed, trying next",
				zap.String("extractor", e.Name()),
				zap.Error(err),
			)
			lastErr = err
		}
	}
	if lastErr != nil {
		return nil, eris.Wrap(lastErr, "extract: all strategies failed")
	}
	return nil, eris.New("extract: no extractors configured")
}
