package fetch

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/zoning-cli/internal/model"
)

// Chain tries fetchers in order, returning the first usable page. Links
// decide usability themselves (a blocked or near-empty page is a link
// failure), so the chain only sequences and logs the fall-through.
type Chain struct {
	links []Fetcher
}

// NewChain creates a Chain over the given links, tried in order.
func NewChain(links ...Fetcher) *Chain {
	return &Chain{links: links}
}

func (c *Chain) Name() string { return "chain" }

// SetHostRPM forwards a per-host request budget to every link that supports
// tuning. Links without limiters ignore it.
func (c *Chain) SetHostRPM(host string, rpm int) {
	for _, f := range c.links {
		if t, ok := f.(interface{ SetHostRPM(string, int) }); ok {
			t.SetHostRPM(host, rpm)
		}
	}
}

// Fetch returns the first page any link produces, or the last link error
// when all fail.
func (c *Chain) Fetch(ctx context.Context, rawURL string) (*model.Page, error) {
	var lastErr error
	for _, f := range c.links {
		page, err := f.Fetch(ctx, rawURL)
		if err == nil && page != nil {
			return page, nil
		}
		if err != nil {
			zap.L().Debug("fetch: link failed, trying next",
				zap.String("link", f.Name()),
				zap.String("url", rawURL),
				zap.Error(err),
			)
			lastErr = err
		}
	}
	if lastErr != nil {
		return nil, eris.Wrap(lastErr, "fetch: all links failed")
	}
	return nil, eris.Errorf("fetch: no links configured")
}
