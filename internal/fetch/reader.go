package fetch

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/zoning-cli/internal/model"
	"github.com/sells-group/zoning-cli/internal/resilience"
	"github.com/sells-group/zoning-cli/pkg/jina"
)

// Reader fetches pages through the r.jina.ai rendering proxy, which executes
// JavaScript and returns markdown. It is the chain's answer to portals the
// direct fetcher cannot read. A circuit breaker skips the proxy for a
// cooldown after consecutive failures so a dead upstream does not stall
// every county in a batch.
type Reader struct {
	client  jina.Client
	breaker *resilience.CircuitBreaker
}

// NewReader wraps a Jina client as a chain link. Three consecutive failures
// open the breaker for 60s.
func NewReader(client jina.Client) *Reader {
	return &Reader{
		client: client,
		breaker: resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			FailureThreshold: 3,
			ResetTimeout:     60 * time.Second,
		}),
	}
}

func (r *Reader) Name() string { return "reader" }

// Fetch renders the URL via the proxy. Challenge pages that survive
// rendering still count as failures; there is no further fallback.
func (r *Reader) Fetch(ctx context.Context, rawURL string) (*model.Page, error) {
	return resilience.ExecuteVal(ctx, r.breaker, func(ctx context.Context) (*model.Page, error) {
		resp, err := r.client.Read(ctx, rawURL)
		if err != nil {
			return nil, err
		}

		if resp.Code != 0 && resp.Code != http.StatusOK {
			return nil, eris.Errorf("reader: upstream status %d", resp.Code)
		}

		content := strings.TrimSpace(resp.Data.Content)
		if blocked, reason := looksBlocked(http.StatusOK, content); blocked {
			return nil, eris.Errorf("reader: blocked (%s)", reason)
		}

		pageURL := resp.Data.URL
		if pageURL == "" {
			pageURL = rawURL
		}
		return &model.Page{
			URL:        pageURL,
			Content:    content,
			StatusCode: http.StatusOK,
			Source:     "reader",
			FetchedAt:  time.Now().UTC(),
		}, nil
	})
}
