// Package fetch retrieves county portal pages. A direct HTTP fetcher
// handles the common case; portals behind bot walls fall through to a
// rendering proxy via the chain.
package fetch

import (
	"context"

	"github.com/sells-group/zoning-cli/internal/model"
)

// Fetcher retrieves a single page.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*model.Page, error)
	Name() string
}
