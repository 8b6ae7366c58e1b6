package pipeline

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/zoning-cli/internal/model"
	"github.com/sells-group/zoning-cli/pkg/duckduckgo"
)

// discoveryQueries are the search variants tried in order, one search each.
var discoveryQueries = []string{
	"%s County Florida municode zoning ordinance",
	"%s County Florida GIS ArcGIS zoning map",
	"%s County Florida zoning code online",
}

// Portal URL patterns, checked in priority order. A Municode document
// library beats a GIS portal; its HTML carries the full ordinance text.
var (
	municodeURLRe = regexp.MustCompile(`https://library\.municode\.com/fl/[^"&\s<>]+`)
	arcgisURLRe   = regexp.MustCompile(`(?i)https://[^"&\s<>]+gis[^"&\s<>]+\.arcgis\.com[^"&\s<>]+`)
)

// Discovery is the outcome of the portal search mode.
type Discovery struct {
	FoundURL   string
	PortalType model.PortalType
	Validated  bool
	Errors     []string
}

// DiscoverPhase searches the public web for the county's zoning portal.
// Queries run until one result page yields a known portal URL or the soft
// budget runs out. A failed query is recorded and the next variant tried.
// A county with a roster-supplied URL validates even when the search comes
// up empty.
func DiscoverPhase(ctx context.Context, job model.CountyJob, search duckduckgo.Client, budget time.Duration) Discovery {
	log := zap.L().With(zap.String("county", job.Name))
	log.Info("discover: searching for zoning portal")
	start := time.Now()

	disc := Discovery{PortalType: job.PortalType}
	for _, tmpl := range discoveryQueries {
		if time.Since(start) > budget {
			break
		}
		query := fmt.Sprintf(tmpl, job.Name)
		html, err := search.Search(ctx, query)
		if err != nil {
			log.Warn("discover: query failed", zap.String("query", query), zap.Error(err))
			disc.Errors = append(disc.Errors, "mode1_query: "+err.Error())
			continue
		}
		if m := municodeURLRe.FindString(html); m != "" {
			disc.FoundURL = m
			disc.PortalType = model.PortalMunicode
			log.Info("discover: found document library", zap.String("url", m))
			break
		}
		if m := arcgisURLRe.FindString(html); m != "" {
			disc.FoundURL = m
			disc.PortalType = model.PortalArcGIS
			log.Info("discover: found mapping portal", zap.String("url", m))
			break
		}
	}

	if disc.FoundURL == "" {
		if supplied := job.PortalURL(); supplied != "" {
			log.Info("discover: search empty, keeping roster URL", zap.String("url", supplied))
		} else {
			log.Warn("discover: no portal URL known")
		}
	}
	disc.Validated = disc.FoundURL != "" || job.PortalURL() != ""

	log.Info("discover: completed",
		zap.Bool("validated", disc.Validated),
		zap.Duration("elapsed", time.Since(start)),
	)
	return disc
}
