package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/zoning-cli/internal/config"
	"github.com/sells-group/zoning-cli/internal/model"
)

const testRoster = `counties:
  - name: Brevard
    co_no: 5
    municode_url: https://library.municode.com/fl/brevard_county
    rate_limit_rpm: 6
  - name: Glades
    co_no: 22
    portal_type: arcgis
    gis_url: https://gis.gladescountyfl.gov/zoning
    anti_scrape: true
`

func writeRoster(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "counties.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// newRunFlags builds a scratch command bound to the run flag globals.
// Re-registering resets every global to its default, so tests stay isolated
// from each other's flag state.
func newRunFlags(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	c := &cobra.Command{Use: "run"}
	c.Flags().IntVar(&runCoNo, "co-no", 0, "")
	c.Flags().StringVar(&runSlug, "slug", "", "")
	c.Flags().StringVar(&runPortalType, "portal-type", "", "")
	c.Flags().BoolVar(&runAntiScrape, "anti-scrape", false, "")
	c.Flags().IntVar(&runRateLimit, "rate-limit", 0, "")
	c.Flags().StringVar(&runMunicodeURL, "municode-url", "", "")
	c.Flags().StringVar(&runGISURL, "gis-url", "", "")
	c.Flags().BoolVar(&runSkipPersist, "skip-persist", false, "")
	require.NoError(t, c.ParseFlags(args))
	return c
}

func TestCountyJob_FlagsOnly(t *testing.T) {
	cfg = &config.Config{
		Counties: config.CountiesConfig{Path: filepath.Join(t.TempDir(), "missing.yaml")},
	}
	c := newRunFlags(t, "--co-no", "17", "--municode-url", "https://library.municode.com/fl/flagler_county", "--anti-scrape")

	job := countyJob(c, "Flagler")

	assert.Equal(t, "Flagler", job.Name)
	assert.Equal(t, 17, job.CoNo)
	assert.Equal(t, "https://library.municode.com/fl/flagler_county", job.MunicodeURL)
	assert.True(t, job.AntiScrape)
	assert.Empty(t, job.Slug, "slug derivation belongs to the pipeline")
}

func TestCountyJob_RosterEntry(t *testing.T) {
	cfg = &config.Config{
		Counties: config.CountiesConfig{Path: writeRoster(t, testRoster)},
	}
	c := newRunFlags(t)

	job := countyJob(c, "brevard")

	assert.Equal(t, "Brevard", job.Name)
	assert.Equal(t, 5, job.CoNo)
	assert.Equal(t, "brevard", job.Slug)
	assert.Equal(t, "https://library.municode.com/fl/brevard_county", job.MunicodeURL)
	assert.Equal(t, 6, job.RateLimitRPM)
}

func TestCountyJob_FlagsOverrideRoster(t *testing.T) {
	cfg = &config.Config{
		Counties: config.CountiesConfig{Path: writeRoster(t, testRoster)},
	}
	c := newRunFlags(t, "--rate-limit", "2", "--gis-url", "https://example.com/gis")

	job := countyJob(c, "Brevard")

	// Overridden by flags.
	assert.Equal(t, 2, job.RateLimitRPM)
	assert.Equal(t, "https://example.com/gis", job.GISURL)
	// Untouched roster values survive.
	assert.Equal(t, 5, job.CoNo)
	assert.Equal(t, "https://library.municode.com/fl/brevard_county", job.MunicodeURL)
}

func TestCountyJob_AntiScrapeFlagCanDisable(t *testing.T) {
	cfg = &config.Config{
		Counties: config.CountiesConfig{Path: writeRoster(t, testRoster)},
	}
	c := newRunFlags(t, "--anti-scrape=false")

	job := countyJob(c, "Glades")

	assert.False(t, job.AntiScrape)
	assert.Equal(t, model.PortalArcGIS, job.PortalType)
}

func TestCountyJob_UnknownCountyKeepsName(t *testing.T) {
	cfg = &config.Config{
		Counties: config.CountiesConfig{Path: writeRoster(t, testRoster)},
	}
	c := newRunFlags(t)

	job := countyJob(c, "Dade")

	assert.Equal(t, "Dade", job.Name)
	assert.Zero(t, job.CoNo)
}
