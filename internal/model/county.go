package model

import (
	"regexp"
	"strings"
)

// PortalType describes the kind of zoning portal a county publishes.
type PortalType string

const (
	PortalMunicode PortalType = "municode" // document library (library.municode.com)
	PortalArcGIS   PortalType = "arcgis"   // GIS mapping portal
	PortalPDF      PortalType = "pdf"      // static ordinance PDFs
)

// CountyJob is the input for a single county research run. Fields beyond
// Name and CoNo are hints; the pipeline fills gaps itself.
type CountyJob struct {
	Name         string     `json:"county_name" yaml:"name"`
	CoNo         int        `json:"co_no" yaml:"co_no"`
	Slug         string     `json:"county_slug,omitempty" yaml:"slug,omitempty"`
	PortalType   PortalType `json:"portal_type,omitempty" yaml:"portal_type,omitempty"`
	AntiScrape   bool       `json:"anti_scrape,omitempty" yaml:"anti_scrape,omitempty"`
	RateLimitRPM int        `json:"rate_limit_rpm,omitempty" yaml:"rate_limit_rpm,omitempty"`
	MunicodeURL  string     `json:"municode_url,omitempty" yaml:"municode_url,omitempty"`
	GISURL       string     `json:"gis_url,omitempty" yaml:"gis_url,omitempty"`
}

var slugStripRe = regexp.MustCompile(`[^a-z0-9-]`)

// Slugify converts a county display name into its canonical slug
// ("Palm Beach" → "palm-beach", "St. Johns" → "st-johns").
func Slugify(name string) string {
	s := strings.ToLower(name)
	s = strings.ReplaceAll(s, " ", "-")
	s = strings.ReplaceAll(s, ".", "")
	return slugStripRe.ReplaceAllString(s, "")
}

// Normalize fills derived and defaulted fields in place: slug from name,
// portal type municode, rate limit 10 rpm.
func (j *CountyJob) Normalize() {
	if j.Slug == "" {
		j.Slug = Slugify(j.Name)
	}
	if j.PortalType == "" {
		j.PortalType = PortalMunicode
	}
	if j.RateLimitRPM <= 0 {
		j.RateLimitRPM = 10
	}
}

// PortalURL returns the best known portal URL, preferring the document
// library over the GIS portal. Empty when neither is known.
func (j *CountyJob) PortalURL() string {
	if j.MunicodeURL != "" {
		return j.MunicodeURL
	}
	return j.GISURL
}
