package config

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/zoning-cli/internal/model"
)

// Roster is the configured set of counties the pipeline can research.
type Roster struct {
	Counties []model.CountyJob `yaml:"counties"`

	bySlug map[string]int
}

var titleCaser = cases.Title(language.AmericanEnglish)

// LoadRoster reads the county roster from a YAML file. Entries may omit the
// slug (derived from the name) or the name (derived from the slug); co_no is
// required and must be unique.
func LoadRoster(path string) (*Roster, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "counties: read roster %s", path)
	}

	var r Roster
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, eris.Wrap(err, "counties: parse roster")
	}
	if len(r.Counties) == 0 {
		return nil, eris.Errorf("counties: roster %s has no entries", path)
	}

	r.bySlug = make(map[string]int, len(r.Counties))
	seenNo := make(map[int]string, len(r.Counties))

	for i := range r.Counties {
		c := &r.Counties[i]
		if c.Name == "" && c.Slug == "" {
			return nil, eris.Errorf("counties: entry %d has neither name nor slug", i)
		}
		if c.Name == "" {
			c.Name = titleCaser.String(strings.ReplaceAll(c.Slug, "-", " "))
		}
		c.Normalize()

		if c.CoNo <= 0 {
			return nil, eris.Errorf("counties: %s is missing co_no", c.Name)
		}
		if prev, dup := seenNo[c.CoNo]; dup {
			return nil, eris.Errorf("counties: co_no %d used by both %s and %s", c.CoNo, prev, c.Name)
		}
		seenNo[c.CoNo] = c.Name

		if _, dup := r.bySlug[c.Slug]; dup {
			return nil, eris.Errorf("counties: duplicate slug %s", c.Slug)
		}
		r.bySlug[c.Slug] = i
	}

	return &r, nil
}

// Get looks up a county by display name or slug, case-insensitively.
func (r *Roster) Get(nameOrSlug string) (model.CountyJob, bool) {
	slug := model.Slugify(nameOrSlug)
	if i, ok := r.bySlug[slug]; ok {
		return r.Counties[i], true
	}
	return model.CountyJob{}, false
}

// Slugs returns every county slug in roster order.
func (r *Roster) Slugs() []string {
	out := make([]string, len(r.Counties))
	for i, c := range r.Counties {
		out[i] = c.Slug
	}
	return out
}
