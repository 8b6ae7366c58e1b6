package pipeline

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/zoning-cli/internal/model"
	"github.com/sells-group/zoning-cli/pkg/supabase"
)

// PersistStats reports what the reconciler wrote and what it had to drop.
type PersistStats struct {
	Districts        int
	Standards        int
	Uses             int
	StandardsDropped int
	UsesDropped      int
	Errors           []string
}

// countyFilter matches a county's jurisdiction rows by case-insensitive
// substring, the way the zoning schema stores county names.
func countyFilter(county string) url.Values {
	return url.Values{"county": {"ilike.%" + county + "%"}}
}

// PersistPhase reconciles extracted data into the zoning tables. Every
// write is a conflict-target upsert, so re-running a county is idempotent.
// A failed step is recorded and the later steps still run; only a missing
// jurisdiction stops the phase outright.
func PersistPhase(ctx context.Context, db supabase.Client, job model.CountyJob, data *model.ExtractedData) PersistStats {
	log := zap.L().With(zap.String("county", job.Name))
	var stats PersistStats

	// Resolve the county's jurisdiction rows.
	params := countyFilter(job.Name)
	params.Set("select", "id,name")
	jurisdictions, err := db.Select(ctx, "jurisdictions", params)
	if err != nil {
		log.Error("persist: jurisdiction lookup failed", zap.Error(err))
		stats.Errors = append(stats.Errors, "persist_jurisdictions: "+err.Error())
		return stats
	}
	if len(jurisdictions) == 0 {
		log.Warn("persist: no jurisdictions for county")
		stats.Errors = append(stats.Errors, "persist_no_jurisdictions")
		return stats
	}
	// The first row is the county-level jurisdiction.
	jurisdictionID := jurisdictions[0]["id"]

	if len(data.Districts) > 0 {
		records := make([]supabase.Row, 0, len(data.Districts))
		for _, d := range data.Districts {
			name := d.Name
			if name == "" {
				name = d.Code
			}
			category := d.Category
			if category == "" {
				category = model.CategoryOther
			}
			records = append(records, supabase.Row{
				"jurisdiction_id": jurisdictionID,
				"code":            d.Code,
				"name":            name,
				"category":        category,
				"description":     d.Description,
			})
		}
		rows, upErr := db.Upsert(ctx, "zoning_districts", records, "jurisdiction_id,code")
		if upErr != nil {
			log.Error("persist: district upsert failed", zap.Error(upErr))
			stats.Errors = append(stats.Errors, "persist_districts: "+upErr.Error())
		} else {
			stats.Districts = upsertCount(rows, len(records))
			log.Info("persist: districts upserted", zap.Int("count", stats.Districts))
		}
	}

	// District code to id map for attaching standards and uses. Districts
	// from earlier runs resolve too, so a failed upsert above does not
	// orphan everything.
	districtIDs := districtIDMap(ctx, db, jurisdictionID, log)

	if len(data.Standards) > 0 {
		records := make([]supabase.Row, 0, len(data.Standards))
		for _, s := range data.Standards {
			districtID, ok := districtIDs[s.DistrictCode]
			if !ok {
				stats.StandardsDropped++
				continue
			}
			records = append(records, supabase.Row{
				"zoning_district_id": districtID,
				"standard_type":      s.StandardType,
				"value":              s.Value,
				"unit":               s.Unit,
				"notes":              s.Notes,
			})
		}
		if stats.StandardsDropped > 0 {
			log.Warn("persist: dropped standards with unknown district codes",
				zap.Int("dropped", stats.StandardsDropped))
		}
		if len(records) > 0 {
			rows, upErr := db.Upsert(ctx, "zone_standards", records, "zoning_district_id,standard_type")
			if upErr != nil {
				log.Error("persist: standards upsert failed", zap.Error(upErr))
				stats.Errors = append(stats.Errors, "persist_standards: "+upErr.Error())
			} else {
				stats.Standards = upsertCount(rows, len(records))
				log.Info("persist: standards upserted", zap.Int("count", stats.Standards))
			}
		}
	}

	if len(data.Uses) > 0 {
		records := make([]supabase.Row, 0, len(data.Uses))
		for _, u := range data.Uses {
			districtID, ok := districtIDs[u.DistrictCode]
			if !ok {
				stats.UsesDropped++
				continue
			}
			permission := u.PermissionType
			if permission == "" {
				permission = model.PermissionPermitted
			}
			category := u.UseCategory
			if category == "" {
				category = model.CategoryOther
			}
			records = append(records, supabase.Row{
				"zoning_district_id": districtID,
				"use_name":           u.UseName,
				"permission_type":    permission,
				"use_category":       category,
			})
		}
		if stats.UsesDropped > 0 {
			log.Warn("persist: dropped uses with unknown district codes",
				zap.Int("dropped", stats.UsesDropped))
		}
		if len(records) > 0 {
			rows, upErr := db.Upsert(ctx, "permitted_uses", records, "zoning_district_id,use_name")
			if upErr != nil {
				log.Error("persist: uses upsert failed", zap.Error(upErr))
				stats.Errors = append(stats.Errors, "persist_uses: "+upErr.Error())
			} else {
				stats.Uses = upsertCount(rows, len(records))
				log.Info("persist: uses upserted", zap.Int("count", stats.Uses))
			}
		}
	}

	// Stamp the validation date on the jurisdictions; purely advisory.
	today := time.Now().UTC().Format("2006-01-02")
	if _, err := db.Update(ctx, "jurisdictions", countyFilter(job.Name), supabase.Row{"skill_last_validated": today}); err != nil {
		log.Warn("persist: validation stamp failed", zap.Error(err))
	}

	return stats
}

// districtIDMap reads the jurisdiction's district rows and indexes them by
// code. A read failure leaves the map empty; dependent rows are then
// dropped rather than written against guessed ids.
func districtIDMap(ctx context.Context, db supabase.Client, jurisdictionID any, log *zap.Logger) map[string]any {
	ids := make(map[string]any)
	params := url.Values{
		"jurisdiction_id": {fmt.Sprintf("eq.%v", jurisdictionID)},
		"select":          {"id,code"},
	}
	rows, err := db.Select(ctx, "zoning_districts", params)
	if err != nil {
		log.Warn("persist: district id lookup failed", zap.Error(err))
		return ids
	}
	for _, row := range rows {
		code, _ := row["code"].(string)
		if code != "" {
			ids[code] = row["id"]
		}
	}
	return ids
}

// upsertCount prefers the representation row count; PostgREST returns an
// empty body when the Prefer header is dropped by a proxy.
func upsertCount(rows []supabase.Row, submitted int) int {
	if len(rows) > 0 {
		return len(rows)
	}
	return submitted
}
