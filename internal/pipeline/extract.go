package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/zoning-cli/internal/config"
	"github.com/sells-group/zoning-cli/internal/fetch"
	"github.com/sells-group/zoning-cli/internal/model"
	"github.com/sells-group/zoning-cli/internal/store"
	"github.com/sells-group/zoning-cli/pkg/anthropic"
)

// Extraction limits. Ordinance chapters blow past any context window; the
// cleaned text is capped before the prompt is assembled, and the prompt cap
// leaves headroom for the instruction block.
const (
	defaultContentCharLimit = 80000
	defaultPromptCharLimit  = 60000
	defaultFetchTimeout     = 45 * time.Second
	defaultExtractionModel  = "claude-haiku-4-5-20251001"
	defaultMaxTokens        = 8000
)

// extractionSystem pins the model to machine-readable output.
const extractionSystem = "You are a zoning code parser. Return only valid JSON."

// extractionPrompt is the fixed instruction block for zoning extraction.
// The cleaned portal text is appended below it under a county banner.
const extractionPrompt = `You are a zoning code parser for ZoneWise.AI — a Florida zoning intelligence platform.

Extract ALL zoning districts and their dimensional standards from this HTML content.

Return ONLY valid JSON in this exact structure:
{
  "districts": [
    {
      "code": "R-1",
      "name": "Single Family Residential",
      "category": "residential",
      "description": "Low-density single family"
    }
  ],
  "standards": [
    {
      "district_code": "R-1",
      "standard_type": "setback_front",
      "value": 25,
      "unit": "ft",
      "notes": ""
    }
  ],
  "uses": [
    {
      "district_code": "R-1",
      "use_name": "Single Family Dwelling",
      "permission_type": "permitted",
      "use_category": "residential"
    }
  ]
}

Standard types: setback_front, setback_side, setback_rear, max_height, min_lot_size,
max_lot_coverage, max_far, min_unit_size, parking_spaces

Permission types: permitted, conditional, prohibited, special_exception

Categories: residential, commercial, industrial, agricultural, mixed_use, institutional,
conservation, special

Extract as many records as possible. Return only JSON, no explanation.`

var (
	htmlTagRe    = regexp.MustCompile(`<[^>]+>`)
	whitespaceRe = regexp.MustCompile(`\s+`)
	codeFenceRe  = regexp.MustCompile("(?m)^```(?:json)?|```$")
)

// Extraction is the outcome of the LLM extraction mode.
type Extraction struct {
	Data    *model.ExtractedData
	Fetched bool
	Usage   anthropic.TokenUsage
	CostUSD float64
	Errors  []string
}

// ExtractPhase fetches the county's portal page and extracts structured
// zoning data with a single LLM call. The page cache is consulted first so
// repeated runs against the same portal stay cheap.
func ExtractPhase(
	ctx context.Context,
	job model.CountyJob,
	st store.Store,
	fetcher fetch.Fetcher,
	aiClient anthropic.Client,
	aiCfg config.AnthropicConfig,
	cfg config.PipelineConfig,
) Extraction {
	var out Extraction

	pageURL := job.PortalURL()
	if pageURL == "" {
		zap.L().Warn("extract: no portal URL", zap.String("county", job.Name))
		out.Errors = append(out.Errors, "mode2_no_url")
		return out
	}
	log := zap.L().With(zap.String("county", job.Name), zap.String("url", pageURL))

	page := cachedPage(ctx, st, pageURL, log)
	if page == nil {
		fetchCtx, cancel := context.WithTimeout(ctx, secondsOr(cfg.FetchTimeoutSecs, defaultFetchTimeout))
		fetched, err := fetcher.Fetch(fetchCtx, pageURL)
		cancel()
		if err != nil {
			log.Error("extract: fetch failed", zap.Error(err))
			out.Errors = append(out.Errors, "mode2_fetch: "+err.Error())
			return out
		}
		page = fetched
		log.Info("extract: fetched page",
			zap.Int("chars", len(page.Content)),
			zap.String("source", page.Source),
		)
		if st != nil {
			ttl := defaultCacheTTL
			if cfg.CacheTTLHours > 0 {
				ttl = time.Duration(cfg.CacheTTLHours) * time.Hour
			}
			if err := st.SetCachedPage(ctx, page, ttl); err != nil {
				log.Debug("extract: page cache write failed", zap.Error(err))
			}
		}
	}
	out.Fetched = true

	contentLimit := cfg.ContentCharLimit
	if contentLimit <= 0 {
		contentLimit = defaultContentCharLimit
	}
	promptLimit := cfg.PromptCharLimit
	if promptLimit <= 0 {
		promptLimit = defaultPromptCharLimit
	}
	clean := cleanPortalText(page.Content, contentLimit)

	modelID := aiCfg.ExtractionModel
	if modelID == "" {
		modelID = defaultExtractionModel
	}
	maxTokens := aiCfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	prompt := fmt.Sprintf("%s\n\n--- ZONING CODE CONTENT (%s County, FL) ---\n%s",
		extractionPrompt, job.Name, truncateText(clean, promptLimit))

	resp, err := aiClient.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     modelID,
		MaxTokens: int64(maxTokens),
		System:    []anthropic.SystemBlock{{Text: extractionSystem}},
		Messages:  []anthropic.Message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		log.Error("extract: model call failed", zap.Error(err))
		out.Errors = append(out.Errors, "mode2_exception: "+err.Error())
		return out
	}
	out.Usage = resp.Usage
	out.CostUSD = resp.Usage.EstimateCost(modelID)
	resp.Usage.LogCost(modelID, "mode2_extract")

	var raw string
	for _, block := range resp.Content {
		if block.Type == "text" {
			raw = block.Text
			break
		}
	}

	data, err := parseExtraction(raw)
	if err != nil {
		log.Error("extract: response parse failed", zap.Error(err))
		out.Errors = append(out.Errors, "mode2_json: "+err.Error())
		return out
	}
	log.Info("extract: parsed zoning data",
		zap.Int("districts", len(data.Districts)),
		zap.Int("standards", len(data.Standards)),
		zap.Int("uses", len(data.Uses)),
	)
	out.Data = data
	return out
}

// cachedPage returns a fresh cached copy of the portal page, or nil when
// the cache misses or the ledger is unavailable.
func cachedPage(ctx context.Context, st store.Store, pageURL string, log *zap.Logger) *model.Page {
	if st == nil {
		return nil
	}
	page, err := st.GetCachedPage(ctx, pageURL)
	if err != nil {
		log.Debug("extract: page cache read failed", zap.Error(err))
		return nil
	}
	if page != nil {
		log.Info("extract: using cached page", zap.Time("fetched_at", page.FetchedAt))
	}
	return page
}

// cleanPortalText strips markup, collapses whitespace, and caps the result.
func cleanPortalText(html string, limit int) string {
	text := htmlTagRe.ReplaceAllString(html, " ")
	text = strings.TrimSpace(whitespaceRe.ReplaceAllString(text, " "))
	return truncateText(text, limit)
}

func truncateText(s string, limit int) string {
	if limit > 0 && len(s) > limit {
		return s[:limit]
	}
	return s
}

// parseExtraction turns a model response into extracted data. Code fences
// and prose around the JSON object are tolerated; anything else is a parse
// error the cascade can recover from.
func parseExtraction(raw string) (*model.ExtractedData, error) {
	raw = strings.TrimSpace(codeFenceRe.ReplaceAllString(strings.TrimSpace(raw), ""))
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end <= start {
		return nil, eris.New("no JSON object in response")
	}
	var data model.ExtractedData
	if err := json.Unmarshal([]byte(raw[start:end+1]), &data); err != nil {
		return nil, eris.Wrap(err, "unmarshal extraction")
	}
	return &data, nil
}
