package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/zoning-cli/internal/fetch"
	"github.com/sells-group/zoning-cli/internal/pipeline"
	"github.com/sells-group/zoning-cli/internal/store"
	"github.com/sells-group/zoning-cli/pkg/agentql"
	"github.com/sells-group/zoning-cli/pkg/anthropic"
	"github.com/sells-group/zoning-cli/pkg/duckduckgo"
	"github.com/sells-group/zoning-cli/pkg/jina"
	"github.com/sells-group/zoning-cli/pkg/supabase"
)

// pipelineEnv holds the initialized store, clients, and the pipeline needed
// by the run and batch commands.
type pipelineEnv struct {
	Store    store.Store
	Pipeline *pipeline.Pipeline
}

// Close releases resources held by the pipeline environment.
func (pe *pipelineEnv) Close() {
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

// initPipeline sets up the run ledger, the fetch chain, and all API clients,
// then builds the Pipeline. Callers should defer env.Close().
func initPipeline(ctx context.Context) (*pipelineEnv, error) {
	if err := cfg.ValidateForRun(); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	searchClient := duckduckgo.NewClient(
		duckduckgo.WithBaseURL(cfg.Search.BaseURL),
		duckduckgo.WithUserAgent(cfg.Search.UserAgent),
	)

	// Fetch chain: direct HTTP first, the rendering proxy for portals that
	// block it. Without a Jina key the chain is direct-only.
	links := []fetch.Fetcher{
		fetch.NewDirect(fetch.DirectOptions{
			Timeout: time.Duration(cfg.Pipeline.FetchTimeoutSecs) * time.Second,
		}),
	}
	if cfg.Jina.Key != "" {
		jinaClient := jina.NewClient(cfg.Jina.Key, jina.WithBaseURL(cfg.Jina.BaseURL))
		links = append(links, fetch.NewReader(jinaClient))
		zap.L().Info("render fallback enabled")
	} else {
		zap.L().Debug("ZONING_JINA_KEY not set, render fallback disabled")
	}
	chain := fetch.NewChain(links...)

	anthropicClient := anthropic.NewClient(cfg.Anthropic.Key)
	scraperClient := agentql.NewClient(cfg.Scraper.URL, cfg.Scraper.Key,
		agentql.WithTimeout(time.Duration(cfg.Scraper.TimeoutSecs)*time.Second),
	)
	dbClient := supabase.NewClient(cfg.Supabase.URL, cfg.Supabase.ServiceKey,
		supabase.WithTimeout(time.Duration(cfg.Supabase.TimeoutSecs)*time.Second),
	)

	p := pipeline.New(cfg, st, searchClient, chain, anthropicClient, scraperClient, dbClient)

	return &pipelineEnv{
		Store:    st,
		Pipeline: p,
	}, nil
}
