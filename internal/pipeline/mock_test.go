package pipeline

import (
	"context"
	"encoding/json"
	"net/url"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/zoning-cli/internal/fetch"
	"github.com/sells-group/zoning-cli/internal/model"
	"github.com/sells-group/zoning-cli/internal/store"
	"github.com/sells-group/zoning-cli/pkg/agentql"
	"github.com/sells-group/zoning-cli/pkg/anthropic"
	"github.com/sells-group/zoning-cli/pkg/duckduckgo"
	"github.com/sells-group/zoning-cli/pkg/supabase"
)

// --- Search ---

type mockSearchClient struct {
	mock.Mock
}

func (m *mockSearchClient) Search(ctx context.Context, query string) (string, error) {
	args := m.Called(ctx, query)
	return args.String(0), args.Error(1)
}

// --- Fetch ---

type mockFetcher struct {
	mock.Mock
}

func (m *mockFetcher) Fetch(ctx context.Context, rawURL string) (*model.Page, error) {
	args := m.Called(ctx, rawURL)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Page), args.Error(1)
}

func (m *mockFetcher) Name() string { return "mock" }

// --- Anthropic ---

type mockAnthropicClient struct {
	mock.Mock
}

func (m *mockAnthropicClient) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*anthropic.MessageResponse), args.Error(1)
}

// --- AgentQL ---

type mockScraperClient struct {
	mock.Mock
}

func (m *mockScraperClient) ScrapeCounty(ctx context.Context, req agentql.ScrapeRequest) (*agentql.ScrapeResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*agentql.ScrapeResponse), args.Error(1)
}

// --- Supabase ---

type mockSupabaseClient struct {
	mock.Mock
}

func (m *mockSupabaseClient) Select(ctx context.Context, table string, params url.Values) ([]supabase.Row, error) {
	args := m.Called(ctx, table, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]supabase.Row), args.Error(1)
}

func (m *mockSupabaseClient) Insert(ctx context.Context, table string, record supabase.Row) (supabase.Row, error) {
	args := m.Called(ctx, table, record)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(supabase.Row), args.Error(1)
}

func (m *mockSupabaseClient) Upsert(ctx context.Context, table string, records []supabase.Row, onConflict string) ([]supabase.Row, error) {
	args := m.Called(ctx, table, records, onConflict)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]supabase.Row), args.Error(1)
}

func (m *mockSupabaseClient) Update(ctx context.Context, table string, params url.Values, patch supabase.Row) ([]supabase.Row, error) {
	args := m.Called(ctx, table, params, patch)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]supabase.Row), args.Error(1)
}

func (m *mockSupabaseClient) RPC(ctx context.Context, fn string, rpcArgs supabase.Row) (json.RawMessage, error) {
	args := m.Called(ctx, fn, rpcArgs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(json.RawMessage), args.Error(1)
}

// --- Store ---

type mockStore struct {
	mock.Mock
}

func (m *mockStore) CreateRun(ctx context.Context, county model.CountyJob) (*model.Run, error) {
	args := m.Called(ctx, county)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Run), args.Error(1)
}

func (m *mockStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	return m.Called(ctx, runID, status).Error(0)
}

func (m *mockStore) CompleteRun(ctx context.Context, runID string, result *model.RunResult) error {
	return m.Called(ctx, runID, result).Error(0)
}

func (m *mockStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	args := m.Called(ctx, runID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Run), args.Error(1)
}

func (m *mockStore) ListRuns(ctx context.Context, filter store.RunFilter) ([]model.Run, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Run), args.Error(1)
}

func (m *mockStore) GetCachedPage(ctx context.Context, pageURL string) (*model.Page, error) {
	args := m.Called(ctx, pageURL)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Page), args.Error(1)
}

func (m *mockStore) SetCachedPage(ctx context.Context, page *model.Page, ttl time.Duration) error {
	return m.Called(ctx, page, ttl).Error(0)
}

func (m *mockStore) DeleteExpiredPages(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *mockStore) Migrate(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockStore) Close() error {
	return m.Called().Error(0)
}

// Interface compliance checks.
var (
	_ duckduckgo.Client = (*mockSearchClient)(nil)
	_ fetch.Fetcher     = (*mockFetcher)(nil)
	_ anthropic.Client  = (*mockAnthropicClient)(nil)
	_ agentql.Client    = (*mockScraperClient)(nil)
	_ supabase.Client   = (*mockSupabaseClient)(nil)
	_ store.Store       = (*mockStore)(nil)
)
