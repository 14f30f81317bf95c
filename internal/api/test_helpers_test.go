package api

import (
	"context"
	"errors"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/Keyring-Network/keyring-keywords/control-plane/internal/config"
	"github.com/Keyring-Network/keyring-keywords/control-plane/internal/events"
	"github.com/Keyring-Network/keyring-keywords/control-plane/internal/keywords"
	"github.com/Keyring-Network/keyring-keywords/control-plane/internal/research"
	"github.com/Keyring-Network/keyring-keywords/control-plane/internal/store"
	"github.com/Keyring-Network/keyring-keywords/control-plane/internal/store/memory"
)

type MockWorkflowService struct {
	mock.Mock
}

func (m *MockWorkflowService) StartResearch(ctx context.Context, runID string, cfg research.PipelineConfig) error {
	args := m.Called(ctx, runID, cfg)
	return args.Error(0)
}

func (m *MockWorkflowService) CancelResearch(ctx context.Context, runID string) error {
	args := m.Called(ctx, runID)
	return args.Error(0)
}

type MockBroker struct {
	mock.Mock
}

func (m *MockBroker) Publish(event events.Event) int {
	args := m.Called(event)
	return args.Int(0)
}

func (m *MockBroker) Subscribe(ctx context.Context, runID string) <-chan events.Event {
	args := m.Called(ctx, runID)
	if value := args.Get(0); value != nil {
		if ch, ok := value.(chan events.Event); ok {
			return ch
		}
	}
	return nil
}

// fakeResearcher validates like the real pipeline, reports every step, and
// returns the scripted result or error.
type fakeResearcher struct {
	mu      sync.Mutex
	result  *research.PipelineResult
	err     error
	configs []research.PipelineConfig
}

func (f *fakeResearcher) factory() PipelineFactory {
	return func(reporter research.Reporter) Researcher {
		return &reportingResearcher{fake: f, reporter: reporter}
	}
}

func (f *fakeResearcher) seen() []research.PipelineConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]research.PipelineConfig{}, f.configs...)
}

type reportingResearcher struct {
	fake     *fakeResearcher
	reporter research.Reporter
}

func (r *reportingResearcher) Run(ctx context.Context, cfg research.PipelineConfig) (*research.PipelineResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	r.fake.mu.Lock()
	r.fake.configs = append(r.fake.configs, cfg)
	r.fake.mu.Unlock()
	if r.reporter != nil {
		for step := 1; step <= research.TotalSteps; step++ {
			r.reporter.Report(ctx, research.ProgressEvent{Step: step, Total: research.TotalSteps, Message: "working", Time: time.Now()})
		}
	}
	if r.fake.err != nil {
		return nil, r.fake.err
	}
	return r.fake.result, nil
}

// failingPingStore reports the store as unreachable.
type failingPingStore struct {
	*memory.MemoryStore
}

func (failingPingStore) Ping(ctx context.Context) error {
	return errors.New("connection refused")
}

func sampleResult() *research.PipelineResult {
	ranked := []keywords.ScoredKeyword{
		{
			RawKeyword: keywords.RawKeyword{Keyword: "invoice matching software", Volume: 1200, CPC: 5.5, Competition: 0.3, Intent: keywords.IntentCommercial, Source: "google"},
			Score:      82.5,
			Tier:       keywords.TierSweetSpot,
		},
	}
	return &research.PipelineResult{
		Keywords: ranked,
		Gaps:     []keywords.KeywordGap{},
		Summary:  research.Summary{TotalKeywords: 1, SweetSpotCount: 1, TopKeyword: "invoice matching software", AverageCPC: 5.5},
		Metadata: research.Metadata{Country: "US", SeedKeywords: []string{"invoice matching software"}, Competitors: []string{"bill.com"}},
	}
}

func testConfig() config.Config {
	return config.Config{
		DataAPIURL:     "http://data.example.test",
		DefaultCountry: "US",
		CPCMin:         3,
		CPCMax:         8,
	}
}

const validBody = `{"seedKeywords":["invoice matching software"],"countryCode":"us","competitors":["bill.com"],"cpcRange":{"min":3,"max":8}}`

func newTestServer(t *testing.T, st store.Store, broker Broker, workflows WorkflowService, pipelines PipelineFactory, cfg config.Config) (*Server, *httptest.Server) {
	t.Helper()
	server := NewServer(st, broker, workflows, pipelines, cfg)
	httpServer := httptest.NewServer(server.Router())
	t.Cleanup(httpServer.Close)
	return server, httpServer
}
