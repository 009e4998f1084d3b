package api

import (
	"context"
	"sync"

	"github.com/diogo/querychat/internal/models"
)

// MockClient is a mock implementation of ClientInterface for testing.
// Responses are looked up by query; unmatched queries get Response/Err.
type MockClient struct {
	// Mock return values
	Response    *models.ChatResponse
	Err         error
	ByQuery     map[string]*models.ChatResponse
	Events      []models.StreamEvent
	BaseURLVal  string
	IsClosedVal bool

	// Block, when non-nil, is received from before answering
	Block chan struct{}

	// Call recorders
	mu          sync.Mutex
	Queries     []string
	Endpoints   []string
	CloseCalled bool
}

var _ ClientInterface = (*MockClient)(nil)

func (m *MockClient) answer(ctx context.Context, endpoint, query string) (*models.ChatResponse, error) {
	m.mu.Lock()
	m.Queries = append(m.Queries, query)
	m.Endpoints = append(m.Endpoints, endpoint)
	m.mu.Unlock()

	if m.Block != nil {
		select {
		case <-m.Block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if m.Err != nil {
		return nil, m.Err
	}
	if resp, ok := m.ByQuery[query]; ok {
		return resp, nil
	}
	if m.Response != nil {
		return m.Response, nil
	}
	return &models.ChatResponse{}, nil
}

func (m *MockClient) Chat(ctx context.Context, query string) (*models.ChatResponse, error) {
	return m.answer(ctx, models.EndpointChat, query)
}

func (m *MockClient) Analyze(ctx context.Context, query string) (*models.ChatResponse, error) {
	return m.answer(ctx, models.EndpointAnalyze, query)
}

func (m *MockClient) Query(ctx context.Context, query string) (*models.ChatResponse, error) {
	return m.answer(ctx, models.EndpointChat, query)
}

func (m *MockClient) Stream(ctx context.Context, query string, fn func(models.StreamEvent) error) (*models.ChatResponse, error) {
	for _, ev := range m.Events {
		if fn != nil {
			if err := fn(ev); err != nil {
				return nil, err
			}
		}
	}
	return m.answer(ctx, models.EndpointStream, query)
}

func (m *MockClient) BaseURL() string {
	if m.BaseURLVal == "" {
		return models.DefaultBaseURL
	}
	return m.BaseURLVal
}

func (m *MockClient) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CloseCalled = true
}

func (m *MockClient) IsClosed() bool {
	return m.IsClosedVal
}

// CallCount returns how many queries reached the mock
func (m *MockClient) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Queries)
}
