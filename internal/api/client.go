package api

import (
	"context"
	"strings"
	"sync"
	"time"

	http "github.com/bogdanfinn/fhttp"
	tls_client "github.com/bogdanfinn/tls-client"
	"github.com/bogdanfinn/tls-client/profiles"
	"go.uber.org/zap"

	apierrors "github.com/diogo/querychat/internal/errors"
	"github.com/diogo/querychat/internal/logging"
	"github.com/diogo/querychat/internal/models"
)

// Doer executes a single HTTP request. tls_client.HttpClient satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientInterface is the surface the chat widget and commands depend on
type ClientInterface interface {
	Chat(ctx context.Context, query string) (*models.ChatResponse, error)
	Analyze(ctx context.Context, query string) (*models.ChatResponse, error)
	Query(ctx context.Context, query string) (*models.ChatResponse, error)
	Stream(ctx context.Context, query string, fn func(models.StreamEvent) error) (*models.ChatResponse, error)
	BaseURL() string
	Close()
	IsClosed() bool
}

var _ ClientInterface = (*Client)(nil)

// Client talks to the querychat backend
type Client struct {
	httpClient Doer
	baseURL    string
	endpoint   string // path used by Query
	timeout    time.Duration
	logger     *zap.Logger
	mu         sync.RWMutex
	closed     bool
}

// ClientOption is a function that configures the client
type ClientOption func(*Client)

// WithBaseURL sets the backend base URL
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithEndpoint selects the route used by Query ("chat" or "analyze")
func WithEndpoint(name string) ClientOption {
	return func(c *Client) {
		c.endpoint = models.EndpointPath(name)
	}
}

// WithTimeout bounds each request. Zero means no client-side timeout.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// WithHTTPClient replaces the transport, mainly for tests
func WithHTTPClient(doer Doer) ClientOption {
	return func(c *Client) {
		c.httpClient = doer
	}
}

// WithLogger sets the diagnostic logger
func WithLogger(logger *zap.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logging.OrNop(logger)
	}
}

// NewClient creates a new Client
func NewClient(opts ...ClientOption) (*Client, error) {
	client := &Client{
		baseURL:  models.DefaultBaseURL,
		endpoint: models.EndpointChat,
		timeout:  120 * time.Second,
		logger:   logging.Nop(),
	}

	for _, opt := range opts {
		opt(client)
	}

	if client.httpClient == nil {
		options := []tls_client.HttpClientOption{
			tls_client.WithTimeoutSeconds(transportTimeoutSeconds(client.timeout)),
			tls_client.WithClientProfile(profiles.Chrome_120),
		}

		httpClient, err := tls_client.NewHttpClient(tls_client.NewNoopLogger(), options...)
		if err != nil {
			return nil, apierrors.NewNetworkError("create HTTP client", err)
		}
		client.httpClient = httpClient
	}

	return client, nil
}

// transportTimeoutSeconds rounds d up to whole seconds. Zero or less means no
// limit, as it does for withTimeout.
func transportTimeoutSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}

// BaseURL returns the backend base URL
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Close marks the client closed; later requests fail with ErrClientClosed
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

// IsClosed returns whether the client is closed
func (c *Client) IsClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

func (c *Client) url(path string) string {
	return c.baseURL + path
}
