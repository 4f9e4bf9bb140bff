package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/wolfman30/spa-booking-wizard/pkg/logging"
)

const (
	defaultBaseURL = "http://localhost:5000/api"
	defaultTimeout = 10 * time.Second
	maxErrorBody   = 300
)

// Client talks to the spa backend REST API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *logging.Logger
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient swaps the underlying http client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout bounds every backend call.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// NewClient constructs a backend client.
func NewClient(baseURL string, logger *logging.Logger, opts ...Option) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = defaultBaseURL
	}
	if logger == nil {
		logger = logging.Default()
	}
	c := &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Categories lists every service category.
func (c *Client) Categories(ctx context.Context) ([]Category, error) {
	var out []Category
	if err := c.doJSON(ctx, http.MethodGet, "/categories", nil, &out); err != nil {
		return nil, fmt.Errorf("get categories: %w", err)
	}
	return out, nil
}

// Services lists the services of one category.
func (c *Client) Services(ctx context.Context, categoryID string) ([]Service, error) {
	q := url.Values{}
	q.Set("category", categoryID)
	var out []Service
	if err := c.doJSON(ctx, http.MethodGet, "/services?"+q.Encode(), nil, &out); err != nil {
		return nil, fmt.Errorf("get services: %w", err)
	}
	return out, nil
}

// Therapists lists the therapists offering a service.
func (c *Client) Therapists(ctx context.Context, serviceID string) ([]Therapist, error) {
	q := url.Values{}
	q.Set("service", serviceID)
	var out []Therapist
	if err := c.doJSON(ctx, http.MethodGet, "/therapists?"+q.Encode(), nil, &out); err != nil {
		return nil, fmt.Errorf("get therapists: %w", err)
	}
	return out, nil
}

// Timeslots lists open slots for a therapist.
func (c *Client) Timeslots(ctx context.Context, therapistID string) ([]string, error) {
	q := url.Values{}
	q.Set("therapist", therapistID)
	var out []string
	if err := c.doJSON(ctx, http.MethodGet, "/timeslots?"+q.Encode(), nil, &out); err != nil {
		return nil, fmt.Errorf("get timeslots: %w", err)
	}
	return out, nil
}

// Login exchanges credentials for a backend token.
func (c *Client) Login(ctx context.Context, creds Credentials) (*LoginResult, error) {
	var out LoginResult
	if err := c.doJSON(ctx, http.MethodPost, "/auth/login", creds, &out); err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	if strings.TrimSpace(out.Token) == "" {
		return nil, fmt.Errorf("login: empty token: %w", ErrUpstream)
	}
	return &out, nil
}

// CreateBooking submits a confirmed selection.
func (c *Client) CreateBooking(ctx context.Context, req BookingRequest) (*BookingResult, error) {
	var out BookingResult
	if err := c.doJSON(ctx, http.MethodPost, "/bookings", req, &out); err != nil {
		return nil, fmt.Errorf("create booking: %w", err)
	}
	return &out, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	endpoint := c.baseURL + path

	var bodyReader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, bodyReader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := BearerTokenFromContext(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := string(respBody)
		if len(msg) > maxErrorBody {
			msg = msg[:maxErrorBody]
		}
		c.logger.Warn("backend API non-2xx response", "status", resp.StatusCode, "method", method, "path", path, "body", msg)
		if resp.StatusCode == http.StatusUnauthorized {
			return fmt.Errorf("%w: %s", ErrUnauthorized, msg)
		}
		return fmt.Errorf("%w: status %d: %s", ErrUpstream, resp.StatusCode, msg)
	}

	if len(respBody) == 0 || out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
