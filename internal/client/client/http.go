package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/journalkeeper/internal/client/models"
	"github.com/dmitrijs2005/journalkeeper/internal/common"
	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// DefaultTimeout bounds every REST call.
const DefaultTimeout = 10 * time.Second

// HealthService is the service name probed by Ping.
const HealthService = "journal"

type HTTPClient struct {
	baseURL string
	http    *http.Client

	healthAddr string
	healthConn *grpc.ClientConn
	health     healthpb.HealthClient

	mu    sync.RWMutex
	token string
}

type Option func(*HTTPClient)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(c *http.Client) Option {
	return func(h *HTTPClient) { h.http = c }
}

// WithHealthAddr enables the gRPC liveness probe against addr (host:port).
// Without it Ping falls back to GET /healthz.
func WithHealthAddr(addr string) Option {
	return func(h *HTTPClient) { h.healthAddr = addr }
}

func NewHTTPClient(baseURL string, opts ...Option) (*HTTPClient, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid server url %q", baseURL)
	}

	c := &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.healthAddr != "" {
		conn, err := grpc.NewClient(c.healthAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
		if err != nil {
			return nil, fmt.Errorf("health client: %w", err)
		}
		c.healthConn = conn
		c.health = healthpb.NewHealthClient(conn)
	}
	return c, nil
}

func (c *HTTPClient) Close() error {
	c.http.CloseIdleConnections()
	if c.healthConn != nil {
		return c.healthConn.Close()
	}
	return nil
}

func (c *HTTPClient) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *HTTPClient) bearer() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *HTTPClient) Ping(ctx context.Context) error {
	if c.health == nil {
		return c.do(ctx, http.MethodGet, "/healthz", nil, nil)
	}

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	resp, err := c.health.Check(ctx, &healthpb.HealthCheckRequest{Service: HealthService})
	if err != nil {
		return ErrUnavailable
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return ErrUnavailable
	}
	return nil
}

type entriesEnvelope struct {
	Entries []json.RawMessage `json:"entries"`
}

// entryPayload is the PUT body; dateKey travels in the path.
type entryPayload struct {
	Mood            models.Mood   `json:"mood"`
	Reason          models.Reason `json:"reason"`
	Notes           string        `json:"notes"`
	DaySubmitted    bool          `json:"daySubmitted"`
	ClientUpdatedAt int64         `json:"clientUpdatedAt"`
}

func payloadOf(e models.Entry) entryPayload {
	return entryPayload{
		Mood:            e.Mood,
		Reason:          e.Reason,
		Notes:           e.Notes,
		DaySubmitted:    e.DaySubmitted,
		ClientUpdatedAt: e.ClientUpdatedAt,
	}
}

func (c *HTTPClient) FetchRange(ctx context.Context, from, to string) ([]models.Entry, error) {
	q := url.Values{}
	q.Set("from", from)
	q.Set("to", to)

	var env entriesEnvelope
	if err := c.do(ctx, http.MethodGet, "/journal/entries?"+q.Encode(), nil, &env); err != nil {
		return nil, err
	}
	return normalizeAll(env.Entries), nil
}

func (c *HTTPClient) Upsert(ctx context.Context, e models.Entry) (models.Entry, error) {
	if !models.ValidDateKey(e.DateKey) {
		return models.Entry{}, common.ErrInvalidDateKey
	}

	var raw json.RawMessage
	if err := c.do(ctx, http.MethodPut, "/journal/entries/"+url.PathEscape(e.DateKey), payloadOf(e), &raw); err != nil {
		return models.Entry{}, err
	}

	stored := models.Normalize(raw)
	if stored.DateKey == "" {
		stored.DateKey = e.DateKey
	}
	return stored, nil
}

func (c *HTTPClient) Sync(ctx context.Context, entries []models.Entry) ([]models.Entry, error) {
	body := struct {
		Entries []models.Entry `json:"entries"`
	}{Entries: entries}

	var env entriesEnvelope
	if err := c.do(ctx, http.MethodPost, "/journal/sync", body, &env); err != nil {
		return nil, err
	}
	return normalizeAll(env.Entries), nil
}

func (c *HTTPClient) SubmitAssessment(ctx context.Context, answers []int) (models.Assessment, error) {
	body := struct {
		Answers []int `json:"answers"`
	}{Answers: models.NormalizeAnswers(answers)}

	var raw json.RawMessage
	if err := c.do(ctx, http.MethodPost, "/assessments", body, &raw); err != nil {
		return models.Assessment{}, err
	}
	return models.NormalizeAssessment(raw), nil
}

func (c *HTTPClient) LatestAssessment(ctx context.Context) (models.Assessment, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/assessments/latest", nil, &raw); err != nil {
		return models.Assessment{}, err
	}
	return models.NormalizeAssessment(raw), nil
}

func (c *HTTPClient) Export(ctx context.Context) (ExportLink, error) {
	var link ExportLink
	if err := c.do(ctx, http.MethodPost, "/journal/export", nil, &link); err != nil {
		return ExportLink{}, err
	}
	return link, nil
}

func normalizeAll(raw []json.RawMessage) []models.Entry {
	out := make([]models.Entry, 0, len(raw))
	for _, r := range raw {
		e := models.Normalize(r)
		if e.DateKey != "" {
			out = append(out, e)
		}
	}
	return out
}

func (c *HTTPClient) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(common.RequestIDHeaderName, uuid.NewString())
	if token := c.bearer(); token != "" {
		req.Header.Set(common.AuthorizationHeaderName, common.BearerPrefix+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return mapTransportError(err)
	}
	defer resp.Body.Close()

	if err := mapStatus(resp); err != nil {
		return err
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// mapTransportError reports every failure to reach the server as
// ErrUnavailable, except a cancellation requested by the caller.
func mapTransportError(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

type errorBody struct {
	Error string `json:"error"`
}

func mapStatus(resp *http.Response) error {
	if resp.StatusCode < 300 {
		return nil
	}

	var eb errorBody
	_ = json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&eb)

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrUnauthorized
	case http.StatusNotFound:
		return common.ErrorNotFound
	case http.StatusConflict:
		return common.ErrAssessmentLocked
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return fmt.Errorf("%w: %s", common.ErrorValidation, eb.Error)
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return ErrUnavailable
	default:
		return fmt.Errorf("http %d: %s", resp.StatusCode, eb.Error)
	}
}
