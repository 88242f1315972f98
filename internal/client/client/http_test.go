package client

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dmitrijs2005/journalkeeper/internal/client/models"
	"github.com/dmitrijs2005/journalkeeper/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *HTTPClient {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := NewHTTPClient(srv.URL)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestNewHTTPClient_RejectsBadURL(t *testing.T) {
	_, err := NewHTTPClient("not a url")
	require.Error(t, err)
}

func TestFetchRange_SendsQueryAndNormalizes(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/journal/entries", r.URL.Path)
		assert.Equal(t, "2024-05-01", r.URL.Query().Get("from"))
		assert.Equal(t, "2024-05-07", r.URL.Query().Get("to"))
		assert.Equal(t, "Bearer tok", r.Header.Get(common.AuthorizationHeaderName))
		assert.NotEmpty(t, r.Header.Get(common.RequestIDHeaderName))

		_, _ = io.WriteString(w, `{"entries":[
			{"dateKey":"2024-05-01","mood":"calm","daySubmitted":true,"daySubmittedAt":"5"},
			{"dateKey":"bogus","mood":"Sad"}
		]}`)
	})
	c.SetToken("tok")

	got, err := c.FetchRange(context.Background(), "2024-05-01", "2024-05-07")
	require.NoError(t, err)
	require.Len(t, got, 1)

	at := int64(5)
	assert.Equal(t, models.Entry{DateKey: "2024-05-01", Mood: models.MoodCalm, DaySubmitted: true, DaySubmittedAt: &at}, got[0])
}

func TestUpsert_PutsPayloadAndReturnsStoredCopy(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/journal/entries/2024-05-01", r.URL.Path)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Happy", body["mood"])
		assert.Equal(t, true, body["daySubmitted"])
		assert.EqualValues(t, 42, body["clientUpdatedAt"])
		assert.NotContains(t, body, "daySubmittedAt")

		_, _ = io.WriteString(w, `{"dateKey":"2024-05-01","mood":"Happy","daySubmitted":true,"daySubmittedAt":99,"clientUpdatedAt":42}`)
	})

	stored, err := c.Upsert(context.Background(), models.Entry{
		DateKey: "2024-05-01", Mood: models.MoodHappy, DaySubmitted: true, ClientUpdatedAt: 42,
	})
	require.NoError(t, err)
	require.NotNil(t, stored.DaySubmittedAt)
	assert.Equal(t, int64(99), *stored.DaySubmittedAt)
}

func TestUpsert_InvalidDateKey(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	})
	_, err := c.Upsert(context.Background(), models.Entry{DateKey: "today"})
	assert.ErrorIs(t, err, common.ErrInvalidDateKey)
}

func TestSync_PostsBatch(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/journal/sync", r.URL.Path)
		var body struct {
			Entries []models.Entry `json:"entries"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Len(t, body.Entries, 2)
		_ = json.NewEncoder(w).Encode(body)
	})

	got, err := c.Sync(context.Background(), []models.Entry{
		{DateKey: "2024-05-01", Notes: "a"},
		{DateKey: "2024-05-02", Notes: "b"},
	})
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestStatusMapping(t *testing.T) {
	tests := []struct {
		code int
		want error
	}{
		{http.StatusUnauthorized, ErrUnauthorized},
		{http.StatusForbidden, ErrUnauthorized},
		{http.StatusNotFound, common.ErrorNotFound},
		{http.StatusConflict, common.ErrAssessmentLocked},
		{http.StatusBadRequest, common.ErrorValidation},
		{http.StatusServiceUnavailable, ErrUnavailable},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.code), func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.code)
				_, _ = io.WriteString(w, `{"error":"nope"}`)
			})
			_, err := c.LatestAssessment(context.Background())
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestTransportFailureIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := NewHTTPClient(url)
	require.NoError(t, err)

	_, err = c.FetchRange(context.Background(), "2024-05-01", "2024-05-01")
	assert.ErrorIs(t, err, ErrUnavailable)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.FetchRange(ctx, "2024-05-01", "2024-05-01")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAssessmentAndExport(t *testing.T) {
	expires := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/assessments":
			var body struct {
				Answers []int `json:"answers"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Len(t, body.Answers, models.QuestionCount)
			_, _ = io.WriteString(w, `{"answers":[3,3,3,3,3,0,0,0,0],"lastSubmittedAt":1000}`)
		case "/journal/export":
			_ = json.NewEncoder(w).Encode(ExportLink{URL: "https://bucket/x", ExpiresAt: expires})
		default:
			http.NotFound(w, r)
		}
	})

	a, err := c.SubmitAssessment(context.Background(), []int{3, 3, 3, 3, 3})
	require.NoError(t, err)
	assert.Equal(t, 15, a.Score)
	assert.Equal(t, "moderately severe", a.Severity)

	link, err := c.Export(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "https://bucket/x", link.URL)
	assert.True(t, link.ExpiresAt.Equal(expires))
}

func TestPing_HTTPFallback(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/healthz", r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	})
	require.NoError(t, c.Ping(context.Background()))
}

func TestPing_GRPCHealth(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	hs := health.NewServer()
	srv := grpc.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	c, err := NewHTTPClient("http://127.0.0.1:1", WithHealthAddr(lis.Addr().String()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	hs.SetServingStatus(HealthService, healthpb.HealthCheckResponse_SERVING)
	require.NoError(t, c.Ping(context.Background()))

	hs.SetServingStatus(HealthService, healthpb.HealthCheckResponse_NOT_SERVING)
	assert.ErrorIs(t, c.Ping(context.Background()), ErrUnavailable)
}
