package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/SARVESHVARADKAR123/marketchat/internal/domain"
	"github.com/SARVESHVARADKAR123/marketchat/internal/repository"
	"github.com/SARVESHVARADKAR123/marketchat/internal/security"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockHistory struct {
	mock.Mock
}

func (m *MockHistory) ListHistory(ctx context.Context, userA, userB, listingID string, limit int) ([]*domain.Message, error) {
	args := m.Called(ctx, userA, userB, listingID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Message), args.Error(1)
}

func newServer(t *testing.T, repo HistoryReader, cfg RouterConfig) *httptest.Server {
	t.Helper()
	if cfg.ServiceName == "" {
		cfg.ServiceName = "chat-test"
	}
	srv := httptest.NewServer(NewRouter(http.NotFoundHandler(), NewHistoryHandler(repo), cfg))
	t.Cleanup(srv.Close)
	return srv
}

func get(t *testing.T, url string, header http.Header) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	for k, v := range header {
		req.Header[k] = v
	}
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { res.Body.Close() })
	return res
}

func asUser(id string) http.Header {
	return http.Header{"X-User-Id": []string{id}}
}

func TestListMessages_ReturnsHistory(t *testing.T) {
	created := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	history := []*domain.Message{
		{ID: "m1", SenderID: "A", ReceiverID: "B", ListingID: "L1", Content: "Bonjour", CreatedAt: created},
		{ID: "m2", SenderID: "B", ReceiverID: "A", ListingID: "L1", Content: "Salut", CreatedAt: created.Add(time.Second)},
	}
	repo := new(MockHistory)
	repo.On("ListHistory", mock.Anything, "A", "B", "L1", 0).Return(history, nil)

	srv := newServer(t, repo, RouterConfig{})
	res := get(t, srv.URL+"/api/messages?peerId=B&listingId=L1", asUser("A"))

	require.Equal(t, http.StatusOK, res.StatusCode)
	var body struct {
		Messages []domain.Message `json:"messages"`
	}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	require.Len(t, body.Messages, 2)
	assert.Equal(t, "m1", body.Messages[0].ID)
	assert.Equal(t, "Salut", body.Messages[1].Content)
	assert.True(t, created.Equal(body.Messages[0].CreatedAt))
	repo.AssertExpectations(t)
}

func TestListMessages_EmptyHistoryIsAnEmptyArray(t *testing.T) {
	repo := new(MockHistory)
	repo.On("ListHistory", mock.Anything, "A", "B", "", 25).Return(nil, nil)

	srv := newServer(t, repo, RouterConfig{})
	res := get(t, srv.URL+"/api/messages?peerId=B&limit=25", asUser("A"))

	require.Equal(t, http.StatusOK, res.StatusCode)
	var body map[string]json.RawMessage
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	assert.JSONEq(t, `[]`, string(body["messages"]))
}

func TestListMessages_BadRequests(t *testing.T) {
	repo := new(MockHistory)
	srv := newServer(t, repo, RouterConfig{})

	tests := []struct {
		name  string
		query string
	}{
		{"missing peer", "?listingId=L1"},
		{"non numeric limit", "?peerId=B&limit=ten"},
		{"negative limit", "?peerId=B&limit=-1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := get(t, srv.URL+"/api/messages"+tt.query, asUser("A"))
			assert.Equal(t, http.StatusBadRequest, res.StatusCode)
		})
	}
	repo.AssertNotCalled(t, "ListHistory", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestListMessages_StoreUnavailable(t *testing.T) {
	repo := new(MockHistory)
	repo.On("ListHistory", mock.Anything, "A", "B", "", 0).
		Return(nil, fmt.Errorf("%w: connection refused", repository.ErrUnavailable))

	srv := newServer(t, repo, RouterConfig{})
	res := get(t, srv.URL+"/api/messages?peerId=B", asUser("A"))

	assert.Equal(t, http.StatusServiceUnavailable, res.StatusCode)
}

func TestListMessages_RequiresIdentity(t *testing.T) {
	srv := newServer(t, new(MockHistory), RouterConfig{})
	res := get(t, srv.URL+"/api/messages?peerId=B", nil)
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
}

func TestListMessages_BearerToken(t *testing.T) {
	const secret = "s3cret"
	repo := new(MockHistory)
	repo.On("ListHistory", mock.Anything, "A", "B", "", 0).Return([]*domain.Message{}, nil)
	srv := newServer(t, repo, RouterConfig{JWTSecret: secret})

	// The header fallback is disabled once a secret is configured.
	res := get(t, srv.URL+"/api/messages?peerId=B", asUser("A"))
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)

	res = get(t, srv.URL+"/api/messages?peerId=B", http.Header{"Authorization": []string{"Bearer nope"}})
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)

	token, err := security.GenerateAccess(secret, "A", time.Minute)
	require.NoError(t, err)
	res = get(t, srv.URL+"/api/messages?peerId=B", http.Header{"Authorization": []string{"Bearer " + token}})
	assert.Equal(t, http.StatusOK, res.StatusCode)
	repo.AssertExpectations(t)
}

func TestRateLimiting(t *testing.T) {
	repo := new(MockHistory)
	repo.On("ListHistory", mock.Anything, "A", "B", "", 0).Return([]*domain.Message{}, nil)
	srv := newServer(t, repo, RouterConfig{RateLimitRequests: 10, RateLimitWindow: time.Minute})

	header := asUser("A")
	header.Set("X-Forwarded-For", "192.168.1.100")
	for i := 0; i < 10; i++ {
		res := get(t, srv.URL+"/api/messages?peerId=B", header)
		require.NotEqual(t, http.StatusTooManyRequests, res.StatusCode, "request %d limited too early", i)
	}

	res := get(t, srv.URL+"/api/messages?peerId=B", header)
	assert.Equal(t, http.StatusTooManyRequests, res.StatusCode)
}

func TestObservabilityRouter(t *testing.T) {
	srv := httptest.NewServer(NewObservabilityRouter(http.NotFoundHandler()))
	defer srv.Close()

	res := get(t, srv.URL+"/health/live", nil)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	res = get(t, srv.URL+"/health/ready", nil)
	assert.Equal(t, http.StatusOK, res.StatusCode)
}
