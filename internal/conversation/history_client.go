package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/SARVESHVARADKAR123/marketchat/internal/domain"
)

// HistoryClient reads conversation history from the chat server's HTTP API.
type HistoryClient struct {
	BaseURL string
	// Token is sent as a bearer credential; without one, UserID goes in the
	// X-User-ID header.
	Token  string
	UserID string
	Limit  int
	HTTP   *http.Client
}

func NewHistoryClient(baseURL, userID, token string) *HistoryClient {
	return &HistoryClient{
		BaseURL: baseURL,
		UserID:  userID,
		Token:   token,
		HTTP:    &http.Client{Timeout: 10 * time.Second},
	}
}

type apiError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (c *HistoryClient) Fetch(ctx context.Context, scope Scope) ([]domain.Message, error) {
	q := url.Values{}
	q.Set("peerId", scope.Peer)
	if scope.ListingID != "" {
		q.Set("listingId", scope.ListingID)
	}
	if c.Limit > 0 {
		q.Set("limit", strconv.Itoa(c.Limit))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/api/messages?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	} else {
		req.Header.Set("X-User-ID", c.UserID)
	}

	res, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch history: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		var apiErr apiError
		_ = json.NewDecoder(res.Body).Decode(&apiErr)
		return nil, fmt.Errorf("fetch history: status %d: %s", res.StatusCode, apiErr.Message)
	}

	var body struct {
		Messages []domain.Message `json:"messages"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode history: %w", err)
	}
	return body.Messages, nil
}
