// Package httpapi serves the read side of the chat: conversation history
// over plain HTTP.
package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/SARVESHVARADKAR123/marketchat/internal/domain"
	"github.com/SARVESHVARADKAR123/marketchat/internal/middleware"
	"github.com/SARVESHVARADKAR123/marketchat/internal/observability"
	"github.com/SARVESHVARADKAR123/marketchat/internal/transport"
	"go.uber.org/zap"
)

type HistoryReader interface {
	ListHistory(ctx context.Context, userA, userB, listingID string, limit int) ([]*domain.Message, error)
}

type HistoryHandler struct {
	repo    HistoryReader
	timeout time.Duration
}

func NewHistoryHandler(repo HistoryReader) *HistoryHandler {
	return &HistoryHandler{repo: repo, timeout: 5 * time.Second}
}

type historyResponse struct {
	Messages []*domain.Message `json:"messages"`
}

// ListMessages GET /api/messages?peerId=&listingId=&limit=
func (h *HistoryHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())
	q := r.URL.Query()

	peerID := q.Get("peerId")
	if peerID == "" {
		transport.WriteError(w, http.StatusBadRequest, "missing_peer_id", "peerId is required")
		return
	}

	limit := 0
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			transport.WriteError(w, http.StatusBadRequest, "invalid_limit", "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	messages, err := h.repo.ListHistory(ctx, userID, peerID, q.Get("listingId"), limit)
	if err != nil {
		observability.GetLogger(ctx).Warn("history query failed",
			zap.String("user_id", userID),
			zap.String("peer_id", peerID),
			zap.String("request_id", middleware.RequestIDFromContext(ctx)),
			zap.Error(err))
		transport.Error(w, err)
		return
	}
	if messages == nil {
		messages = []*domain.Message{}
	}

	transport.WriteJSON(w, http.StatusOK, historyResponse{Messages: messages})
}
