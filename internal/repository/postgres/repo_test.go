package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/SARVESHVARADKAR123/marketchat/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Requires a running Postgres; set TEST_DATABASE_URL to enable.
func TestRepository_PersistAndList(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	repo, err := Open(ctx, dsn)
	require.NoError(t, err)
	defer repo.Close()

	a, b := "buyer-"+uuid.NewString(), "seller-"+uuid.NewString()

	first, err := repo.Persist(ctx, domain.Draft{SenderID: a, ReceiverID: b, ListingID: "L1", Content: "Bonjour"})
	require.NoError(t, err)
	second, err := repo.Persist(ctx, domain.Draft{SenderID: b, ReceiverID: a, ListingID: "L1", Content: "Salut"})
	require.NoError(t, err)

	history, err := repo.ListHistory(ctx, a, b, "L1", 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, first.ID, history[0].ID)
	assert.Equal(t, second.ID, history[1].ID)

	var pending int
	err = repo.DB.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM outbox_events
		WHERE aggregate_id = $1 AND processed_at IS NULL
	`, first.ConversationKey()).Scan(&pending)
	require.NoError(t, err)
	assert.Equal(t, 2, pending)
}

func TestRepository_PersistValidationSkipsDatabase(t *testing.T) {
	repo := &Repository{}
	_, err := repo.Persist(context.Background(), domain.Draft{SenderID: "A", ReceiverID: "B", Content: "   "})
	assert.ErrorIs(t, err, domain.ErrEmptyContent)
}
