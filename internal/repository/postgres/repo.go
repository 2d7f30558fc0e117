package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/SARVESHVARADKAR123/marketchat/internal/domain"
	"github.com/SARVESHVARADKAR123/marketchat/internal/repository"
	"github.com/SARVESHVARADKAR123/marketchat/internal/tx"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
)

const EventMessageSent = "MESSAGE_SENT"

//go:embed schema.sql
var schema string

type Repository struct {
	DB    *sql.DB
	Tx    tx.Transactor
	Clock *repository.Clock
}

var _ repository.Repository = (*Repository)(nil)

type queryable interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func Open(ctx context.Context, dsn string) (*Repository, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open failed: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("db ping failed: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("schema bootstrap failed: %w", err)
	}
	return New(db), nil
}

func New(db *sql.DB) *Repository {
	return &Repository{
		DB:    db,
		Tx:    &tx.Manager{DB: db},
		Clock: repository.NewClock(nil),
	}
}

func (r *Repository) getter(tx *sql.Tx) queryable {
	if tx != nil {
		return tx
	}
	return r.DB
}

// Persist inserts the message and its MESSAGE_SENT outbox row atomically.
func (r *Repository) Persist(ctx context.Context, d domain.Draft) (*domain.Message, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	msg, err := domain.NewMessage(uuid.NewString(), d, r.Clock.Next())
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal outbox payload: %w", err)
	}

	err = r.Tx.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if err := r.insertMessage(ctx, tx, msg); err != nil {
			return fmt.Errorf("failed to save message: %w", err)
		}
		if err := r.insertOutbox(ctx, tx, msg.ConversationKey(), EventMessageSent, payload); err != nil {
			return fmt.Errorf("failed to save outbox event: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", repository.ErrUnavailable, err)
	}
	return msg, nil
}

func (r *Repository) insertMessage(ctx context.Context, tx *sql.Tx, msg *domain.Message) error {
	q := r.getter(tx)
	_, err := q.ExecContext(ctx, `
		INSERT INTO messages (
			id, conversation_key, sender_id, receiver_id,
			listing_id, content, created_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`,
		msg.ID,
		msg.ConversationKey(),
		msg.SenderID,
		msg.ReceiverID,
		msg.ListingID,
		msg.Content,
		msg.CreatedAt,
	)
	return err
}

func (r *Repository) insertOutbox(ctx context.Context, tx *sql.Tx, aggregateID, eventType string, payload []byte) error {
	q := r.getter(tx)
	_, err := q.ExecContext(ctx, `
		INSERT INTO outbox_events (aggregate_id, event_type, payload)
		VALUES ($1, $2, $3)
	`, aggregateID, eventType, payload)
	return err
}

func (r *Repository) ListHistory(ctx context.Context, userA, userB, listingID string, limit int) ([]*domain.Message, error) {
	limit = repository.NormalizeLimit(limit)

	var (
		rows *sql.Rows
		err  error
	)
	if listingID != "" {
		rows, err = r.DB.QueryContext(ctx, `
			SELECT id, sender_id, receiver_id, listing_id, content, created_at
			FROM (
				SELECT * FROM messages
				WHERE conversation_key = $1
				ORDER BY created_at DESC, id DESC
				LIMIT $2
			) recent
			ORDER BY created_at ASC, id ASC
		`, domain.ConversationKey(userA, userB, listingID), limit)
	} else {
		rows, err = r.DB.QueryContext(ctx, `
			SELECT id, sender_id, receiver_id, listing_id, content, created_at
			FROM (
				SELECT * FROM messages
				WHERE (sender_id = $1 AND receiver_id = $2)
				   OR (sender_id = $2 AND receiver_id = $1)
				ORDER BY created_at DESC, id DESC
				LIMIT $3
			) recent
			ORDER BY created_at ASC, id ASC
		`, userA, userB, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", repository.ErrUnavailable, err)
	}
	defer rows.Close()

	var messages []*domain.Message
	for rows.Next() {
		var msg domain.Message
		if err := rows.Scan(
			&msg.ID,
			&msg.SenderID,
			&msg.ReceiverID,
			&msg.ListingID,
			&msg.Content,
			&msg.CreatedAt,
		); err != nil {
			return nil, err
		}
		msg.CreatedAt = msg.CreatedAt.UTC()
		messages = append(messages, &msg)
	}
	return messages, rows.Err()
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.DB.PingContext(ctx)
}

func (r *Repository) Close() error {
	return r.DB.Close()
}
