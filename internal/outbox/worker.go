// Package outbox relays committed MESSAGE_SENT events from Postgres to Kafka.
package outbox

import (
	"context"
	"database/sql"
	"time"

	"github.com/SARVESHVARADKAR123/marketchat/internal/observability"
	"go.uber.org/zap"
)

type Publisher interface {
	Publish(ctx context.Context, key, value []byte) error
}

type Worker struct {
	DB        *sql.DB
	Producer  Publisher
	BatchSize int
	PollDelay time.Duration
}

func NewWorker(db *sql.DB, p Publisher, batchSize int, delay time.Duration) *Worker {
	return &Worker{
		DB:        db,
		Producer:  p,
		BatchSize: batchSize,
		PollDelay: delay,
	}
}

type event struct {
	id          int64
	aggregateID string
	eventType   string
	payload     []byte
}

func (w *Worker) Start(ctx context.Context) {
	log := observability.GetLogger(ctx)
	log.Info("outbox worker started")
	for {
		n, err := w.processBatch(ctx)
		if err != nil {
			log.Error("outbox worker error", zap.Error(err))
		}
		if err != nil || n == 0 {
			select {
			case <-ctx.Done():
				log.Info("outbox worker stopping")
				return
			case <-time.After(w.PollDelay):
			}
			continue
		}
		if ctx.Err() != nil {
			log.Info("outbox worker stopping")
			return
		}
	}
}

// processBatch publishes one batch and returns how many events it relayed.
// Rows are locked with SKIP LOCKED so several instances can share the table.
func (w *Worker) processBatch(ctx context.Context) (int, error) {
	tx, err := w.DB.BeginTx(ctx, &sql.TxOptions{
		Isolation: sql.LevelReadCommitted,
	})
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `
		SELECT id, aggregate_id, event_type, payload
		FROM outbox_events
		WHERE processed_at IS NULL
		ORDER BY id
		FOR UPDATE SKIP LOCKED
		LIMIT $1
	`, w.BatchSize)
	if err != nil {
		return 0, err
	}

	var events []event
	for rows.Next() {
		var e event
		if err := rows.Scan(&e.id, &e.aggregateID, &e.eventType, &e.payload); err != nil {
			rows.Close()
			return 0, err
		}
		events = append(events, e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	if len(events) == 0 {
		return 0, nil
	}

	for _, e := range events {
		if err := w.Producer.Publish(ctx, []byte(e.aggregateID), e.payload); err != nil {
			return 0, err
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE outbox_events
			SET processed_at = NOW()
			WHERE id = $1
		`, e.id); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(events), nil
}
