// Package dispatcher persists send requests and fans the result out to the
// live sessions of the receiver and the sender.
package dispatcher

import (
	"context"
	"errors"
	"time"

	"github.com/SARVESHVARADKAR123/marketchat/internal/domain"
	"github.com/SARVESHVARADKAR123/marketchat/internal/observability"
	"github.com/SARVESHVARADKAR123/marketchat/internal/protocol"
	"github.com/SARVESHVARADKAR123/marketchat/internal/relay"
	"github.com/SARVESHVARADKAR123/marketchat/internal/websocket"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// remoteTimeout bounds the presence lookup and relay publishes of one push.
const remoteTimeout = 2 * time.Second

type Store interface {
	Persist(ctx context.Context, d domain.Draft) (*domain.Message, error)
}

// Locator finds the instances hosting a user's sessions.
type Locator interface {
	Instances(ctx context.Context, userID string) (map[string]string, error)
}

type Publisher interface {
	Publish(ctx context.Context, target string, f relay.Frame) error
}

type Dispatcher struct {
	registry   *websocket.Registry
	store      Store
	locator    Locator
	publisher  Publisher
	instanceID string
	locks      *keyedMutex
}

var _ websocket.Sender = (*Dispatcher)(nil)

func New(registry *websocket.Registry, store Store, instanceID string) *Dispatcher {
	return &Dispatcher{
		registry:   registry,
		store:      store,
		instanceID: instanceID,
		locks:      newKeyedMutex(),
	}
}

// WithRemote enables cross-instance delivery.
func (d *Dispatcher) WithRemote(locator Locator, publisher Publisher) *Dispatcher {
	d.locator = locator
	d.publisher = publisher
	return d
}

// Send handles one send_message from an authenticated session. The
// originating session receives exactly one reply addressed to it: either an
// error, or the message_sent echo that also goes to the sender's other
// sessions.
func (d *Dispatcher) Send(ctx context.Context, from *websocket.Session, env protocol.Envelope) {
	start := time.Now()
	ctx, span := otel.Tracer("dispatcher").Start(ctx, "dispatcher.Send")
	defer span.End()
	log := observability.GetLogger(ctx)

	draft := domain.Draft{
		SenderID:   from.UserID,
		ReceiverID: env.ReceiverID,
		ListingID:  env.ListingID,
		Content:    env.Content,
	}
	span.SetAttributes(
		attribute.String("sender_id", draft.SenderID),
		attribute.String("receiver_id", draft.ReceiverID),
	)

	if err := draft.Validate(); err != nil {
		d.reject(from, protocol.CodeValidation, err, env.ClientMsgID)
		return
	}

	// Persist and push to local sessions under the conversation lock so live
	// pushes for a pair leave this instance in persistence order. Presence
	// lookups and relay publishes run after the lock is released.
	unlock := d.locks.Lock(draft.ConversationKey())

	msg, err := d.store.Persist(ctx, draft)
	if err != nil {
		unlock()
		code := errorCode(err)
		if code == protocol.CodePersistence {
			observability.PersistenceFailuresTotal.Inc()
			log.Error("dispatcher: persist failed", zap.String("sender_id", draft.SenderID), zap.Error(err))
		}
		d.reject(from, code, err, env.ClientMsgID)
		return
	}
	observability.MessagesPersistedTotal.Inc()

	toReceiver := d.encode(ctx, protocol.NewMessage(msg))
	toSender := d.encode(ctx, protocol.MessageSent(msg, env.ClientMsgID))
	d.deliverLocal(ctx, msg.ReceiverID, toReceiver)
	d.deliverLocal(ctx, msg.SenderID, toSender)
	unlock()

	d.routeRemote(ctx, msg.ReceiverID, toReceiver)
	d.routeRemote(ctx, msg.SenderID, toSender)

	observability.MessageDispatchLatency.Observe(time.Since(start).Seconds())
	log.Debug("dispatcher: message delivered",
		zap.String("message_id", msg.ID),
		zap.String("sender_id", msg.SenderID),
		zap.String("receiver_id", msg.ReceiverID))
}

func (d *Dispatcher) reject(to *websocket.Session, code string, err error, clientMsgID string) {
	observability.RejectedEnvelopesTotal.WithLabelValues(code).Inc()
	to.SendEnvelope(protocol.Error(code, err.Error(), clientMsgID))
}

func (d *Dispatcher) encode(ctx context.Context, env protocol.Envelope) []byte {
	payload, err := protocol.Encode(env)
	if err != nil {
		observability.GetLogger(ctx).Error("dispatcher: failed to encode envelope", zap.Error(err))
		return nil
	}
	return payload
}

// routeRemote forwards payload to every other instance hosting a session of
// userID. Failures are counted and logged, never returned: the message is
// already durable and the history fetch recovers it.
func (d *Dispatcher) routeRemote(ctx context.Context, userID string, payload []byte) {
	if d.locator == nil || d.publisher == nil || payload == nil {
		return
	}
	log := observability.GetLogger(ctx)

	ctx, cancel := context.WithTimeout(ctx, remoteTimeout)
	defer cancel()

	instances, err := d.locator.Instances(ctx, userID)
	if err != nil {
		observability.DeliveryFailuresTotal.WithLabelValues("remote").Inc()
		log.Warn("dispatcher: presence lookup failed", zap.String("user_id", userID), zap.Error(err))
		return
	}

	remote := make(map[string]struct{})
	for _, inst := range instances {
		if inst != d.instanceID {
			remote[inst] = struct{}{}
		}
	}

	for inst := range remote {
		if err := d.publisher.Publish(ctx, inst, relay.Frame{UserID: userID, Envelope: payload}); err != nil {
			observability.DeliveryFailuresTotal.WithLabelValues("remote").Inc()
			log.Warn("dispatcher: remote routing failed", zap.String("instance", inst), zap.Error(err))
		}
	}
}

func (d *Dispatcher) deliverLocal(ctx context.Context, userID string, payload []byte) int {
	if payload == nil {
		return 0
	}
	delivered := 0
	for _, s := range d.registry.SessionsFor(userID) {
		if s.TrySend(payload) {
			delivered++
			continue
		}
		observability.DeliveryFailuresTotal.WithLabelValues("local").Inc()
		observability.GetLogger(ctx).Warn("dispatcher: live push dropped",
			zap.String("user_id", userID), zap.String("session_id", s.ID))
	}
	return delivered
}

// DeliverRemote fans a relayed frame out to this instance's sessions.
func (d *Dispatcher) DeliverRemote(f relay.Frame) {
	d.deliverLocal(context.Background(), f.UserID, f.Envelope)
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, domain.ErrEmptyContent),
		errors.Is(err, domain.ErrSelfMessage),
		errors.Is(err, domain.ErrMessageTooLarge),
		errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrInvalidMessage):
		return protocol.CodeValidation
	default:
		return protocol.CodePersistence
	}
}
