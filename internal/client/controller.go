// Package client keeps one authenticated chat connection alive for the
// current user and collects the messages pushed over it.
package client

import (
	"context"
	"sync"
	"time"

	"github.com/SARVESHVARADKAR123/marketchat/internal/domain"
	"github.com/SARVESHVARADKAR123/marketchat/internal/protocol"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	DefaultReconnectDelay = 3 * time.Second

	writeWait = 10 * time.Second
	// The server pings well inside this window.
	readWait = 70 * time.Second
)

type Options struct {
	URL            string
	Dialer         *websocket.Dialer
	ReconnectDelay time.Duration
	// Token is presented in the auth envelope when the server verifies identities.
	Token string

	// Callbacks run on the controller's event loop, one at a time.
	OnStateChange func(State)
	OnMessage     func(domain.Message)
	OnError       func(protocol.Envelope)

	Logger *zap.Logger
}

// Controller drives the connection state machine. Every transition happens on
// a single event-loop goroutine; public methods only post events and never
// block on the network.
type Controller struct {
	opts   Options
	log    *zap.Logger
	events chan event
	quit   chan struct{}
	done   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc

	closeOnce sync.Once

	// Owned by the event loop.
	state  State
	userID string
	owner  string
	gen    uint64
	conn   *websocket.Conn
	timer  *time.Timer

	mu       sync.RWMutex
	snapshot State
	live     []domain.Message
	seen     map[string]struct{}
}

type event interface{}

type startEvent struct{ userID string }

type stopEvent struct{}

type sendEvent struct{ env protocol.Envelope }

type dialedEvent struct {
	gen  uint64
	conn *websocket.Conn
	err  error
}

type frameEvent struct {
	gen uint64
	env protocol.Envelope
}

type closedEvent struct {
	gen uint64
	err error
}

type retryEvent struct{ gen uint64 }

func New(opts Options) *Controller {
	if opts.Dialer == nil {
		opts.Dialer = websocket.DefaultDialer
	}
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = DefaultReconnectDelay
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		opts:   opts,
		log:    log,
		events: make(chan event, 64),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
		ctx:    ctx,
		cancel: cancel,
		seen:   make(map[string]struct{}),
	}
	go c.loop()
	return c
}

// Start sets the active identity and begins connecting. Starting a different
// identity clears the live buffer.
func (c *Controller) Start(userID string) {
	c.post(startEvent{userID: userID})
}

// Stop clears the identity and drops the connection. No reconnect follows.
func (c *Controller) Stop() {
	c.post(stopEvent{})
}

// Close stops the controller and waits for its event loop to exit.
func (c *Controller) Close() {
	c.closeOnce.Do(func() {
		c.post(stopEvent{})
		close(c.quit)
		c.cancel()
		<-c.done
	})
}

// Send transmits a send_message when Connected and reports whether it was
// accepted for transmission. Outside Connected it does nothing; calls are not
// queued for a later connection. An accepted send is confirmed by a
// message_sent or rejected by an error envelope carrying the same clientMsgId.
func (c *Controller) Send(receiverID, content, listingID string) bool {
	if c.State() != Connected {
		return false
	}
	env := protocol.SendMessage(receiverID, content, listingID)
	env.ClientMsgID = uuid.NewString()

	select {
	case c.events <- sendEvent{env: env}:
		return true
	default:
		return false
	}
}

func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshot
}

// Live returns a copy of the messages received over the connection, in
// arrival order.
func (c *Controller) Live() []domain.Message {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]domain.Message, len(c.live))
	copy(out, c.live)
	return out
}

// post hands an event to the loop. It reports false once the controller is
// closed.
func (c *Controller) post(e event) bool {
	select {
	case c.events <- e:
		return true
	case <-c.quit:
		return false
	}
}

func (c *Controller) loop() {
	defer close(c.done)
	for {
		select {
		case e := <-c.events:
			c.handle(e)
		case <-c.quit:
			c.teardown()
			return
		}
	}
}

func (c *Controller) handle(e event) {
	switch e := e.(type) {
	case startEvent:
		c.onStart(e.userID)
	case stopEvent:
		c.teardown()
	case sendEvent:
		c.onSend(e.env)
	case dialedEvent:
		c.onDialed(e)
	case frameEvent:
		if e.gen == c.gen {
			c.onFrame(e.env)
		}
	case closedEvent:
		c.onClosed(e)
	case retryEvent:
		if e.gen == c.gen && c.state == Reconnecting && c.userID != "" {
			c.connect()
		}
	}
}

func (c *Controller) onStart(userID string) {
	if userID == "" {
		return
	}
	if userID == c.userID && c.state != Disconnected {
		return
	}
	if c.userID != "" {
		c.teardown()
	}
	if userID != c.owner {
		c.mu.Lock()
		c.live = nil
		c.seen = make(map[string]struct{})
		c.mu.Unlock()
		c.owner = userID
	}
	c.userID = userID
	c.connect()
}

// teardown leaves every connection-related state behind: the identity, the
// timer and the transport. Events from the old connection become stale.
func (c *Controller) teardown() {
	c.userID = ""
	c.gen++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.setState(Disconnected)
}

func (c *Controller) connect() {
	c.gen++
	gen := c.gen
	c.setState(Connecting)

	go func() {
		conn, _, err := c.opts.Dialer.DialContext(c.ctx, c.opts.URL, nil)
		if !c.post(dialedEvent{gen: gen, conn: conn, err: err}) && conn != nil {
			conn.Close()
		}
	}()
}

func (c *Controller) onDialed(e dialedEvent) {
	if e.gen != c.gen || c.userID == "" {
		if e.conn != nil {
			e.conn.Close()
		}
		return
	}
	if e.err != nil {
		c.log.Warn("dial failed", zap.String("url", c.opts.URL), zap.Error(e.err))
		c.scheduleReconnect()
		return
	}

	c.conn = e.conn
	c.conn.SetReadDeadline(time.Now().Add(readWait))
	c.conn.SetPingHandler(func(data string) error {
		e.conn.SetReadDeadline(time.Now().Add(readWait))
		return e.conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(writeWait))
	})
	go c.readLoop(e.gen, e.conn)

	if err := c.write(protocol.Auth(c.userID, c.opts.Token)); err != nil {
		c.log.Warn("auth write failed", zap.Error(err))
		c.dropConnection()
		return
	}
	c.setState(AwaitingAuthAck)
}

func (c *Controller) onFrame(env protocol.Envelope) {
	switch env.Type {
	case protocol.TypeAuthSuccess:
		if c.state == AwaitingAuthAck {
			c.setState(Connected)
		}
	case protocol.TypeNewMessage, protocol.TypeMessageSent:
		if c.state != Connected {
			return
		}
		if c.appendLive(*env.Message) && c.opts.OnMessage != nil {
			c.opts.OnMessage(*env.Message)
		}
	case protocol.TypeError:
		c.log.Debug("server error", zap.String("code", env.Code), zap.String("reason", env.Reason))
		if c.opts.OnError != nil {
			c.opts.OnError(env)
		}
	default:
		c.log.Debug("ignoring envelope", zap.String("type", string(env.Type)))
	}
}

func (c *Controller) onSend(env protocol.Envelope) {
	if c.state != Connected || c.conn == nil {
		return
	}
	if err := c.write(env); err != nil {
		c.log.Warn("send failed", zap.Error(err))
		c.dropConnection()
	}
}

func (c *Controller) onClosed(e closedEvent) {
	if e.gen != c.gen {
		return
	}
	c.log.Info("connection lost", zap.Error(e.err))
	c.conn = nil
	if c.userID == "" {
		c.setState(Disconnected)
		return
	}
	c.scheduleReconnect()
}

// dropConnection abandons the current transport as if it had closed.
func (c *Controller) dropConnection() {
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.scheduleReconnect()
}

func (c *Controller) scheduleReconnect() {
	c.gen++
	gen := c.gen
	c.setState(Reconnecting)
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = time.AfterFunc(c.opts.ReconnectDelay, func() {
		c.post(retryEvent{gen: gen})
	})
}

func (c *Controller) readLoop(gen uint64, conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.post(closedEvent{gen: gen, err: err})
			return
		}
		env, err := protocol.Decode(data)
		if err != nil {
			c.log.Warn("dropping undecodable frame", zap.Error(err))
			continue
		}
		c.post(frameEvent{gen: gen, env: env})
	}
}

func (c *Controller) write(env protocol.Envelope) error {
	payload, err := protocol.Encode(env)
	if err != nil {
		return err
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

func (c *Controller) appendLive(msg domain.Message) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.seen[msg.ID]; ok {
		return false
	}
	c.seen[msg.ID] = struct{}{}
	c.live = append(c.live, msg)
	return true
}

func (c *Controller) setState(s State) {
	if c.state == s {
		return
	}
	c.log.Debug("state change", zap.Stringer("from", c.state), zap.Stringer("to", s))
	c.state = s
	c.mu.Lock()
	c.snapshot = s
	c.mu.Unlock()
	if c.opts.OnStateChange != nil {
		c.opts.OnStateChange(s)
	}
}
