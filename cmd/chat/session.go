package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/SARVESHVARADKAR123/marketchat/internal/client"
	"github.com/SARVESHVARADKAR123/marketchat/internal/conversation"
	"github.com/SARVESHVARADKAR123/marketchat/internal/domain"
	"github.com/SARVESHVARADKAR123/marketchat/internal/protocol"
	"github.com/chzyer/readline"
	"go.uber.org/zap"
)

func runChat(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if userID == peerID {
		return errors.New("--user and --peer must differ")
	}
	base, err := historyBaseURL(serverURL)
	if err != nil {
		return err
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          userID + "> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "/quit",
	})
	if err != nil {
		return fmt.Errorf("failed to open terminal: %w", err)
	}
	defer rl.Close()

	scope := conversation.Scope{Self: userID, Peer: peerID, ListingID: listingID}
	out := newPrinter(rl.Stdout(), scope)

	var view *conversation.View
	ctrl := client.New(client.Options{
		URL:    serverURL,
		Token:  token,
		Logger: logger,
		OnStateChange: func(s client.State) {
			out.status(s.String())
			if s == client.Connected {
				// Catch up on anything sent while we were away.
				go out.refresh(ctx, view)
			}
		},
		OnMessage: out.message,
		OnError: func(env protocol.Envelope) {
			out.status(fmt.Sprintf("not sent (%s): %s", env.Code, env.Reason))
		},
	})
	defer ctrl.Close()

	view = conversation.NewView(scope, conversation.NewHistoryClient(base, userID, token), ctrl)
	out.refresh(ctx, view)
	ctrl.Start(userID)

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if line == "" {
				return nil
			}
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		line = strings.TrimSpace(line)
		switch line {
		case "":
			continue
		case "/quit":
			return nil
		}
		if !ctrl.Send(peerID, line, listingID) {
			out.status("offline, message not sent")
		}
	}
}

// historyBaseURL turns the socket URL into the HTTP origin serving /api.
func historyBaseURL(socket string) (string, error) {
	u, err := url.Parse(socket)
	if err != nil {
		return "", fmt.Errorf("invalid server url: %w", err)
	}
	switch u.Scheme {
	case "ws":
		u.Scheme = "http"
	case "wss":
		u.Scheme = "https"
	case "http", "https":
	default:
		return "", fmt.Errorf("invalid server url scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("invalid server url: missing host")
	}
	return u.Scheme + "://" + u.Host, nil
}

// printer writes each message of the conversation once, whichever path
// delivered it first.
type printer struct {
	mu    sync.Mutex
	w     io.Writer
	scope conversation.Scope
	shown map[string]struct{}
}

func newPrinter(w io.Writer, scope conversation.Scope) *printer {
	return &printer{w: w, scope: scope, shown: make(map[string]struct{})}
}

func (p *printer) message(m domain.Message) {
	if !p.scope.Contains(m) {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.shown[m.ID]; ok {
		return
	}
	p.shown[m.ID] = struct{}{}

	who := m.SenderID
	if who == p.scope.Self {
		who = "you"
	}
	fmt.Fprintf(p.w, "[%s] %s: %s\n", m.CreatedAt.Local().Format(time.Kitchen), who, m.Content)
}

func (p *printer) status(s string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, "-- %s\n", s)
}

func (p *printer) refresh(ctx context.Context, view *conversation.View) {
	if view == nil {
		return
	}
	messages, err := view.Refresh(ctx)
	if err != nil {
		logger.Warn("history fetch failed", zap.Error(err))
		p.status("history unavailable")
	}
	for _, m := range messages {
		p.message(m)
	}
}
