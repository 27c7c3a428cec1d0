// Package notify subscribes to the controller's websocket push feed.
// Pushed log lines and status changes are cache-invalidation signals
// only: each one nudges the poller to refetch, and the polled log stays
// the single source of truth. The daemon works correctly, just more
// slowly, when the feed is absent or broken.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	initialBackoff = time.Second
	maxBackoff     = 30 * time.Second
)

// Refresher is the poller surface the listener drives.
type Refresher interface {
	Refresh(nodeID string)
}

// pushMessage mirrors the controller's feed entries. Log lines carry a
// message, status changes carry a status; the listener treats both the
// same way.
type pushMessage struct {
	TargetID  string    `json:"targetId"`
	Timestamp time.Time `json:"timestamp,omitempty"`
	Message   string    `json:"message,omitempty"`
	Status    string    `json:"status,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// Options configures a Listener.
type Options struct {
	// BaseURL is the controller's HTTP base; the listener derives the
	// websocket scheme from it.
	BaseURL string
	Token   string
	Nodes   []string
	Poller  Refresher
	Logger  *slog.Logger
}

// Listener maintains one push subscription per node, reconnecting with
// backoff.
type Listener struct {
	baseURL string
	token   string
	poller  Refresher
	log     *slog.Logger

	mu      sync.Mutex
	runCtx  context.Context
	wg      sync.WaitGroup
	cancels map[string]context.CancelFunc
	nodes   []string
}

// New creates a listener. Subscriptions start when Run is called.
func New(opts Options) *Listener {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Listener{
		baseURL: opts.BaseURL,
		token:   opts.Token,
		poller:  opts.Poller,
		log:     log.With("component", "notify"),
		cancels: make(map[string]context.CancelFunc),
		nodes:   opts.Nodes,
	}
}

// Run starts the per-node subscriptions and blocks until ctx is
// cancelled.
func (l *Listener) Run(ctx context.Context) {
	l.mu.Lock()
	l.runCtx = ctx
	nodes := l.nodes
	l.mu.Unlock()

	l.Apply(nodes)
	<-ctx.Done()

	l.mu.Lock()
	for _, cancel := range l.cancels {
		cancel()
	}
	l.cancels = make(map[string]context.CancelFunc)
	l.mu.Unlock()
	l.wg.Wait()
}

// Apply reconfigures the subscribed node set. Safe to call while
// running; before Run it only records the configuration.
func (l *Listener) Apply(nodes []string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.nodes = nodes
	if l.runCtx == nil {
		return
	}

	for id, cancel := range l.cancels {
		cancel()
		delete(l.cancels, id)
	}
	for _, id := range nodes {
		ctx, cancel := context.WithCancel(l.runCtx)
		l.cancels[id] = cancel
		l.wg.Add(1)
		go func(nodeID string) {
			defer l.wg.Done()
			l.subscribe(ctx, nodeID)
		}(id)
	}
}

// subscribe keeps one node's feed alive for the life of ctx.
func (l *Listener) subscribe(ctx context.Context, nodeID string) {
	backoff := initialBackoff
	for {
		if err := l.listen(ctx, nodeID); err != nil {
			if ctx.Err() != nil {
				return
			}
			l.log.Warn("push feed dropped", "node", nodeID, "error", err, "retry_in", backoff)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, maxBackoff)
	}
}

func (l *Listener) listen(ctx context.Context, nodeID string) error {
	endpoint, err := feedURL(l.baseURL, nodeID)
	if err != nil {
		return err
	}

	header := http.Header{}
	if l.token != "" {
		header.Set("Authorization", "Bearer "+l.token)
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint, header)
	if err != nil {
		return fmt.Errorf("dialing push feed: %w", err)
	}
	defer conn.Close()
	l.log.Info("push feed connected", "node", nodeID)

	// Close the connection when ctx ends so ReadJSON unblocks.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		var msg pushMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return fmt.Errorf("reading push feed: %w", err)
		}
		l.log.Debug("push received", "node", nodeID, "target", msg.TargetID, "status", msg.Status)
		l.poller.Refresh(nodeID)
	}
}

// feedURL turns the controller's HTTP base URL into the node's
// websocket feed endpoint.
func feedURL(base, nodeID string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parsing controller URL: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	// Path holds the decoded form; String() escapes it.
	u.Path = strings.TrimRight(u.Path, "/") + "/api/nodes/" + nodeID + "/ws"
	return u.String(), nil
}
