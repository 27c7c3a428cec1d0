// Package poller drives the fleet polling loops. All concurrency lives
// here: per-node goroutines refetch the command log and event stream on
// tickers (and on demand) and store immutable snapshots for the engine
// to project. The engine itself never waits on anything.
package poller

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dockwatch-io/dockwatch/internal/engine"
	"github.com/dockwatch-io/dockwatch/internal/models"
	"github.com/dockwatch-io/dockwatch/internal/remote"
)

const pollTimeout = 20 * time.Second

// Source is the slice of the controller API the poller consumes.
// *remote.Client satisfies it.
type Source interface {
	ListCommands(ctx context.Context, nodeID string, limit int) ([]models.CommandRecord, error)
	ListEvents(ctx context.Context, filter remote.EventFilter) ([]models.AgentEvent, error)
}

// Options configures a Poller.
type Options struct {
	Client  Source
	Nodes   []models.NodeConfig
	Polling models.PollingConfig
	Logger  *slog.Logger
	Metrics *Metrics
}

type nodeLoop struct {
	cancel  context.CancelFunc
	refresh chan struct{}
}

// Poller keeps one polling loop per configured node and a store of
// their freshest snapshots.
type Poller struct {
	client  Source
	store   *Store
	log     *slog.Logger
	metrics *Metrics

	mu      sync.Mutex
	runCtx  context.Context
	wg      sync.WaitGroup
	loops   map[string]nodeLoop
	nodes   []models.NodeConfig
	polling models.PollingConfig
}

// New creates a poller. Loops start when Run is called.
func New(opts Options) *Poller {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &Poller{
		client:  opts.Client,
		store:   NewStore(),
		log:     log.With("component", "poller"),
		metrics: metrics,
		loops:   make(map[string]nodeLoop),
		nodes:   opts.Nodes,
		polling: normalizePolling(opts.Polling),
	}
}

// Store exposes the snapshot store for readers.
func (p *Poller) Store() *Store { return p.store }

// Run starts the per-node loops and blocks until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) {
	p.mu.Lock()
	p.runCtx = ctx
	nodes := p.nodes
	p.mu.Unlock()

	p.Apply(nodes, p.polling)
	<-ctx.Done()

	p.mu.Lock()
	for _, loop := range p.loops {
		loop.cancel()
	}
	p.loops = make(map[string]nodeLoop)
	p.mu.Unlock()
	p.wg.Wait()
}

// Apply reconfigures the node set and poll cadence. Loops for removed
// nodes stop and their snapshots drop; new and surviving nodes (whose
// cadence may have changed) start fresh loops. Safe to call while
// running; before Run it only records the configuration.
func (p *Poller) Apply(nodes []models.NodeConfig, polling models.PollingConfig) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.nodes = nodes
	p.polling = normalizePolling(polling)
	if p.runCtx == nil {
		return
	}

	keep := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		keep[n.ID] = true
	}
	for id, loop := range p.loops {
		loop.cancel()
		delete(p.loops, id)
		if !keep[id] {
			p.store.drop(id)
		}
	}
	for _, n := range nodes {
		p.startNodeLocked(n)
	}
}

// Refresh nudges a node's loop to poll immediately. Unknown nodes and
// already-pending refreshes are ignored.
func (p *Poller) Refresh(nodeID string) {
	p.mu.Lock()
	loop, ok := p.loops[nodeID]
	p.mu.Unlock()
	if !ok {
		return
	}
	select {
	case loop.refresh <- struct{}{}:
	default:
	}
}

// Nodes returns the currently configured node set.
func (p *Poller) Nodes() []models.NodeConfig {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]models.NodeConfig, len(p.nodes))
	copy(out, p.nodes)
	return out
}

func (p *Poller) startNodeLocked(node models.NodeConfig) {
	ctx, cancel := context.WithCancel(p.runCtx)
	loop := nodeLoop{cancel: cancel, refresh: make(chan struct{}, 1)}
	p.loops[node.ID] = loop

	polling := p.polling
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.runNode(ctx, node, polling, loop.refresh)
	}()
}

func (p *Poller) runNode(ctx context.Context, node models.NodeConfig, polling models.PollingConfig, refresh <-chan struct{}) {
	p.log.Info("polling node",
		"node", node.ID,
		"command_interval", polling.CommandInterval,
		"event_interval", polling.EventInterval)

	commands := time.NewTicker(polling.CommandInterval)
	defer commands.Stop()
	events := time.NewTicker(polling.EventInterval)
	defer events.Stop()

	p.poll(ctx, node, polling, true)
	for {
		select {
		case <-ctx.Done():
			return
		case <-commands.C:
			p.poll(ctx, node, polling, false)
		case <-events.C:
			p.poll(ctx, node, polling, true)
		case <-refresh:
			p.poll(ctx, node, polling, true)
		}
	}
}

// poll fetches a node's command window (and, when withEvents is set,
// its event window) and installs the result as the node's snapshot.
// A failed command fetch keeps the previous snapshot untouched; a
// failed event fetch degrades to the previously known events.
func (p *Poller) poll(ctx context.Context, node models.NodeConfig, polling models.PollingConfig, withEvents bool) {
	ctx, cancel := context.WithTimeout(ctx, pollTimeout)
	defer cancel()

	started := time.Now()
	records, err := p.client.ListCommands(ctx, node.ID, polling.CommandLimit)
	if err != nil {
		p.metrics.Errors.WithLabelValues(node.ID, "commands").Inc()
		p.log.Warn("command poll failed", "node", node.ID, "error", err)
		return
	}

	events := p.previousEvents(node.ID)
	if withEvents {
		fetched, err := p.client.ListEvents(ctx, remote.EventFilter{
			NodeID:   node.ID,
			Category: models.EventCategoryAgents,
			Limit:    polling.EventLimit,
		})
		if err != nil {
			p.metrics.Errors.WithLabelValues(node.ID, "events").Inc()
			p.log.Warn("event poll failed", "node", node.ID, "error", err)
		} else {
			events = fetched
		}
	}

	p.store.put(&engine.Snapshot{
		NodeID:    node.ID,
		Commands:  records,
		Events:    events,
		FetchedAt: time.Now().UTC(),
	})

	p.metrics.Polls.WithLabelValues(node.ID).Inc()
	p.metrics.Duration.Observe(time.Since(started).Seconds())
	p.metrics.Records.WithLabelValues(node.ID, "commands").Set(float64(len(records)))
	p.metrics.Records.WithLabelValues(node.ID, "events").Set(float64(len(events)))
}

func (p *Poller) previousEvents(nodeID string) []models.AgentEvent {
	if snap, ok := p.store.Snapshot(nodeID); ok {
		return snap.Events
	}
	return nil
}

func normalizePolling(polling models.PollingConfig) models.PollingConfig {
	defaults := models.NewSettings().Polling
	if polling.CommandInterval <= 0 {
		polling.CommandInterval = defaults.CommandInterval
	}
	if polling.EventInterval <= 0 {
		polling.EventInterval = defaults.EventInterval
	}
	if polling.CommandLimit <= 0 {
		polling.CommandLimit = defaults.CommandLimit
	}
	if polling.EventLimit <= 0 {
		polling.EventLimit = defaults.EventLimit
	}
	return polling
}
