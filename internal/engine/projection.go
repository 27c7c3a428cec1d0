package engine

import (
	"fmt"
	"sync"
	"time"

	"github.com/dockwatch-io/dockwatch/internal/models"
	"github.com/dockwatch-io/dockwatch/internal/payload"
)

// Snapshot is one poll's immutable result: the command-log window and
// event window for a single node, stamped with the fetch time. The
// engine never mutates a snapshot; fresher data arrives as a new one.
type Snapshot struct {
	NodeID    string
	Commands  []models.CommandRecord
	Events    []models.AgentEvent
	FetchedAt time.Time
}

// ContainerView is a container row combined with its action overlay.
type ContainerView struct {
	models.ContainerSummary
	Action ActionStatus `json:"action"`
}

// StackView is a compose stack row combined with its action overlay.
type StackView struct {
	models.ComposeStack
	Action ActionStatus `json:"action"`
}

// Projector derives presentation-ready views from snapshots. Results
// are pure functions of the snapshot: the only state is a memo of the
// built index and attempt list, keyed by snapshot identity, so that a
// burst of view calls against one snapshot indexes it once. Safe for
// concurrent use.
type Projector struct {
	matcher Matcher

	mu       sync.Mutex
	key      snapKey
	valid    bool
	index    *Index
	attempts []Attempt
}

type snapKey struct {
	nodeID    string
	fetchedAt time.Time
	commands  int
	events    int
}

// NewProjector returns a projector using the given attempt matcher;
// nil selects GreedyMatcher.
func NewProjector(m Matcher) *Projector {
	return &Projector{matcher: m}
}

// materialize returns the index and attempts for a snapshot, reusing
// the memo when the snapshot has not changed.
func (p *Projector) materialize(snap *Snapshot) (*Index, []Attempt) {
	key := snapKey{snap.NodeID, snap.FetchedAt, len(snap.Commands), len(snap.Events)}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.valid && p.key == key {
		return p.index, p.attempts
	}
	p.index = NewIndex(snap.Commands)
	p.attempts = CorrelateAttempts(snap.Events, p.matcher)
	p.key = key
	p.valid = true
	return p.index, p.attempts
}

// Containers projects the container inventory with per-container action
// overlays. A missing or not-yet-answered docker.list yields an empty
// view; a malformed one yields an empty view plus a warning.
func (p *Projector) Containers(snap *Snapshot) ([]ContainerView, []string) {
	if snap == nil {
		return nil, nil
	}
	ix, _ := p.materialize(snap)

	rec, ok := ix.LatestSuccessful(models.CommandContainerList, nil)
	if !ok {
		return nil, nil
	}
	containers, ready, err := payload.Decode[[]models.ContainerSummary](rec.OutputLog)
	if err != nil {
		return nil, []string{viewWarning(rec, err)}
	}
	if !ready {
		return nil, nil
	}

	latest := ix.LatestByTarget(models.ContainerActionTypes...)
	views := make([]ContainerView, 0, len(containers))
	for _, c := range containers {
		views = append(views, ContainerView{
			ContainerSummary: c,
			Action:           actionStatus(c.ID, latest),
		})
	}
	return views, nil
}

// Stacks projects the compose stack inventory with up/down overlays.
func (p *Projector) Stacks(snap *Snapshot) ([]StackView, []string) {
	if snap == nil {
		return nil, nil
	}
	ix, _ := p.materialize(snap)

	rec, ok := ix.LatestSuccessful(models.CommandStackList, nil)
	if !ok {
		return nil, nil
	}
	stacks, ready, err := payload.Decode[[]models.ComposeStack](rec.OutputLog)
	if err != nil {
		return nil, []string{viewWarning(rec, err)}
	}
	if !ready {
		return nil, nil
	}

	latest := ix.LatestByTarget(models.StackActionTypes...)
	views := make([]StackView, 0, len(stacks))
	for _, s := range stacks {
		views = append(views, StackView{
			ComposeStack: s,
			Action:       actionStatus(s.Name, latest),
		})
	}
	return views, nil
}

// Stats projects the most recent full stats snapshot across the node's
// containers.
func (p *Projector) Stats(snap *Snapshot) ([]models.StatsSample, []string) {
	if snap == nil {
		return nil, nil
	}
	ix, _ := p.materialize(snap)

	rec, ok := ix.LatestSuccessful(models.CommandContainerStats, nil)
	if !ok {
		return nil, nil
	}
	samples, ready, err := payload.Decode[[]models.StatsSample](rec.OutputLog)
	if err != nil {
		return nil, []string{viewWarning(rec, err)}
	}
	if !ready {
		return nil, nil
	}
	return samples, nil
}

// StatsHistory reconstructs the metric series for one container.
func (p *Projector) StatsHistory(snap *Snapshot, targetID string, maxPoints int) []MetricPoint {
	if snap == nil {
		return nil
	}
	ix, _ := p.materialize(snap)
	return BuildSeries(ix, SeriesParams{
		TargetID:    targetID,
		CommandType: models.CommandContainerStats,
		MaxPoints:   maxPoints,
	})
}

// Logs assembles the log tail for one container.
func (p *Projector) Logs(snap *Snapshot, targetID string, follow bool) LogTail {
	if snap == nil {
		return LogTail{}
	}
	ix, _ := p.materialize(snap)
	return AssembleLogTail(ix, targetID, follow)
}

// Exec projects the latest exec result for one container. The bool is
// false while no result has arrived.
func (p *Projector) Exec(snap *Snapshot, targetID string) (models.ExecResult, bool, []string) {
	if snap == nil {
		return models.ExecResult{}, false, nil
	}
	ix, _ := p.materialize(snap)

	rec, ok := ix.LatestSuccessful(models.CommandContainerExec, func(target string) bool {
		return target == targetID
	})
	if !ok {
		return models.ExecResult{}, false, nil
	}
	res, ready, err := payload.Decode[models.ExecResult](rec.OutputLog)
	if err != nil {
		return models.ExecResult{}, false, []string{viewWarning(rec, err)}
	}
	return res, ready, nil
}

// Command looks up one record by ID in the deduplicated window. Callers
// track a submitted command this way until it turns terminal.
func (p *Projector) Command(snap *Snapshot, id string) (models.CommandRecord, bool) {
	if snap == nil {
		return models.CommandRecord{}, false
	}
	ix, _ := p.materialize(snap)
	return ix.ByID(id)
}

// Attempts projects the reconstructed agent-update history, most
// recent first.
func (p *Projector) Attempts(snap *Snapshot) []Attempt {
	if snap == nil {
		return nil
	}
	_, attempts := p.materialize(snap)
	return attempts
}

func viewWarning(rec models.CommandRecord, err error) string {
	return fmt.Sprintf("%s %s: %v", rec.Type, rec.ID, err)
}
