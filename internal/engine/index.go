// Package engine rebuilds queryable dashboard views from polled
// command-log snapshots. Every operation is a pure function over the
// records and events it is given: the poller owns fetching and
// concurrency, the engine only derives. A malformed record degrades
// the one view that needed it, never the whole projection.
package engine

import (
	"sort"

	"github.com/dockwatch-io/dockwatch/internal/models"
)

// statusRank orders command statuses by lifecycle progress so that
// overlapping polls observing the same ID keep the most advanced state.
var statusRank = map[models.CommandStatus]int{
	models.CommandQueued:     0,
	models.CommandSent:       1,
	models.CommandInProgress: 2,
	models.CommandSuccess:    3,
	models.CommandFailed:     3,
}

// Index is an in-memory view over one node's command-log window,
// deduplicated by record ID. Built once per snapshot, never mutated.
type Index struct {
	records []models.CommandRecord // deduped, original input order
}

// NewIndex builds an index from a log window handed over in any order.
// Duplicate IDs from overlapping polls collapse into one record with
// the most advanced status; the first-seen record keeps its input
// position so CreatedAt tie-breaks stay stable across rebuilds.
func NewIndex(records []models.CommandRecord) *Index {
	deduped := make([]models.CommandRecord, 0, len(records))
	pos := make(map[string]int, len(records))
	for _, rec := range records {
		i, seen := pos[rec.ID]
		if !seen {
			pos[rec.ID] = len(deduped)
			deduped = append(deduped, rec)
			continue
		}
		if statusRank[rec.Status] > statusRank[deduped[i].Status] {
			deduped[i] = rec
		}
	}
	return &Index{records: deduped}
}

// Len reports how many distinct records the index holds.
func (ix *Index) Len() int { return len(ix.records) }

// ByID returns the deduplicated record with the given ID.
func (ix *Index) ByID(id string) (models.CommandRecord, bool) {
	for _, rec := range ix.records {
		if rec.ID == id {
			return rec, true
		}
	}
	return models.CommandRecord{}, false
}

// LatestSuccessful returns the most recent Success record of the given
// type. A non-nil match narrows the scan to records whose correlation
// key it accepts; untargeted records reach it with an empty key rather
// than being excluded. Ties on CreatedAt keep the earlier input
// position.
func (ix *Index) LatestSuccessful(commandType string, match func(target string) bool) (models.CommandRecord, bool) {
	var best models.CommandRecord
	found := false
	for _, rec := range ix.records {
		if rec.Type != commandType || rec.Status != models.CommandSuccess {
			continue
		}
		if match != nil && !match(rec.Target()) {
			continue
		}
		if !found || rec.CreatedAt.After(best.CreatedAt) {
			best = rec
			found = true
		}
	}
	return best, found
}

// LatestByTarget returns, for a family of action command types, the
// single most recent record per correlation key regardless of status.
// Records whose payload yields no key group under the empty key rather
// than being dropped.
func (ix *Index) LatestByTarget(commandTypes ...string) map[string]models.CommandRecord {
	types := make(map[string]bool, len(commandTypes))
	for _, t := range commandTypes {
		types[t] = true
	}

	latest := make(map[string]models.CommandRecord)
	for _, rec := range ix.records {
		if !types[rec.Type] {
			continue
		}
		target := rec.Target()
		cur, seen := latest[target]
		if !seen || rec.CreatedAt.After(cur.CreatedAt) {
			latest[target] = rec
		}
	}
	return latest
}

// Successes returns every Success record of the given type that carries
// output, in ascending CreatedAt order. Equal timestamps keep their
// input order.
func (ix *Index) Successes(commandType string) []models.CommandRecord {
	var out []models.CommandRecord
	for _, rec := range ix.records {
		if rec.Type == commandType && rec.Status == models.CommandSuccess && rec.OutputLog != "" {
			out = append(out, rec)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}
