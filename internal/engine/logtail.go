package engine

import (
	"strings"

	"github.com/dockwatch-io/dockwatch/internal/models"
	"github.com/dockwatch-io/dockwatch/internal/payload"
)

// DefaultFollowDepth is how many historical log fetches follow mode
// stitches together.
const DefaultFollowDepth = 5

// followSeparator marks the boundary between chunks fetched at
// different times.
const followSeparator = "\n--- refetched ---\n"

// LogTail is the assembled log view for one target. Truncated reports
// that at least one contributing chunk hit the agent's size cap and
// therefore starts mid-stream.
type LogTail struct {
	Content   string `json:"content"`
	Truncated bool   `json:"truncated"`
}

// AssembleLogTail builds the log view for a target from its docker.logs
// history.
//
// Single-shot mode returns the latest successful fetch as-is. Follow
// mode stitches the last DefaultFollowDepth fetches in chronological
// order, separated visibly, with their truncation flags OR-reduced.
// Chunks that fail to decode are dropped from the assembly rather than
// failing it. No usable fetch yields the zero LogTail.
func AssembleLogTail(ix *Index, targetID string, follow bool) LogTail {
	recs := logFetches(ix, targetID)
	if len(recs) == 0 {
		return LogTail{}
	}

	if !follow {
		recs = recs[len(recs)-1:]
	} else if len(recs) > DefaultFollowDepth {
		recs = recs[len(recs)-DefaultFollowDepth:]
	}

	var parts []string
	truncated := false
	for _, rec := range recs {
		chunk, ok, err := payload.Decode[models.LogChunk](rec.OutputLog)
		if err != nil || !ok {
			continue
		}
		parts = append(parts, chunk.Lines)
		truncated = truncated || chunk.Truncated
	}
	return LogTail{
		Content:   strings.Join(parts, followSeparator),
		Truncated: truncated,
	}
}

// logFetches returns the target's successful docker.logs records in
// ascending CreatedAt order.
func logFetches(ix *Index, targetID string) []models.CommandRecord {
	var out []models.CommandRecord
	for _, rec := range ix.Successes(models.CommandContainerLogs) {
		if rec.Target() == targetID {
			out = append(out, rec)
		}
	}
	return out
}
