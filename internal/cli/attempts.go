package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dockwatch-io/dockwatch/internal/engine"
)

var attemptsLimit int

var attemptsCmd = &cobra.Command{
	Use:   "attempts",
	Short: "Show recent agent update attempts",
	Long: `Show the agent's recent self-update attempts, reconstructed from
its lifecycle events. Completed attempts pair a start with its outcome;
an attempt still in flight shows as running.`,
	RunE: runAttempts,
}

func init() {
	attemptsCmd.Flags().IntVar(&attemptsLimit, "limit", 20, "maximum attempts to show")
}

func runAttempts(cmd *cobra.Command, args []string) error {
	node, err := resolveNode()
	if err != nil {
		return err
	}
	client, err := connectDaemon()
	if err != nil {
		return err
	}

	var resp viewResponse[engine.Attempt]
	if err := client.get(nodePath(node, "/attempts"), &resp); err != nil {
		return err
	}

	if len(resp.Items) == 0 {
		fmt.Println("No update attempts recorded.")
		return nil
	}

	items := resp.Items
	if attemptsLimit > 0 && len(items) > attemptsLimit {
		items = items[:attemptsLimit]
	}

	for _, a := range items {
		fmt.Printf("  %s %s  %s%s\n",
			attemptGlyph(a),
			a.StartedAt.Local().Format("2006-01-02 15:04:05"),
			attemptSummary(a),
			attemptDetail(a))
	}

	if resp.FetchedAt != nil {
		fmt.Println(styleHint.Render(fmt.Sprintf("\nAs of %s.", agoString(*resp.FetchedAt))))
	}
	return nil
}

func attemptGlyph(a engine.Attempt) string {
	switch {
	case a.CompletedAt == nil:
		return badgePending.Render("…")
	case a.Success != nil && *a.Success:
		return styleSuccess.Render("✓")
	default:
		return styleError.Render("✗")
	}
}

func attemptSummary(a engine.Attempt) string {
	target := a.TargetID
	if target == "" {
		target = "unknown machine"
	}

	switch {
	case a.CompletedAt == nil:
		return fmt.Sprintf("%s: running", target)
	case a.Success != nil && *a.Success:
		d := a.CompletedAt.Sub(a.StartedAt).Truncate(100 * time.Millisecond)
		return fmt.Sprintf("%s: succeeded in %s", target, d)
	default:
		return fmt.Sprintf("%s: failed", target)
	}
}

func attemptDetail(a engine.Attempt) string {
	var detail string
	if a.Metadata.Version != "" {
		detail += styleLabel.Render("  version " + a.Metadata.Version)
	}
	if a.Actor != "" {
		detail += styleLabel.Render("  by " + a.Actor)
	}
	if a.Error != "" {
		detail += styleError.Render("  " + truncate(a.Error, 60))
	}
	return detail
}
