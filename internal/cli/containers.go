package cli

import (
	"fmt"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/dockwatch-io/dockwatch/internal/engine"
	"github.com/dockwatch-io/dockwatch/internal/models"
)

var containersCmd = &cobra.Command{
	Use:     "containers",
	Aliases: []string{"ps"},
	Short:   "List containers on a node",
	RunE:    runContainers,
}

func runContainers(cmd *cobra.Command, args []string) error {
	node, err := resolveNode()
	if err != nil {
		return err
	}
	client, err := connectDaemon()
	if err != nil {
		return err
	}

	var resp viewResponse[engine.ContainerView]
	if err := client.get(nodePath(node, "/containers"), &resp); err != nil {
		return err
	}

	if len(resp.Items) == 0 {
		fmt.Println("No containers reported yet. Try 'dockwatch refresh'.")
		printWarnings(resp.Warnings)
		return nil
	}

	fmt.Printf("%-24s %-32s %-11s %s\n", "NAME", "IMAGE", "STATE", "STATUS")
	for _, item := range resp.Items {
		fmt.Printf("%-24s %-32s %s %s%s\n",
			truncate(item.Name(), 24),
			truncate(item.Image, 32),
			renderState(item.State),
			item.Status,
			renderPending(item.Action))
	}

	if resp.FetchedAt != nil {
		fmt.Println(styleHint.Render(fmt.Sprintf("\nAs of %s.", agoString(*resp.FetchedAt))))
	}
	printWarnings(resp.Warnings)
	return nil
}

// renderState colors a state cell. Padding happens before styling so the
// escape codes do not throw off column alignment.
func renderState(state string) string {
	cell := fmt.Sprintf("%-11s", state)
	switch state {
	case "running":
		return badgeRunning.Render(cell)
	case "exited":
		return badgeStopped.Render(cell)
	case "dead":
		return badgeFailed.Render(cell)
	case "restarting", "paused":
		return badgePending.Render(cell)
	default:
		return cell
	}
}

// renderPending marks rows that have an action in flight, e.g.
// "  ⟳ restart (sent)".
func renderPending(action engine.ActionStatus) string {
	if !action.Pending {
		return ""
	}
	return badgePending.Render(fmt.Sprintf("  ⟳ %s (%s)", action.Action, action.Status))
}

// containerActionCommand builds a top-level verb like "start" or "stop"
// that submits the matching container command.
func containerActionCommand(verb, short string) *cobra.Command {
	return &cobra.Command{
		Use:   verb + " [container]",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			node, err := resolveNode()
			if err != nil {
				return err
			}
			client, err := connectDaemon()
			if err != nil {
				return err
			}

			var resp struct {
				Record models.CommandRecord `json:"record"`
			}
			path := nodePath(node, "/containers/"+url.PathEscape(args[0])+"/"+verb)
			if err := client.post(path, nil, &resp); err != nil {
				return err
			}

			fmt.Printf("Submitted %s for %s (command %s).\n", verb, args[0], shortID(resp.Record.ID))
			fmt.Println(styleHint.Render("Watch it land with 'dockwatch containers'."))
			return nil
		},
	}
}

func nodePath(node, suffix string) string {
	return "/api/nodes/" + url.PathEscape(node) + suffix
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
