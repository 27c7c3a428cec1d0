package cli

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dockwatch-io/dockwatch/internal/engine"
	"github.com/dockwatch-io/dockwatch/internal/models"
)

var stacksCmd = &cobra.Command{
	Use:   "stacks",
	Short: "List compose stacks on a node",
	RunE:  runStacks,
}

func runStacks(cmd *cobra.Command, args []string) error {
	node, err := resolveNode()
	if err != nil {
		return err
	}
	client, err := connectDaemon()
	if err != nil {
		return err
	}

	var resp viewResponse[engine.StackView]
	if err := client.get(nodePath(node, "/stacks"), &resp); err != nil {
		return err
	}

	if len(resp.Items) == 0 {
		fmt.Println("No compose stacks reported yet. Try 'dockwatch refresh'.")
		printWarnings(resp.Warnings)
		return nil
	}

	fmt.Printf("%-24s %-16s %s\n", "NAME", "STATUS", "SERVICES")
	for _, item := range resp.Items {
		fmt.Printf("%-24s %-16s %s%s\n",
			truncate(item.Name, 24),
			truncate(item.Status, 16),
			strings.Join(item.Services, ", "),
			renderPending(item.Action))
	}

	if resp.FetchedAt != nil {
		fmt.Println(styleHint.Render(fmt.Sprintf("\nAs of %s.", agoString(*resp.FetchedAt))))
	}
	printWarnings(resp.Warnings)
	return nil
}

// stackActionCommand builds a top-level verb like "up" or "down" that
// submits the matching compose command.
func stackActionCommand(verb, short string) *cobra.Command {
	return &cobra.Command{
		Use:   verb + " [stack]",
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
			path := nodePath(node, "/stacks/"+url.PathEscape(args[0])+"/"+verb)
			if err := client.post(path, nil, &resp); err != nil {
				return err
			}

			fmt.Printf("Submitted %s for stack %s (command %s).\n", verb, args[0], shortID(resp.Record.ID))
			fmt.Println(styleHint.Render("Watch it land with 'dockwatch stacks'."))
			return nil
		},
	}
}
