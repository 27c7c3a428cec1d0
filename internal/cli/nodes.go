package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var nodesCmd = &cobra.Command{
	Use:   "nodes",
	Short: "List configured nodes and their sync state",
	RunE:  runNodes,
}

type nodeItem struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	FetchedAt *time.Time `json:"fetchedAt"`
	Commands  int        `json:"commands"`
	Events    int        `json:"events"`
}

func runNodes(cmd *cobra.Command, args []string) error {
	client, err := connectDaemon()
	if err != nil {
		return err
	}

	var resp struct {
		Items []nodeItem `json:"items"`
	}
	if err := client.get("/api/nodes", &resp); err != nil {
		return err
	}

	if len(resp.Items) == 0 {
		fmt.Println("No nodes configured. Run 'dockwatch settings add-node <id>' to add one.")
		return nil
	}

	for _, n := range resp.Items {
		name := n.Name
		if name != n.ID {
			name = fmt.Sprintf("%s (%s)", n.Name, n.ID)
		}

		if n.FetchedAt == nil {
			fmt.Printf("  %s  %s\n", styleValue.Render(name), styleHint.Render("never synced"))
			continue
		}
		fmt.Printf("  %s  synced %s  %s\n",
			styleValue.Render(name),
			agoString(*n.FetchedAt),
			styleLabel.Render(fmt.Sprintf("%d commands, %d events", n.Commands, n.Events)))
	}

	return nil
}
