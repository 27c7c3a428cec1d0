package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Trigger an immediate poll of a node",
	RunE:  runRefresh,
}

func runRefresh(cmd *cobra.Command, args []string) error {
	node, err := resolveNode()
	if err != nil {
		return err
	}
	client, err := connectDaemon()
	if err != nil {
		return err
	}

	if err := client.post(nodePath(node, "/refresh"), nil, nil); err != nil {
		return err
	}

	fmt.Printf("Refresh requested for %s.\n", node)
	return nil
}
