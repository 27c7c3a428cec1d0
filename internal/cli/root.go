// Package cli implements the dockwatch CLI commands.
package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dockwatch-io/dockwatch/internal/config"
)

var nodeFlag string

var rootCmd = &cobra.Command{
	Use:   "dockwatch",
	Short: "Operate Docker machines through the fleet controller",
	Long: `Dockwatch drives containers and compose stacks on managed machines.
Commands are submitted to the fleet controller; results arrive
asynchronously and are reconstructed from the controller's command log.`,
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&nodeFlag, "node", "n", "",
		"node ID to operate on (defaults to the only configured node)")

	// Add subcommands (alphabetical)
	rootCmd.AddCommand(attemptsCmd)
	rootCmd.AddCommand(containersCmd)
	rootCmd.AddCommand(daemonCmd)
	rootCmd.AddCommand(execCmd)
	rootCmd.AddCommand(execResultCmd)
	rootCmd.AddCommand(logsCmd)
	rootCmd.AddCommand(nodesCmd)
	rootCmd.AddCommand(refreshCmd)
	rootCmd.AddCommand(settingsCmd)
	rootCmd.AddCommand(stacksCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(versionCmd)

	// Container and stack verbs
	rootCmd.AddCommand(containerActionCommand("start", "Start a container"))
	rootCmd.AddCommand(containerActionCommand("stop", "Stop a container"))
	rootCmd.AddCommand(containerActionCommand("restart", "Restart a container"))
	rootCmd.AddCommand(containerActionCommand("remove", "Remove a container"))
	rootCmd.AddCommand(stackActionCommand("up", "Bring a compose stack up"))
	rootCmd.AddCommand(stackActionCommand("down", "Tear a compose stack down"))
}

// resolveNode picks the node commands operate on: the --node flag if
// given, otherwise the single configured node.
func resolveNode() (string, error) {
	if nodeFlag != "" {
		return nodeFlag, nil
	}

	settings, err := config.LoadSettings()
	if err != nil {
		return "", fmt.Errorf("load settings: %w", err)
	}

	switch len(settings.Nodes) {
	case 0:
		return "", fmt.Errorf("no nodes configured. Run 'dockwatch settings add-node <id>' first")
	case 1:
		return settings.Nodes[0].ID, nil
	default:
		ids := make([]string, len(settings.Nodes))
		for i, n := range settings.Nodes {
			ids[i] = n.ID
		}
		return "", fmt.Errorf("multiple nodes configured (%s); pick one with --node", strings.Join(ids, ", "))
	}
}
