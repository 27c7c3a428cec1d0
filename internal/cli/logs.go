package cli

import (
	"fmt"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/dockwatch-io/dockwatch/internal/engine"
)

var logsFollow bool

var logsCmd = &cobra.Command{
	Use:   "logs [container]",
	Short: "Show recent logs for a container",
	Long: `Show the most recent log fetch for a container. With --follow the
last few fetches are stitched together, oldest first, to approximate a
running tail.`,
	Args: cobra.ExactArgs(1),
	RunE: runLogs,
}

func init() {
	logsCmd.Flags().BoolVarP(&logsFollow, "follow", "f", false, "stitch together the most recent fetches")
}

func runLogs(cmd *cobra.Command, args []string) error {
	node, err := resolveNode()
	if err != nil {
		return err
	}
	client, err := connectDaemon()
	if err != nil {
		return err
	}

	path := nodePath(node, "/containers/"+url.PathEscape(args[0])+"/logs")
	if logsFollow {
		path += "?follow=true"
	}

	var tail engine.LogTail
	if err := client.get(path, &tail); err != nil {
		return err
	}

	if tail.Content == "" {
		fmt.Printf("No log output recorded for %s yet. Try 'dockwatch refresh'.\n", args[0])
		return nil
	}

	fmt.Println(tail.Content)
	if tail.Truncated {
		fmt.Println(styleHint.Render("(output truncated by the agent)"))
	}
	return nil
}
