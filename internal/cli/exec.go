package cli

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/dockwatch-io/dockwatch/internal/models"
)

var (
	execTimeout time.Duration
	execNoWait  bool
)

var execCmd = &cobra.Command{
	Use:   "exec [container] [command...]",
	Short: "Run a command in a container",
	Long: `Submit a command to run inside a container and wait for the result
to come back through the command log.`,
	Args: cobra.MinimumNArgs(2),
	RunE: runExec,
}

var execResultCmd = &cobra.Command{
	Use:   "exec-result [container]",
	Short: "Show the latest exec result for a container",
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
		return printExecResult(client, node, args[0])
	},
}

func init() {
	execCmd.Flags().DurationVar(&execTimeout, "timeout", 30*time.Second, "how long to wait for the result")
	execCmd.Flags().BoolVar(&execNoWait, "no-wait", false, "submit without waiting for the result")
}

func runExec(cmd *cobra.Command, args []string) error {
	node, err := resolveNode()
	if err != nil {
		return err
	}
	client, err := connectDaemon()
	if err != nil {
		return err
	}

	container := args[0]
	body := map[string]any{"containerId": container, "command": args[1:]}
	var submitted struct {
		Record models.CommandRecord `json:"record"`
	}
	if err := client.post(nodePath(node, "/exec"), body, &submitted); err != nil {
		return err
	}

	if execNoWait {
		fmt.Printf("Submitted exec for %s (command %s).\n", container, shortID(submitted.Record.ID))
		fmt.Println(styleHint.Render(fmt.Sprintf("Fetch the result with 'dockwatch exec-result %s'.", container)))
		return nil
	}

	record, err := waitForCommand(client, node, submitted.Record.ID, execTimeout)
	if err != nil {
		return err
	}
	if record.Status == models.CommandFailed {
		return fmt.Errorf("exec failed: %s", record.Error)
	}

	return printExecResult(client, node, container)
}

// waitForCommand polls the daemon until the command reaches a terminal
// status. A 404 right after submission is normal: the record enters the
// window on the poller's next fetch.
func waitForCommand(client *apiClient, node, id string, timeout time.Duration) (models.CommandRecord, error) {
	deadline := time.Now().Add(timeout)
	path := nodePath(node, "/commands/"+url.PathEscape(id))

	for {
		var resp struct {
			Record models.CommandRecord `json:"record"`
		}
		if err := client.get(path, &resp); err == nil && resp.Record.IsTerminal() {
			return resp.Record, nil
		}

		if time.Now().After(deadline) {
			return models.CommandRecord{}, fmt.Errorf(
				"timed out waiting for command %s; the agent may still be working", shortID(id))
		}
		time.Sleep(500 * time.Millisecond)
	}
}

func printExecResult(client *apiClient, node, container string) error {
	var resp struct {
		Ready    bool              `json:"ready"`
		Result   models.ExecResult `json:"result"`
		Warnings []string          `json:"warnings"`
	}
	if err := client.get(nodePath(node, "/containers/"+url.PathEscape(container)+"/exec"), &resp); err != nil {
		return err
	}

	printWarnings(resp.Warnings)
	if !resp.Ready {
		fmt.Printf("No exec result for %s yet.\n", container)
		return nil
	}

	if resp.Result.Stdout != "" {
		fmt.Print(resp.Result.Stdout)
	}
	if resp.Result.Stderr != "" {
		fmt.Fprint(os.Stderr, resp.Result.Stderr)
	}
	if resp.Result.ExitCode != 0 {
		return fmt.Errorf("command exited with code %d", resp.Result.ExitCode)
	}
	return nil
}
