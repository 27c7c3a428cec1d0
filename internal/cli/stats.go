package cli

import (
	"fmt"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/dockwatch-io/dockwatch/internal/engine"
	"github.com/dockwatch-io/dockwatch/internal/models"
)

var statsPoints int

var statsCmd = &cobra.Command{
	Use:   "stats [container]",
	Short: "Show resource usage",
	Long: `Show the latest resource usage for all containers, or the recent
history for one container when its name or ID is given.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStats,
}

func init() {
	statsCmd.Flags().IntVar(&statsPoints, "points", engine.DefaultSeriesPoints,
		"history points to show for a single container")
}

func runStats(cmd *cobra.Command, args []string) error {
	node, err := resolveNode()
	if err != nil {
		return err
	}
	client, err := connectDaemon()
	if err != nil {
		return err
	}

	if len(args) == 1 {
		return showStatsHistory(client, node, args[0])
	}

	var resp viewResponse[models.StatsSample]
	if err := client.get(nodePath(node, "/stats"), &resp); err != nil {
		return err
	}

	if len(resp.Items) == 0 {
		fmt.Println("No stats reported yet. Try 'dockwatch refresh'.")
		printWarnings(resp.Warnings)
		return nil
	}

	fmt.Printf("%-24s %-8s %-8s %-20s %-16s %s\n", "CONTAINER", "CPU", "MEM", "MEM USAGE", "NET I/O", "PIDS")
	for _, s := range resp.Items {
		name := s.Name
		if name == "" {
			name = shortID(s.ContainerID)
		}
		fmt.Printf("%-24s %-8s %-8s %-20s %-16s %d\n",
			truncate(name, 24), s.CPUPercent, s.MemPercent, s.MemUsage, s.NetIO, s.PIDs)
	}

	if resp.FetchedAt != nil {
		fmt.Println(styleHint.Render(fmt.Sprintf("\nAs of %s.", agoString(*resp.FetchedAt))))
	}
	printWarnings(resp.Warnings)
	return nil
}

func showStatsHistory(client *apiClient, node, target string) error {
	var resp struct {
		Target string               `json:"target"`
		Points []engine.MetricPoint `json:"points"`
	}
	path := nodePath(node, "/containers/"+url.PathEscape(target)+"/stats")
	path += fmt.Sprintf("?points=%d", statsPoints)
	if err := client.get(path, &resp); err != nil {
		return err
	}

	if len(resp.Points) == 0 {
		fmt.Printf("No stats history for %s yet.\n", target)
		return nil
	}

	fmt.Printf("%-10s %8s %8s\n", "TIME", "CPU", "MEM")
	for _, p := range resp.Points {
		fmt.Printf("%-10s %8s %8s\n",
			p.Time.Local().Format("15:04:05"),
			percentCell(p.Values["cpu"]),
			percentCell(p.Values["memory"]))
	}
	return nil
}

// percentCell renders one sample value; a nil sample is a gap in the
// series, shown as a dash rather than a zero.
func percentCell(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.1f%%", *v)
}
