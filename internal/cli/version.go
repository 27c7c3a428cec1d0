package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/dockwatch-io/dockwatch/internal/buildinfo"
	"github.com/dockwatch-io/dockwatch/internal/config"
)

var versionCmd = &cobra.Command{
	Use:     "version",
	Aliases: []string{"v"},
	Short:   "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("%s %s\n", styleBrand.Render("Dockwatch"), buildinfo.Version)
		fmt.Printf("  Commit:  %s\n", buildinfo.Commit)
		fmt.Printf("  Built:   %s\n", buildinfo.Date)
		fmt.Printf("  OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		fmt.Printf("  Go:      %s\n", runtime.Version())

		printUpdateNotice()
	},
}

// printUpdateNotice asks a running daemon whether a newer release exists.
// Best effort only; the daemon is not started just to answer this.
func printUpdateNotice() {
	running, info, err := config.IsDaemonRunning()
	if err != nil || !running || info == nil {
		return
	}

	client := &apiClient{
		base: fmt.Sprintf("http://%s:%d", info.Host, info.Port),
		hc:   defaultHTTPClient(),
	}
	var resp struct {
		LatestVersion   string `json:"latestVersion"`
		UpdateAvailable bool   `json:"updateAvailable"`
	}
	if err := client.get("/version", &resp); err != nil {
		return
	}

	if resp.UpdateAvailable {
		fmt.Println()
		fmt.Println(styleUpdate.Render(fmt.Sprintf(
			"Update available: v%s. Run 'dockwatch update'.", resp.LatestVersion)))
	}
}
