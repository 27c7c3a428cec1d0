package cli

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/dockwatch-io/dockwatch/internal/config"
	"github.com/dockwatch-io/dockwatch/internal/models"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage Dockwatch settings",
	Long: `Manage the settings stored in ~/.dockwatch/settings.yaml.
A running daemon picks up changes automatically.`,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings",
	RunE:  runSettingsShow,
}

var settingsSetControllerCmd = &cobra.Command{
	Use:   "set-controller [url]",
	Short: "Set the fleet controller URL",
	Args:  cobra.ExactArgs(1),
	RunE:  runSettingsSetController,
}

var settingsSetTokenCmd = &cobra.Command{
	Use:   "set-token",
	Short: "Set the controller API token",
	RunE:  runSettingsSetToken,
}

var settingsAddNodeCmd = &cobra.Command{
	Use:   "add-node [id] [name]",
	Short: "Add a node to watch",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runSettingsAddNode,
}

var settingsRemoveNodeCmd = &cobra.Command{
	Use:   "remove-node [id]",
	Short: "Stop watching a node",
	Args:  cobra.ExactArgs(1),
	RunE:  runSettingsRemoveNode,
}

var settingsAnalyticsCmd = &cobra.Command{
	Use:   "analytics [on|off]",
	Short: "Enable or disable anonymous usage reporting",
	Args:  cobra.ExactArgs(1),
	RunE:  runSettingsAnalytics,
}

func init() {
	settingsCmd.AddCommand(settingsAddNodeCmd)
	settingsCmd.AddCommand(settingsAnalyticsCmd)
	settingsCmd.AddCommand(settingsRemoveNodeCmd)
	settingsCmd.AddCommand(settingsSetControllerCmd)
	settingsCmd.AddCommand(settingsSetTokenCmd)
	settingsCmd.AddCommand(settingsShowCmd)
}

func runSettingsShow(cmd *cobra.Command, args []string) error {
	settings, err := config.LoadSettings()
	if err != nil {
		return err
	}

	fmt.Println(styleLabel.Render("Controller:"))
	fmt.Printf("  URL:   %s\n", settings.Controller.URL)
	fmt.Printf("  Token: %s\n", maskToken(settings.Controller.Token))

	if len(settings.Nodes) == 0 {
		fmt.Println(styleLabel.Render("\nNodes:") + " none configured")
	} else {
		fmt.Println(styleLabel.Render(fmt.Sprintf("\nNodes (%d):", len(settings.Nodes))))
		for _, n := range settings.Nodes {
			if n.Name != "" {
				fmt.Printf("  %s  (%s)\n", n.ID, n.Name)
			} else {
				fmt.Printf("  %s\n", n.ID)
			}
		}
	}

	fmt.Println(styleLabel.Render("\nPolling:"))
	fmt.Printf("  Commands: every %s, window %d records\n",
		settings.Polling.CommandInterval, settings.Polling.CommandLimit)
	fmt.Printf("  Events:   every %s, window %d records\n",
		settings.Polling.EventInterval, settings.Polling.EventLimit)

	fmt.Println(styleLabel.Render("\nUpdates:"))
	fmt.Printf("  Check on startup: %s (%s)\n",
		yesNo(settings.Updates.CheckOnStartup), settings.Updates.CheckFrequency)

	fmt.Println(styleLabel.Render("\nAnalytics:"))
	fmt.Printf("  Anonymous usage reporting: %s\n", enabledDisabled(!settings.Analytics.Disabled))

	return nil
}

func runSettingsSetController(cmd *cobra.Command, args []string) error {
	parsed, err := url.Parse(args[0])
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return fmt.Errorf("controller URL must look like https://host[:port]")
	}

	settings, err := config.LoadSettings()
	if err != nil {
		return err
	}
	settings.Controller.URL = strings.TrimRight(args[0], "/")
	if err := config.SaveSettings(settings); err != nil {
		return err
	}

	fmt.Printf("Controller set to %s.\n", settings.Controller.URL)
	return nil
}

func runSettingsSetToken(cmd *cobra.Command, args []string) error {
	fmt.Print("Controller token: ")
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return fmt.Errorf("read token: %w", err)
	}

	token := strings.TrimSpace(string(raw))
	if token == "" {
		return fmt.Errorf("token is empty")
	}

	settings, err := config.LoadSettings()
	if err != nil {
		return err
	}
	settings.Controller.Token = token
	if err := config.SaveSettings(settings); err != nil {
		return err
	}

	fmt.Println("Token saved.")
	return nil
}

func runSettingsAddNode(cmd *cobra.Command, args []string) error {
	settings, err := config.LoadSettings()
	if err != nil {
		return err
	}

	id := args[0]
	for _, n := range settings.Nodes {
		if n.ID == id {
			return fmt.Errorf("node %s is already configured", id)
		}
	}

	node := models.NodeConfig{ID: id}
	if len(args) == 2 {
		node.Name = args[1]
	}
	settings.Nodes = append(settings.Nodes, node)
	if err := config.SaveSettings(settings); err != nil {
		return err
	}

	fmt.Printf("Added node %s.\n", id)
	fmt.Println(styleHint.Render("The daemon starts polling it right away."))
	return nil
}

func runSettingsRemoveNode(cmd *cobra.Command, args []string) error {
	settings, err := config.LoadSettings()
	if err != nil {
		return err
	}

	id := args[0]
	kept := settings.Nodes[:0]
	removed := false
	for _, n := range settings.Nodes {
		if n.ID == id {
			removed = true
			continue
		}
		kept = append(kept, n)
	}
	if !removed {
		return fmt.Errorf("node %s is not configured", id)
	}

	settings.Nodes = kept
	if err := config.SaveSettings(settings); err != nil {
		return err
	}

	fmt.Printf("Removed node %s.\n", id)
	return nil
}

func runSettingsAnalytics(cmd *cobra.Command, args []string) error {
	var disabled bool
	switch strings.ToLower(args[0]) {
	case "on":
		disabled = false
	case "off":
		disabled = true
	default:
		return fmt.Errorf("expected 'on' or 'off', got %q", args[0])
	}

	settings, err := config.LoadSettings()
	if err != nil {
		return err
	}
	settings.Analytics.Disabled = disabled
	if err := config.SaveSettings(settings); err != nil {
		return err
	}

	fmt.Printf("Anonymous usage reporting %s.\n", enabledDisabled(!disabled))
	return nil
}

func maskToken(token string) string {
	switch {
	case token == "":
		return styleHint.Render("(not set)")
	case len(token) < 8:
		return "set"
	default:
		return token[:4] + "…"
	}
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

func enabledDisabled(v bool) string {
	if v {
		return "enabled"
	}
	return "disabled"
}
