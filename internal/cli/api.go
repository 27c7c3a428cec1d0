package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dockwatch-io/dockwatch/internal/config"
)

// apiClient talks to the daemon's HTTP API.
type apiClient struct {
	base string
	hc   *http.Client
}

// connectDaemon makes sure the daemon is running and returns a client
// bound to its API address.
func connectDaemon() (*apiClient, error) {
	if err := EnsureDaemon(); err != nil {
		return nil, err
	}

	info, err := config.LoadDaemonInfo()
	if err != nil {
		return nil, fmt.Errorf("load daemon info: %w", err)
	}
	if info == nil {
		return nil, fmt.Errorf("daemon not running")
	}

	return &apiClient{
		base: fmt.Sprintf("http://%s:%d", info.Host, info.Port),
		hc:   defaultHTTPClient(),
	}, nil
}

func defaultHTTPClient() *http.Client {
	return &http.Client{Timeout: 15 * time.Second}
}

// viewResponse is the envelope the daemon wraps list projections in.
type viewResponse[T any] struct {
	Items     []T        `json:"items"`
	Warnings  []string   `json:"warnings"`
	FetchedAt *time.Time `json:"fetchedAt"`
}

func (c *apiClient) get(path string, out any) error {
	req, err := http.NewRequest(http.MethodGet, c.base+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *apiClient) post(path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequest(http.MethodPost, c.base+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, out)
}

func (c *apiClient) do(req *http.Request, out any) error {
	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("daemon request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error != "" {
			return fmt.Errorf("%s", apiErr.Error)
		}
		return fmt.Errorf("daemon returned %s", resp.Status)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode daemon response: %w", err)
	}
	return nil
}

// printWarnings reports per-record decode problems without failing the
// command; the daemon degrades broken records into warnings.
func printWarnings(warnings []string) {
	for _, w := range warnings {
		fmt.Println(styleWarning.Render("warning: ") + w)
	}
}

// agoString formats the elapsed time since t for display, e.g. "12s ago".
func agoString(t time.Time) string {
	d := time.Since(t)
	if d < 0 {
		d = 0
	}
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds ago", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return t.Local().Format("2006-01-02 15:04")
	}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
