package models

// ContainerSummary is one row of a docker.list result.
type ContainerSummary struct {
	ID      string   `json:"id"`
	Names   []string `json:"names,omitempty"`
	Image   string   `json:"image"`
	State   string   `json:"state"`
	Status  string   `json:"status,omitempty"`
	Stack   string   `json:"stack,omitempty"`
	Created int64    `json:"created,omitempty"`
	Ports   []Port   `json:"ports,omitempty"`
}

// Port describes one published port of a container.
type Port struct {
	PrivatePort int    `json:"privatePort"`
	PublicPort  int    `json:"publicPort,omitempty"`
	Type        string `json:"type,omitempty"`
	IP          string `json:"ip,omitempty"`
}

// Name returns the container's primary name, stripped of the leading
// slash the engine prepends, or a shortened ID when it has none.
func (c ContainerSummary) Name() string {
	if len(c.Names) > 0 {
		name := c.Names[0]
		if len(name) > 0 && name[0] == '/' {
			name = name[1:]
		}
		if name != "" {
			return name
		}
	}
	if len(c.ID) > 12 {
		return c.ID[:12]
	}
	return c.ID
}

// ComposeStack is one row of a compose.list result.
type ComposeStack struct {
	Name        string   `json:"name"`
	Status      string   `json:"status,omitempty"`
	ConfigFiles string   `json:"configFiles,omitempty"`
	Services    []string `json:"services,omitempty"`
}

// StatsSample is one docker.stats result. The agent reports the
// percentage gauges as display strings ("42.7%", "12 %"); they stay
// strings on the wire and are parsed into numbers on the read side.
type StatsSample struct {
	ContainerID string `json:"containerId"`
	Name        string `json:"name,omitempty"`
	CPUPercent  string `json:"cpuPercent,omitempty"`
	MemPercent  string `json:"memPercent,omitempty"`
	MemUsage    string `json:"memUsage,omitempty"`
	NetIO       string `json:"netIO,omitempty"`
	BlockIO     string `json:"blockIO,omitempty"`
	PIDs        int    `json:"pids,omitempty"`
}

// LogChunk is one docker.logs result: a windowed slice of a container's
// log stream. Truncated marks a chunk that hit the agent's size cap and
// therefore starts mid-stream.
type LogChunk struct {
	ContainerID string `json:"containerId"`
	Lines       string `json:"lines"`
	Truncated   bool   `json:"truncated,omitempty"`
	Since       string `json:"since,omitempty"`
}

// ExecResult is one docker.exec result.
type ExecResult struct {
	ContainerID string `json:"containerId"`
	ExitCode    int    `json:"exitCode"`
	Stdout      string `json:"stdout,omitempty"`
	Stderr      string `json:"stderr,omitempty"`
}
