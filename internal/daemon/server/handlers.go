package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dockwatch-io/dockwatch/internal/buildinfo"
	"github.com/dockwatch-io/dockwatch/internal/engine"
	"github.com/dockwatch-io/dockwatch/internal/models"
	"github.com/dockwatch-io/dockwatch/internal/remote"
)

const submitTimeout = 10 * time.Second

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleVersion(c *gin.Context) {
	resp := gin.H{
		"version": buildinfo.Version,
		"commit":  buildinfo.Commit,
		"date":    buildinfo.Date,
	}
	if s.updater != nil {
		status := s.updater.Status()
		resp["latestVersion"] = status.Latest
		resp["updateAvailable"] = status.UpdateAvailable
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleNodes(c *gin.Context) {
	nodes := s.poller.Nodes()
	items := make([]gin.H, 0, len(nodes))
	for _, n := range nodes {
		name := n.Name
		if name == "" {
			name = n.ID
		}
		item := gin.H{"id": n.ID, "name": name}
		if snap, ok := s.poller.Store().Snapshot(n.ID); ok {
			item["fetchedAt"] = snap.FetchedAt
			item["commands"] = len(snap.Commands)
			item["events"] = len(snap.Events)
		}
		items = append(items, item)
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (s *Server) handleContainers(c *gin.Context) {
	node, ok := s.node(c)
	if !ok {
		return
	}
	snap := s.snapshot(node.ID)
	items, warnings := s.projector(node.ID).Containers(snap)
	if items == nil {
		items = []engine.ContainerView{}
	}
	c.JSON(http.StatusOK, viewEnvelope(items, warnings, snap))
}

func (s *Server) handleStacks(c *gin.Context) {
	node, ok := s.node(c)
	if !ok {
		return
	}
	snap := s.snapshot(node.ID)
	items, warnings := s.projector(node.ID).Stacks(snap)
	if items == nil {
		items = []engine.StackView{}
	}
	c.JSON(http.StatusOK, viewEnvelope(items, warnings, snap))
}

func (s *Server) handleStats(c *gin.Context) {
	node, ok := s.node(c)
	if !ok {
		return
	}
	snap := s.snapshot(node.ID)
	items, warnings := s.projector(node.ID).Stats(snap)
	if items == nil {
		items = []models.StatsSample{}
	}
	c.JSON(http.StatusOK, viewEnvelope(items, warnings, snap))
}

func (s *Server) handleContainerStats(c *gin.Context) {
	node, ok := s.node(c)
	if !ok {
		return
	}
	points := engine.DefaultSeriesPoints
	if raw := c.Query("points"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "points must be a positive integer"})
			return
		}
		points = parsed
	}

	snap := s.snapshot(node.ID)
	series := s.projector(node.ID).StatsHistory(snap, c.Param("id"), points)
	if series == nil {
		series = []engine.MetricPoint{}
	}
	c.JSON(http.StatusOK, gin.H{"target": c.Param("id"), "points": series})
}

func (s *Server) handleContainerLogs(c *gin.Context) {
	node, ok := s.node(c)
	if !ok {
		return
	}
	follow := c.Query("follow") == "true"
	snap := s.snapshot(node.ID)
	tail := s.projector(node.ID).Logs(snap, c.Param("id"), follow)
	c.JSON(http.StatusOK, tail)
}

func (s *Server) handleExecResult(c *gin.Context) {
	node, ok := s.node(c)
	if !ok {
		return
	}
	snap := s.snapshot(node.ID)
	result, ready, warnings := s.projector(node.ID).Exec(snap, c.Param("id"))

	resp := gin.H{"ready": ready}
	if ready {
		resp["result"] = result
	}
	if len(warnings) > 0 {
		resp["warnings"] = warnings
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleCommand(c *gin.Context) {
	node, ok := s.node(c)
	if !ok {
		return
	}
	snap := s.snapshot(node.ID)
	record, found := s.projector(node.ID).Command(snap, c.Param("id"))
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("command %q not in the current window", c.Param("id"))})
		return
	}
	c.JSON(http.StatusOK, gin.H{"record": record})
}

func (s *Server) handleAttempts(c *gin.Context) {
	node, ok := s.node(c)
	if !ok {
		return
	}
	snap := s.snapshot(node.ID)
	items := s.projector(node.ID).Attempts(snap)
	if items == nil {
		items = []engine.Attempt{}
	}
	c.JSON(http.StatusOK, viewEnvelope(items, nil, snap))
}

func (s *Server) handleRefresh(c *gin.Context) {
	node, ok := s.node(c)
	if !ok {
		return
	}
	s.poller.Refresh(node.ID)
	c.JSON(http.StatusAccepted, gin.H{"status": "refreshing"})
}

func (s *Server) handleContainerAction(commandType string) gin.HandlerFunc {
	return func(c *gin.Context) {
		node, ok := s.node(c)
		if !ok {
			return
		}
		payload, err := json.Marshal(map[string]string{"containerId": c.Param("id")})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		s.submit(c, node.ID, commandType, string(payload))
	}
}

func (s *Server) handleStackAction(commandType string) gin.HandlerFunc {
	return func(c *gin.Context) {
		node, ok := s.node(c)
		if !ok {
			return
		}
		payload, err := json.Marshal(map[string]string{"stack": c.Param("name")})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		s.submit(c, node.ID, commandType, string(payload))
	}
}

func (s *Server) handleExec(c *gin.Context) {
	node, ok := s.node(c)
	if !ok {
		return
	}
	var req struct {
		ContainerID string   `json:"containerId"`
		Command     []string `json:"command"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.ContainerID == "" || len(req.Command) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "containerId and command are required"})
		return
	}
	payload, err := json.Marshal(gin.H{"containerId": req.ContainerID, "command": req.Command})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	s.submit(c, node.ID, models.CommandContainerExec, string(payload))
}

// submit sends a command to the controller, nudges the poller so the
// new record shows up quickly, and echoes the queued record.
func (s *Server) submit(c *gin.Context, nodeID, commandType, payload string) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), submitTimeout)
	defer cancel()

	record, err := s.client.SubmitCommand(ctx, nodeID, commandType, payload)
	if err != nil {
		status := http.StatusBadGateway
		var apiErr *remote.APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 {
			status = apiErr.StatusCode
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	s.poller.Refresh(nodeID)
	s.analytics.Track("command_submitted", map[string]any{"type": commandType})
	c.JSON(http.StatusAccepted, gin.H{"record": record})
}

// node resolves the :node path parameter against the configured set,
// answering 404 itself when unknown.
func (s *Server) node(c *gin.Context) (models.NodeConfig, bool) {
	id := c.Param("node")
	for _, n := range s.poller.Nodes() {
		if n.ID == id {
			return n, true
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("unknown node %q", id)})
	return models.NodeConfig{}, false
}

// snapshot returns the node's current snapshot, nil before the first
// completed poll. Projections treat nil as empty, so handlers answer
// 200 with empty views instead of failing.
func (s *Server) snapshot(nodeID string) *engine.Snapshot {
	snap, ok := s.poller.Store().Snapshot(nodeID)
	if !ok {
		return nil
	}
	return snap
}

func viewEnvelope(items any, warnings []string, snap *engine.Snapshot) gin.H {
	h := gin.H{"items": items}
	if len(warnings) > 0 {
		h["warnings"] = warnings
	}
	if snap != nil {
		h["fetchedAt"] = snap.FetchedAt
	}
	return h
}
