package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dockwatch-io/dockwatch/internal/daemon/poller"
	"github.com/dockwatch-io/dockwatch/internal/engine"
	"github.com/dockwatch-io/dockwatch/internal/models"
	"github.com/dockwatch-io/dockwatch/internal/remote"
)

const testNode = "node1"

func init() {
	gin.SetMode(gin.TestMode)
}

type submitCall struct {
	nodeID      string
	commandType string
	payload     string
}

// fakeController stands in for the controller API on both sides: the
// poller reads canned windows from it, the action handlers submit to it.
type fakeController struct {
	mu          sync.Mutex
	commands    []models.CommandRecord
	events      []models.AgentEvent
	commandsErr error
	submitErr   error
	submits     []submitCall
}

func (f *fakeController) ListCommands(_ context.Context, _ string, _ int) ([]models.CommandRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.commandsErr != nil {
		return nil, f.commandsErr
	}
	return f.commands, nil
}

func (f *fakeController) ListEvents(_ context.Context, _ remote.EventFilter) ([]models.AgentEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.events, nil
}

func (f *fakeController) SubmitCommand(_ context.Context, nodeID, commandType, payload string) (models.CommandRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitErr != nil {
		return models.CommandRecord{}, f.submitErr
	}
	f.submits = append(f.submits, submitCall{nodeID, commandType, payload})
	return models.CommandRecord{
		ID:        fmt.Sprintf("submitted-%d", len(f.submits)),
		NodeID:    nodeID,
		Type:      commandType,
		Status:    models.CommandQueued,
		CreatedAt: time.Now().UTC(),
		Payload:   payload,
	}, nil
}

func (f *fakeController) submitted() []submitCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]submitCall, len(f.submits))
	copy(out, f.submits)
	return out
}

func fixtureCommands() []models.CommandRecord {
	base := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	return []models.CommandRecord{
		{
			ID:        "cmd-list",
			NodeID:    testNode,
			Type:      models.CommandContainerList,
			Status:    models.CommandSuccess,
			CreatedAt: base,
			OutputLog: `[{"id":"c1","names":["/web"],"image":"nginx:1.27","state":"running","status":"Up 2 hours"},` +
				`{"id":"c2","names":["/db"],"image":"postgres:16","state":"exited","status":"Exited (0) 5 minutes ago"}]`,
		},
		{
			ID:        "cmd-start",
			NodeID:    testNode,
			Type:      models.CommandContainerStart,
			Status:    models.CommandQueued,
			CreatedAt: base.Add(time.Minute),
			Payload:   `{"containerId":"c1"}`,
		},
		{
			ID:        "cmd-logs",
			NodeID:    testNode,
			Type:      models.CommandContainerLogs,
			Status:    models.CommandSuccess,
			CreatedAt: base.Add(2 * time.Minute),
			Payload:   `{"containerId":"c1"}`,
			OutputLog: `{"containerId":"c1","lines":"ready to serve\n","truncated":false}`,
		},
	}
}

func fixtureEvents() []models.AgentEvent {
	started := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	ok := true
	return []models.AgentEvent{
		{ID: "ev-start", Name: models.EventOperationStart, Timestamp: started, MachineID: testNode, Actor: "alice"},
		{ID: "ev-done", Name: models.EventOperationCompleted, Timestamp: started.Add(40 * time.Second), MachineID: testNode, Success: &ok},
	}
}

// newTestServer wires a poller fed by the fake controller to a fresh
// server and returns its handler. Polling intervals are long enough
// that only the initial poll runs; a failing fake skips the wait since
// no snapshot will ever land.
func newTestServer(t *testing.T, ctrl *fakeController) http.Handler {
	t.Helper()

	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	p := poller.New(poller.Options{
		Client: ctrl,
		Nodes:  []models.NodeConfig{{ID: testNode, Name: "builder"}},
		Polling: models.PollingConfig{
			CommandInterval: time.Hour,
			EventInterval:   time.Hour,
			CommandLimit:    50,
			EventLimit:      50,
		},
		Logger: quiet,
	})

	ctx, cancel := context.WithCancel(context.Background())
	go p.Run(ctx)
	t.Cleanup(cancel)

	if ctrl.commandsErr == nil {
		waitForSnapshot(t, p, testNode)
	}

	srv, err := New(Options{Port: 0, Poller: p, Client: ctrl, Logger: quiet})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	t.Cleanup(func() { srv.listener.Close() })
	return srv.httpServer.Handler
}

func waitForSnapshot(t *testing.T, p *poller.Poller, nodeID string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, ok := p.Store().Snapshot(nodeID); ok {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("no snapshot for %s after initial poll", nodeID)
}

func doRequest(handler http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("unmarshal response %q: %v", w.Body.String(), err)
	}
	return out
}

func TestHandleHealth(t *testing.T) {
	handler := newTestServer(t, &fakeController{})

	w := doRequest(handler, "GET", "/healthz", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	resp := decodeBody[map[string]string](t, w)
	if resp["status"] != "ok" {
		t.Errorf("status field = %q, want %q", resp["status"], "ok")
	}
}

func TestHandleVersion(t *testing.T) {
	handler := newTestServer(t, &fakeController{})

	w := doRequest(handler, "GET", "/version", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	resp := decodeBody[map[string]any](t, w)
	if _, ok := resp["version"]; !ok {
		t.Error("response missing version field")
	}
}

func TestHandleNodes(t *testing.T) {
	ctrl := &fakeController{commands: fixtureCommands(), events: fixtureEvents()}
	handler := newTestServer(t, ctrl)

	w := doRequest(handler, "GET", "/api/nodes", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	resp := decodeBody[struct {
		Items []struct {
			ID       string `json:"id"`
			Name     string `json:"name"`
			Commands int    `json:"commands"`
			Events   int    `json:"events"`
		} `json:"items"`
	}](t, w)

	if len(resp.Items) != 1 {
		t.Fatalf("got %d nodes, want 1", len(resp.Items))
	}
	item := resp.Items[0]
	if item.ID != testNode || item.Name != "builder" {
		t.Errorf("node = %s/%s, want %s/builder", item.ID, item.Name, testNode)
	}
	if item.Commands != 3 {
		t.Errorf("commands = %d, want 3", item.Commands)
	}
	if item.Events != 2 {
		t.Errorf("events = %d, want 2", item.Events)
	}
}

func TestHandleContainersView(t *testing.T) {
	ctrl := &fakeController{commands: fixtureCommands()}
	handler := newTestServer(t, ctrl)

	w := doRequest(handler, "GET", "/api/nodes/"+testNode+"/containers", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	resp := decodeBody[struct {
		Items    []engine.ContainerView `json:"items"`
		Warnings []string               `json:"warnings"`
	}](t, w)

	if len(resp.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", resp.Warnings)
	}
	if len(resp.Items) != 2 {
		t.Fatalf("got %d containers, want 2", len(resp.Items))
	}

	web := resp.Items[0]
	if web.ID != "c1" || web.State != "running" {
		t.Errorf("first container = %s/%s, want c1/running", web.ID, web.State)
	}
	if !web.Action.Pending || web.Action.Action != "start" {
		t.Errorf("c1 action = %+v, want pending start", web.Action)
	}
	if resp.Items[1].Action.Pending {
		t.Errorf("c2 action = %+v, want idle", resp.Items[1].Action)
	}
}

func TestHandleContainersMalformedList(t *testing.T) {
	ctrl := &fakeController{commands: []models.CommandRecord{{
		ID:        "cmd-bad",
		NodeID:    testNode,
		Type:      models.CommandContainerList,
		Status:    models.CommandSuccess,
		CreatedAt: time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC),
		OutputLog: "total 52K\ndrwxr-xr-x not json at all",
	}}}
	handler := newTestServer(t, ctrl)

	w := doRequest(handler, "GET", "/api/nodes/"+testNode+"/containers", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	resp := decodeBody[struct {
		Items    []engine.ContainerView `json:"items"`
		Warnings []string               `json:"warnings"`
	}](t, w)

	if len(resp.Items) != 0 {
		t.Errorf("got %d containers from malformed output, want 0", len(resp.Items))
	}
	if len(resp.Warnings) != 1 {
		t.Fatalf("got %d warnings, want 1", len(resp.Warnings))
	}
	if !strings.Contains(resp.Warnings[0], "cmd-bad") {
		t.Errorf("warning %q does not name the offending record", resp.Warnings[0])
	}
}

func TestHandleContainersBeforeFirstPoll(t *testing.T) {
	ctrl := &fakeController{commandsErr: errors.New("controller offline")}
	handler := newTestServer(t, ctrl)

	w := doRequest(handler, "GET", "/api/nodes/"+testNode+"/containers", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	resp := decodeBody[struct {
		Items []engine.ContainerView `json:"items"`
	}](t, w)
	if len(resp.Items) != 0 {
		t.Errorf("got %d containers before first poll, want 0", len(resp.Items))
	}
}

func TestHandleUnknownNode(t *testing.T) {
	handler := newTestServer(t, &fakeController{})

	w := doRequest(handler, "GET", "/api/nodes/ghost/containers", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
	resp := decodeBody[map[string]string](t, w)
	if !strings.Contains(resp["error"], "ghost") {
		t.Errorf("error %q does not name the node", resp["error"])
	}
}

func TestHandleCommandLookup(t *testing.T) {
	ctrl := &fakeController{commands: fixtureCommands()}
	handler := newTestServer(t, ctrl)

	w := doRequest(handler, "GET", "/api/nodes/"+testNode+"/commands/cmd-start", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	resp := decodeBody[struct {
		Record models.CommandRecord `json:"record"`
	}](t, w)
	if resp.Record.ID != "cmd-start" || resp.Record.Status != models.CommandQueued {
		t.Errorf("record = %s/%s, want cmd-start/queued", resp.Record.ID, resp.Record.Status)
	}

	w = doRequest(handler, "GET", "/api/nodes/"+testNode+"/commands/nope", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown command status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestHandleContainerAction(t *testing.T) {
	ctrl := &fakeController{commands: fixtureCommands()}
	handler := newTestServer(t, ctrl)

	w := doRequest(handler, "POST", "/api/nodes/"+testNode+"/containers/c2/restart", "")
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusAccepted)
	}

	resp := decodeBody[struct {
		Record models.CommandRecord `json:"record"`
	}](t, w)
	if resp.Record.Type != models.CommandContainerRestart {
		t.Errorf("record type = %q, want %q", resp.Record.Type, models.CommandContainerRestart)
	}

	submits := ctrl.submitted()
	if len(submits) != 1 {
		t.Fatalf("got %d submits, want 1", len(submits))
	}
	call := submits[0]
	if call.nodeID != testNode || call.commandType != models.CommandContainerRestart {
		t.Errorf("submitted %s/%s, want %s/%s", call.nodeID, call.commandType, testNode, models.CommandContainerRestart)
	}
	if !strings.Contains(call.payload, `"containerId":"c2"`) {
		t.Errorf("payload %q does not target c2", call.payload)
	}
}

func TestHandleStackAction(t *testing.T) {
	ctrl := &fakeController{}
	handler := newTestServer(t, ctrl)

	w := doRequest(handler, "POST", "/api/nodes/"+testNode+"/stacks/media/up", "")
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusAccepted)
	}

	submits := ctrl.submitted()
	if len(submits) != 1 {
		t.Fatalf("got %d submits, want 1", len(submits))
	}
	if submits[0].commandType != models.CommandStackUp {
		t.Errorf("type = %q, want %q", submits[0].commandType, models.CommandStackUp)
	}
	if !strings.Contains(submits[0].payload, `"stack":"media"`) {
		t.Errorf("payload %q does not target the media stack", submits[0].payload)
	}
}

func TestHandleExec(t *testing.T) {
	ctrl := &fakeController{}
	handler := newTestServer(t, ctrl)

	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{"valid", `{"containerId":"c1","command":["sh","-c","uptime"]}`, http.StatusAccepted},
		{"missing container", `{"command":["ls"]}`, http.StatusBadRequest},
		{"missing command", `{"containerId":"c1"}`, http.StatusBadRequest},
		{"not json", `ls -la`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(handler, "POST", "/api/nodes/"+testNode+"/exec", tt.body)
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}

	submits := ctrl.submitted()
	if len(submits) != 1 {
		t.Fatalf("got %d submits, want 1", len(submits))
	}
	if submits[0].commandType != models.CommandContainerExec {
		t.Errorf("type = %q, want %q", submits[0].commandType, models.CommandContainerExec)
	}
}

func TestSubmitControllerErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"client error passes through", &remote.APIError{StatusCode: 422, Message: "unknown container"}, 422},
		{"server error maps to bad gateway", &remote.APIError{StatusCode: 503}, http.StatusBadGateway},
		{"transport error maps to bad gateway", errors.New("connection refused"), http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := &fakeController{submitErr: tt.err}
			handler := newTestServer(t, ctrl)

			w := doRequest(handler, "POST", "/api/nodes/"+testNode+"/containers/c1/stop", "")
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}

func TestHandleContainerStats(t *testing.T) {
	ctrl := &fakeController{commands: []models.CommandRecord{{
		ID:        "cmd-stats",
		NodeID:    testNode,
		Type:      models.CommandContainerStats,
		Status:    models.CommandSuccess,
		CreatedAt: time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC),
		OutputLog: `[{"containerId":"c1","name":"web","cpuPercent":"12.5%","memPercent":"30.1%"}]`,
	}}}
	handler := newTestServer(t, ctrl)

	w := doRequest(handler, "GET", "/api/nodes/"+testNode+"/containers/c1/stats", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	resp := decodeBody[struct {
		Target string               `json:"target"`
		Points []engine.MetricPoint `json:"points"`
	}](t, w)
	if resp.Target != "c1" {
		t.Errorf("target = %q, want c1", resp.Target)
	}
	if len(resp.Points) != 1 {
		t.Fatalf("got %d points, want 1", len(resp.Points))
	}
	cpu := resp.Points[0].Values["cpu"]
	if cpu == nil || *cpu != 12.5 {
		t.Errorf("cpu gauge = %v, want 12.5", cpu)
	}

	w = doRequest(handler, "GET", "/api/nodes/"+testNode+"/containers/c1/stats?points=abc", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad points param status = %d, want %d", w.Code, http.StatusBadRequest)
	}

	w = doRequest(handler, "GET", "/api/nodes/"+testNode+"/containers/c1/stats?points=-3", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("negative points param status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestHandleContainerLogs(t *testing.T) {
	ctrl := &fakeController{commands: fixtureCommands()}
	handler := newTestServer(t, ctrl)

	w := doRequest(handler, "GET", "/api/nodes/"+testNode+"/containers/c1/logs", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	tail := decodeBody[engine.LogTail](t, w)
	if !strings.Contains(tail.Content, "ready to serve") {
		t.Errorf("content = %q, want the fetched log line", tail.Content)
	}
	if tail.Truncated {
		t.Error("truncated = true, want false")
	}
}

func TestHandleAttempts(t *testing.T) {
	ctrl := &fakeController{events: fixtureEvents()}
	handler := newTestServer(t, ctrl)

	w := doRequest(handler, "GET", "/api/nodes/"+testNode+"/attempts", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	resp := decodeBody[struct {
		Items []engine.Attempt `json:"items"`
	}](t, w)
	if len(resp.Items) != 1 {
		t.Fatalf("got %d attempts, want 1", len(resp.Items))
	}
	att := resp.Items[0]
	if att.Success == nil || !*att.Success {
		t.Errorf("attempt success = %v, want true", att.Success)
	}
	if att.CompletedAt == nil {
		t.Error("attempt has no completion time")
	}
}

func TestHandleRefresh(t *testing.T) {
	handler := newTestServer(t, &fakeController{})

	w := doRequest(handler, "POST", "/api/nodes/"+testNode+"/refresh", "")
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusAccepted)
	}
}
