package infra

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// mockProcessManager is a test double for ProcessManager
type mockProcessManager struct {
	mu          sync.Mutex
	processes   map[int]string
	runningPIDs map[int]bool
	findErr     error
	findCalls   int
}

func newMockProcessManager() *mockProcessManager {
	return &mockProcessManager{
		processes:   make(map[int]string),
		runningPIDs: make(map[int]bool),
	}
}

func (m *mockProcessManager) FindByName(pattern string) ([]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.findCalls++
	if m.findErr != nil {
		return nil, m.findErr
	}
	var pids []int
	for pid, name := range m.processes {
		if strings.Contains(strings.ToLower(name), strings.ToLower(pattern)) {
			pids = append(pids, pid)
		}
	}
	return pids, nil
}

func (m *mockProcessManager) NameOf(pid int) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	name, ok := m.processes[pid]
	if !ok {
		return "", fmt.Errorf("process %d not found", pid)
	}
	return name, nil
}

func (m *mockProcessManager) IsRunning(pid int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.runningPIDs[pid]
}

func (m *mockProcessManager) GetCurrentPID() int {
	return os.Getpid()
}

func (m *mockProcessManager) SetRunning(pid int, running bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runningPIDs[pid] = running
}

// Start adds a named process to the fake process table.
func (m *mockProcessManager) Start(pid int, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.processes[pid] = name
	m.runningPIDs[pid] = true
}

// Stop removes a process from the fake process table.
func (m *mockProcessManager) Stop(pid int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.processes, pid)
	delete(m.runningPIDs, pid)
}

func (m *mockProcessManager) SetFindError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.findErr = err
}

// mockCommandRunner records commands and returns canned results
type mockCommandRunner struct {
	mu       sync.Mutex
	commands []string
	output   []byte
	errs     map[string]error
}

func newMockCommandRunner() *mockCommandRunner {
	return &mockCommandRunner{errs: make(map[string]error)}
}

func (m *mockCommandRunner) Run(name string, args ...string) error {
	_, err := m.Output(name, args...)
	return err
}

func (m *mockCommandRunner) Output(name string, args ...string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cmd := strings.TrimSpace(name + " " + strings.Join(args, " "))
	m.commands = append(m.commands, cmd)
	for substr, err := range m.errs {
		if strings.Contains(cmd, substr) {
			return nil, err
		}
	}
	return m.output, nil
}

// FailOn makes any command containing substr return err.
func (m *mockCommandRunner) FailOn(substr string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[substr] = err
}

func (m *mockCommandRunner) Commands() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.commands...)
}

// readingRecorder collects observer callbacks
type readingRecorder struct {
	mu       sync.Mutex
	readings []bool
}

func (r *readingRecorder) callback(capturing bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.readings = append(r.readings, capturing)
}

func (r *readingRecorder) Readings() []bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]bool(nil), r.readings...)
}

func (r *readingRecorder) Last() (bool, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.readings) == 0 {
		return false, false
	}
	return r.readings[len(r.readings)-1], true
}

// mockOBSServer simulates the OBS websocket v5 handshake and output state
type mockOBSServer struct {
	server    *httptest.Server
	upgrader  websocket.Upgrader
	password  string
	challenge string
	salt      string

	mu        sync.Mutex
	conns     []*websocket.Conn
	recording bool
	streaming bool
	requests  []string
}

func newMockOBSServer(t *testing.T, password string) *mockOBSServer {
	t.Helper()
	m := &mockOBSServer{
		upgrader:  websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		password:  password,
		challenge: "challenge-123",
		salt:      "salt-456",
	}
	m.server = httptest.NewServer(http.HandlerFunc(m.handle))
	t.Cleanup(m.Close)
	return m
}

// URL returns the ws:// address of the mock server.
func (m *mockOBSServer) URL() string {
	return "ws" + strings.TrimPrefix(m.server.URL, "http")
}

func (m *mockOBSServer) Close() {
	m.DropConnections()
	m.server.Close()
}

// DropConnections closes every client connection without a close frame.
func (m *mockOBSServer) DropConnections() {
	m.mu.Lock()
	conns := m.conns
	m.conns = nil
	m.mu.Unlock()
	for _, c := range conns {
		c.Close()
	}
}

func (m *mockOBSServer) ConnectionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.conns)
}

func (m *mockOBSServer) Requests() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.requests...)
}

// SetRecording changes the record state and emits RecordStateChanged.
func (m *mockOBSServer) SetRecording(active bool) {
	m.mu.Lock()
	m.recording = active
	m.mu.Unlock()
	m.broadcast("RecordStateChanged", active)
}

// SetStreaming changes the stream state and emits StreamStateChanged.
func (m *mockOBSServer) SetStreaming(active bool) {
	m.mu.Lock()
	m.streaming = active
	m.mu.Unlock()
	m.broadcast("StreamStateChanged", active)
}

func (m *mockOBSServer) handle(w http.ResponseWriter, r *http.Request) {
	conn, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	hello := map[string]interface{}{
		"obsWebSocketVersion": "5.1.0",
		"rpcVersion":          1,
	}
	if m.password != "" {
		hello["authentication"] = map[string]string{"challenge": m.challenge, "salt": m.salt}
	}
	if err := m.write(conn, obsOpHello, hello); err != nil {
		conn.Close()
		return
	}

	var msg obsMessage
	if err := conn.ReadJSON(&msg); err != nil || msg.Op != obsOpIdentify {
		conn.Close()
		return
	}
	var identify obsIdentify
	_ = json.Unmarshal(msg.D, &identify)
	if m.password != "" && identify.Authentication != obsAuthResponse(m.password, m.salt, m.challenge) {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(4009, "Authentication failed"), time.Now().Add(time.Second))
		conn.Close()
		return
	}
	if err := m.write(conn, obsOpIdentified, map[string]int{"negotiatedRpcVersion": 1}); err != nil {
		conn.Close()
		return
	}

	m.mu.Lock()
	m.conns = append(m.conns, conn)
	m.mu.Unlock()

	for {
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		if msg.Op != obsOpRequest {
			continue
		}
		var req obsRequest
		if err := json.Unmarshal(msg.D, &req); err != nil {
			continue
		}

		m.mu.Lock()
		m.requests = append(m.requests, req.RequestType)
		active := false
		switch req.RequestType {
		case "GetRecordStatus":
			active = m.recording
		case "GetStreamStatus":
			active = m.streaming
		}
		m.mu.Unlock()

		resp := map[string]interface{}{
			"requestType":   req.RequestType,
			"requestId":     req.RequestID,
			"requestStatus": map[string]interface{}{"result": true, "code": 100},
			"responseData":  map[string]bool{"outputActive": active},
		}
		if err := m.write(conn, obsOpRequestResponse, resp); err != nil {
			return
		}
	}
}

func (m *mockOBSServer) broadcast(eventType string, active bool) {
	m.mu.Lock()
	conns := append([]*websocket.Conn(nil), m.conns...)
	m.mu.Unlock()
	for _, c := range conns {
		_ = m.write(c, obsOpEvent, map[string]interface{}{
			"eventType":   eventType,
			"eventIntent": 64,
			"eventData":   map[string]interface{}{"outputActive": active},
		})
	}
}

// write serializes writes per server; gorilla connections allow one writer.
func (m *mockOBSServer) write(conn *websocket.Conn, op int, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return conn.WriteJSON(obsMessage{Op: op, D: data})
}
