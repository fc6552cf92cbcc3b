package infra

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/screen_guard/internal/domain"
)

// OBS websocket v5 op codes.
const (
	obsOpHello           = 0
	obsOpIdentify        = 1
	obsOpIdentified      = 2
	obsOpEvent           = 5
	obsOpRequest         = 6
	obsOpRequestResponse = 7
)

// obsEventSubscriptionOutputs subscribes to output events only
// (RecordStateChanged, StreamStateChanged, ...).
const obsEventSubscriptionOutputs = 1 << 6

// OBSObserverConfig holds OBS websocket connection settings.
type OBSObserverConfig struct {
	URL              string
	Password         string
	HandshakeTimeout time.Duration
	ReconnectDelay   time.Duration
	MaxReconnect     time.Duration
}

// DefaultOBSObserverConfig returns settings for a local OBS Studio instance.
func DefaultOBSObserverConfig() OBSObserverConfig {
	return OBSObserverConfig{
		URL:              "ws://127.0.0.1:4455",
		HandshakeTimeout: 5 * time.Second,
		ReconnectDelay:   2 * time.Second,
		MaxReconnect:     60 * time.Second,
	}
}

type obsMessage struct {
	Op int             `json:"op"`
	D  json.RawMessage `json:"d"`
}

type obsHello struct {
	OBSWebSocketVersion string `json:"obsWebSocketVersion"`
	RPCVersion          int    `json:"rpcVersion"`
	Authentication      *struct {
		Challenge string `json:"challenge"`
		Salt      string `json:"salt"`
	} `json:"authentication,omitempty"`
}

type obsIdentify struct {
	RPCVersion         int    `json:"rpcVersion"`
	Authentication     string `json:"authentication,omitempty"`
	EventSubscriptions int    `json:"eventSubscriptions"`
}

type obsRequest struct {
	RequestType string `json:"requestType"`
	RequestID   string `json:"requestId"`
}

type obsResponse struct {
	RequestType   string `json:"requestType"`
	RequestID     string `json:"requestId"`
	RequestStatus struct {
		Result bool `json:"result"`
		Code   int  `json:"code"`
	} `json:"requestStatus"`
	ResponseData json.RawMessage `json:"responseData,omitempty"`
}

type obsEvent struct {
	EventType string          `json:"eventType"`
	EventData json.RawMessage `json:"eventData,omitempty"`
}

type obsOutputState struct {
	OutputActive bool `json:"outputActive"`
}

// OBSCaptureObserver implements domain.CaptureObserver on top of the OBS
// Studio websocket. Capturing means OBS is recording or streaming.
type OBSCaptureObserver struct {
	cfg    OBSObserverConfig
	dialer *websocket.Dialer
	logger *zap.Logger

	mu   sync.Mutex
	subs map[domain.ObserverHandle]*obsSubscription
	next domain.ObserverHandle
}

type obsSubscription struct {
	callback func(bool)
	stop     chan struct{}
	refresh  chan struct{}

	// writeMu serializes websocket writes; mu is never held while writing.
	writeMu sync.Mutex

	mu        sync.Mutex
	conn      *websocket.Conn
	requestID int
	recording bool
	streaming bool
	delivered bool
	last      bool
}

// NewOBSCaptureObserver creates an OBS observer.
func NewOBSCaptureObserver(cfg OBSObserverConfig, logger *zap.Logger) *OBSCaptureObserver {
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = DefaultOBSObserverConfig().HandshakeTimeout
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = DefaultOBSObserverConfig().ReconnectDelay
	}
	if cfg.MaxReconnect <= 0 {
		cfg.MaxReconnect = DefaultOBSObserverConfig().MaxReconnect
	}
	return &OBSCaptureObserver{
		cfg:    cfg,
		dialer: &websocket.Dialer{HandshakeTimeout: cfg.HandshakeTimeout},
		logger: logger,
		subs:   make(map[domain.ObserverHandle]*obsSubscription),
	}
}

// Subscribe connects to OBS, identifies, and queries the output status.
func (o *OBSCaptureObserver) Subscribe(callback func(bool)) (domain.ObserverHandle, error) {
	conn, version, err := o.connect()
	if err != nil {
		return 0, fmt.Errorf("%w: obs websocket %s: %v", domain.ErrSubscriptionUnavailable, o.cfg.URL, err)
	}

	sub := &obsSubscription{
		callback: callback,
		stop:     make(chan struct{}),
		refresh:  make(chan struct{}, 1),
		conn:     conn,
	}

	o.mu.Lock()
	o.next++
	handle := o.next
	o.subs[handle] = sub
	o.mu.Unlock()

	o.logger.Info("connected to OBS",
		zap.String("url", o.cfg.URL),
		zap.String("obs_websocket_version", version))

	sub.refresh <- struct{}{}
	go o.writeLoop(sub)
	go o.readLoop(sub)
	return handle, nil
}

// Unsubscribe closes the connection for the handle.
func (o *OBSCaptureObserver) Unsubscribe(handle domain.ObserverHandle) error {
	o.mu.Lock()
	sub, ok := o.subs[handle]
	delete(o.subs, handle)
	o.mu.Unlock()

	if !ok {
		return fmt.Errorf("unknown observer handle %d", handle)
	}
	close(sub.stop)

	sub.mu.Lock()
	conn := sub.conn
	sub.mu.Unlock()
	if conn != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		return conn.Close()
	}
	return nil
}

// RequestRefresh schedules a status query; the next response is delivered
// even if unchanged. It never waits on the network.
func (o *OBSCaptureObserver) RequestRefresh(handle domain.ObserverHandle) {
	o.mu.Lock()
	sub, ok := o.subs[handle]
	o.mu.Unlock()
	if !ok {
		return
	}

	sub.mu.Lock()
	sub.delivered = false
	sub.mu.Unlock()

	select {
	case sub.refresh <- struct{}{}:
	default: // a query is already pending
	}
}

// writeLoop sends status queries until the subscription stops.
func (o *OBSCaptureObserver) writeLoop(sub *obsSubscription) {
	for {
		select {
		case <-sub.stop:
			return
		case <-sub.refresh:
			if err := o.queryStatus(sub); err != nil {
				o.logger.Debug("OBS status query failed", zap.Error(err))
			}
		}
	}
}

// connect dials OBS and completes the Hello/Identify handshake.
func (o *OBSCaptureObserver) connect() (*websocket.Conn, string, error) {
	conn, _, err := o.dialer.Dial(o.cfg.URL, nil)
	if err != nil {
		return nil, "", err
	}

	_ = conn.SetReadDeadline(time.Now().Add(o.cfg.HandshakeTimeout))

	var msg obsMessage
	if err := conn.ReadJSON(&msg); err != nil {
		conn.Close()
		return nil, "", fmt.Errorf("read hello: %w", err)
	}
	if msg.Op != obsOpHello {
		conn.Close()
		return nil, "", fmt.Errorf("expected hello, got op %d", msg.Op)
	}
	var hello obsHello
	if err := json.Unmarshal(msg.D, &hello); err != nil {
		conn.Close()
		return nil, "", fmt.Errorf("decode hello: %w", err)
	}

	identify := obsIdentify{
		RPCVersion:         1,
		EventSubscriptions: obsEventSubscriptionOutputs,
	}
	if hello.Authentication != nil {
		identify.Authentication = obsAuthResponse(o.cfg.Password, hello.Authentication.Salt, hello.Authentication.Challenge)
	}
	out := obsMessage{Op: obsOpIdentify}
	out.D, _ = json.Marshal(identify)
	if err := conn.WriteJSON(out); err != nil {
		conn.Close()
		return nil, "", fmt.Errorf("send identify: %w", err)
	}

	if err := conn.ReadJSON(&msg); err != nil {
		conn.Close()
		return nil, "", fmt.Errorf("read identified: %w", err)
	}
	if msg.Op != obsOpIdentified {
		conn.Close()
		return nil, "", fmt.Errorf("expected identified, got op %d", msg.Op)
	}

	_ = conn.SetReadDeadline(time.Time{})
	return conn, hello.OBSWebSocketVersion, nil
}

// obsAuthResponse computes base64(sha256(base64(sha256(password+salt)) + challenge)).
func obsAuthResponse(password, salt, challenge string) string {
	secret := sha256.Sum256([]byte(password + salt))
	secretB64 := base64.StdEncoding.EncodeToString(secret[:])
	auth := sha256.Sum256([]byte(secretB64 + challenge))
	return base64.StdEncoding.EncodeToString(auth[:])
}

// queryStatus asks OBS for the record and stream output status.
func (o *OBSCaptureObserver) queryStatus(sub *obsSubscription) error {
	for _, requestType := range []string{"GetRecordStatus", "GetStreamStatus"} {
		if err := sub.send(requestType, o.cfg.HandshakeTimeout); err != nil {
			return err
		}
	}
	return nil
}

func (s *obsSubscription) send(requestType string, timeout time.Duration) error {
	s.mu.Lock()
	conn := s.conn
	s.requestID++
	id := s.requestID
	s.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("not connected")
	}

	req := obsRequest{RequestType: requestType, RequestID: strconv.Itoa(id)}
	msg := obsMessage{Op: obsOpRequest}
	msg.D, _ = json.Marshal(req)

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(timeout))
	return conn.WriteJSON(msg)
}

// readLoop dispatches messages until the subscription stops, reconnecting
// when the connection drops.
func (o *OBSCaptureObserver) readLoop(sub *obsSubscription) {
	for {
		sub.mu.Lock()
		conn := sub.conn
		sub.mu.Unlock()

		var msg obsMessage
		err := conn.ReadJSON(&msg)
		if err != nil {
			select {
			case <-sub.stop:
				return
			default:
			}
			o.logger.Warn("OBS connection lost", zap.Error(err))
			if !o.reconnect(sub) {
				return
			}
			continue
		}

		switch msg.Op {
		case obsOpEvent:
			var ev obsEvent
			if err := json.Unmarshal(msg.D, &ev); err != nil {
				continue
			}
			o.applyOutput(sub, ev.EventType, ev.EventData)

		case obsOpRequestResponse:
			var resp obsResponse
			if err := json.Unmarshal(msg.D, &resp); err != nil || !resp.RequestStatus.Result {
				continue
			}
			o.applyOutput(sub, resp.RequestType, resp.ResponseData)
		}
	}
}

// applyOutput folds a record/stream state into the subscription and delivers
// the combined reading when it changed.
func (o *OBSCaptureObserver) applyOutput(sub *obsSubscription, kind string, data json.RawMessage) {
	var state obsOutputState
	if err := json.Unmarshal(data, &state); err != nil {
		return
	}

	sub.mu.Lock()
	switch kind {
	case "RecordStateChanged", "GetRecordStatus":
		sub.recording = state.OutputActive
	case "StreamStateChanged", "GetStreamStatus":
		sub.streaming = state.OutputActive
	default:
		sub.mu.Unlock()
		return
	}
	capturing := sub.recording || sub.streaming
	changed := !sub.delivered || capturing != sub.last
	sub.delivered = true
	sub.last = capturing
	sub.mu.Unlock()

	if !changed {
		return
	}
	select {
	case <-sub.stop:
		return
	default:
	}
	o.logger.Debug("OBS output state", zap.String("source", kind), zap.Bool("capturing", capturing))
	sub.callback(capturing)
}

// reconnect retries with capped exponential backoff until connected or stopped.
func (o *OBSCaptureObserver) reconnect(sub *obsSubscription) bool {
	sub.mu.Lock()
	if sub.conn != nil {
		sub.conn.Close()
		sub.conn = nil
	}
	sub.mu.Unlock()

	delay := o.cfg.ReconnectDelay
	for attempt := 1; ; attempt++ {
		select {
		case <-sub.stop:
			return false
		case <-time.After(delay):
		}

		conn, _, err := o.connect()
		if err != nil {
			o.logger.Debug("OBS reconnect failed", zap.Int("attempt", attempt), zap.Error(err))
			delay *= 2
			if delay > o.cfg.MaxReconnect {
				delay = o.cfg.MaxReconnect
			}
			continue
		}

		sub.mu.Lock()
		sub.conn = conn
		sub.delivered = false
		sub.mu.Unlock()

		// Unsubscribe may have raced with the dial.
		select {
		case <-sub.stop:
			conn.Close()
			return false
		default:
		}

		o.logger.Info("reconnected to OBS", zap.Int("attempt", attempt))
		select {
		case sub.refresh <- struct{}{}:
		default:
		}
		return true
	}
}

// Ensure OBSCaptureObserver implements the observer interfaces.
var _ domain.CaptureObserver = (*OBSCaptureObserver)(nil)
var _ domain.CaptureRefresher = (*OBSCaptureObserver)(nil)
