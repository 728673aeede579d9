package obs

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

// Wire frames of obs-websocket v5, as seen from the server side.
const (
	opHello           = 0
	opIdentify        = 1
	opIdentified      = 2
	opEvent           = 5
	opRequest         = 6
	opRequestResponse = 7
)

type frame struct {
	Op int             `json:"op"`
	D  json.RawMessage `json:"d"`
}

type wireRequest struct {
	RequestType string          `json:"requestType"`
	RequestID   string          `json:"requestId"`
	RequestData json.RawMessage `json:"requestData,omitempty"`
}

type wireStatus struct {
	Result  bool   `json:"result"`
	Code    int    `json:"code"`
	Comment string `json:"comment,omitempty"`
}

type wireEvent struct {
	EventType   string          `json:"eventType"`
	EventIntent int             `json:"eventIntent"`
	EventData   json.RawMessage `json:"eventData,omitempty"`
}

func authString(password, salt, challenge string) string {
	secret := sha256.Sum256([]byte(password + salt))
	auth := sha256.Sum256([]byte(base64.StdEncoding.EncodeToString(secret[:]) + challenge))
	return base64.StdEncoding.EncodeToString(auth[:])
}

// fakeOBS is a minimal obs-websocket v5 server.
type fakeOBS struct {
	password  string
	salt      string
	challenge string

	mu       sync.Mutex
	scene    string
	requests []wireRequest
	fail     map[string]wireStatus
	swallow  map[string]bool // requests that get no answer and drop the connection

	emit chan wireEvent
}

func newFakeOBS(t *testing.T, password string) (*fakeOBS, *httptest.Server) {
	t.Helper()
	f := &fakeOBS{
		password:  password,
		salt:      "lM1GncleQOaCu9lT1yeUZhFYnqhsLLP1G5lAGo3ixaI=",
		challenge: "+IxH4CnCiqpX1rM9scsNynZzbOe4KhDeYcTNS3PDaeY=",
		scene:     "Intro",
		fail:      make(map[string]wireStatus),
		swallow:   make(map[string]bool),
		emit:      make(chan wireEvent, 16),
	}
	srv := httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(srv.Close)
	return f, srv
}

func writeFrame(conn *websocket.Conn, op int, payload any) error {
	d, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return conn.WriteJSON(frame{Op: op, D: d})
}

func (f *fakeOBS) serve(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{Subprotocols: []string{"obswebsocket.json"}}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	hello := map[string]any{"obsWebSocketVersion": "5.5.0", "rpcVersion": 1}
	if f.password != "" {
		hello["authentication"] = map[string]any{"challenge": f.challenge, "salt": f.salt}
	}
	if err := writeFrame(conn, opHello, hello); err != nil {
		return
	}

	var msg frame
	if err := conn.ReadJSON(&msg); err != nil || msg.Op != opIdentify {
		return
	}
	var identify struct {
		Authentication string `json:"authentication"`
	}
	if err := json.Unmarshal(msg.D, &identify); err != nil {
		return
	}
	if f.password != "" && identify.Authentication != authString(f.password, f.salt, f.challenge) {
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(closeAuthenticationFailed, "Authentication failed."))
		return
	}
	if err := writeFrame(conn, opIdentified, map[string]any{"negotiatedRpcVersion": 1}); err != nil {
		return
	}

	requests := make(chan wireRequest)
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			var m frame
			if err := conn.ReadJSON(&m); err != nil {
				return
			}
			if m.Op != opRequest {
				continue
			}
			var req wireRequest
			if err := json.Unmarshal(m.D, &req); err != nil {
				return
			}
			select {
			case requests <- req:
			case <-r.Context().Done():
				return
			}
		}
	}()

	for {
		select {
		case <-gone:
			return
		case ev := <-f.emit:
			if err := writeFrame(conn, opEvent, ev); err != nil {
				return
			}
		case req := <-requests:
			resp, ok := f.respond(req)
			if !ok {
				return
			}
			if err := writeFrame(conn, opRequestResponse, resp); err != nil {
				return
			}
		}
	}
}

// respond builds the answer to req. It returns false when the connection
// should be dropped instead.
func (f *fakeOBS) respond(req wireRequest) (map[string]any, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if req.RequestType != "GetVersion" {
		f.requests = append(f.requests, req)
	}
	if f.swallow[req.RequestType] {
		return nil, false
	}

	resp := map[string]any{
		"requestType":   req.RequestType,
		"requestId":     req.RequestID,
		"requestStatus": wireStatus{Result: true, Code: 100},
	}
	if status, ok := f.fail[req.RequestType]; ok {
		resp["requestStatus"] = status
		return resp, true
	}

	switch req.RequestType {
	case "GetCurrentProgramScene":
		resp["responseData"] = map[string]any{"currentProgramSceneName": f.scene, "sceneName": f.scene}
	case "GetSceneItemId":
		resp["responseData"] = map[string]any{"sceneItemId": 7}
	case "GetVersion":
		resp["responseData"] = map[string]any{"obsVersion": "30.0.0", "obsWebSocketVersion": "5.5.0", "rpcVersion": 1}
	}
	return resp, true
}

// received returns the requests seen so far, without liveness probes.
func (f *fakeOBS) received() []wireRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]wireRequest(nil), f.requests...)
}

func (f *fakeOBS) sendEvent(t *testing.T, eventType string, data any) {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	f.emit <- wireEvent{EventType: eventType, EventData: raw}
}
