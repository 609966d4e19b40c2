package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/sakkshm/aether/pkg/bus"
	"github.com/sakkshm/aether/pkg/memory"
)

func newTestGateway(t *testing.T) (*websocket.Conn, func()) {
	t.Helper()

	svc, err := memory.NewService(memory.Config{Workspace: t.TempDir()}, zap.NewNop().Sugar())
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	dispatcher := bus.NewDispatcher()
	server := NewServer(svc, dispatcher, zap.NewNop().Sugar())

	ctx, cancel := context.WithCancel(context.Background())
	go server.pump(ctx)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", server.handleWS)
	ts := httptest.NewServer(mux)

	wsURL := strings.Replace(ts.URL, "http", "ws", 1) + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}

	cleanup := func() {
		conn.Close()
		ts.Close()
		cancel()
		dispatcher.Close()
		svc.Close()
	}
	return conn, cleanup
}

func roundTrip(t *testing.T, conn *websocket.Conn, req map[string]any) wireResponse {
	t.Helper()
	if err := conn.WriteJSON(req); err != nil {
		t.Fatalf("write: %v", err)
	}
	conn.SetReadDeadline(time.Now().Add(10 * time.Second))

	wantID, _ := req["requestId"].(string)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		var resp wireResponse
		if err := json.Unmarshal(data, &resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if wantID == "" || resp.RequestID == wantID {
			return resp
		}
	}
}

func TestGatewaySaveAndRecallRoundTrip(t *testing.T) {
	conn, cleanup := newTestGateway(t)
	defer cleanup()

	save := roundTrip(t, conn, map[string]any{
		"requestId": "r1",
		"action":    bus.ActionSavePrompt,
		"prompt":    "I love hiking on weekends",
		"origin":    "extension",
	})
	if save.Status != memory.StatusSuccess {
		t.Fatalf("save status = %q message = %q", save.Status, save.Message)
	}

	prompts := roundTrip(t, conn, map[string]any{
		"requestId": "r2",
		"action":    bus.ActionGetLastPrompts,
		"n":         5,
	})
	if prompts.Status != memory.StatusSuccess {
		t.Fatalf("prompts status = %q", prompts.Status)
	}
	raw, _ := json.Marshal(prompts.Payload)
	var entries []memory.PromptEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		t.Fatalf("decode prompts payload: %v", err)
	}
	if len(entries) != 1 || entries[0].Text != "I love hiking on weekends" {
		t.Fatalf("prompts payload = %+v", entries)
	}

	recall := roundTrip(t, conn, map[string]any{
		"requestId": "r3",
		"action":    bus.ActionGetTopK,
		"query":     "",
		"k":         5,
	})
	if recall.Status != memory.StatusSuccess {
		t.Fatalf("recall status = %q", recall.Status)
	}
	payload, ok := recall.Payload.(map[string]any)
	if !ok {
		t.Fatalf("recall payload shape: %#v", recall.Payload)
	}
	if payload["mode"] != memory.ModeRecent {
		t.Fatalf("mode = %v, want recent for blank query", payload["mode"])
	}
}

func TestGatewayDeleteRequiresTimestamp(t *testing.T) {
	conn, cleanup := newTestGateway(t)
	defer cleanup()

	resp := roundTrip(t, conn, map[string]any{
		"requestId": "r1",
		"action":    bus.ActionDeleteMemory,
	})
	if resp.Status != memory.StatusError {
		t.Fatalf("delete without timestamp status = %q", resp.Status)
	}
}

func TestGatewayUnknownAction(t *testing.T) {
	conn, cleanup := newTestGateway(t)
	defer cleanup()

	resp := roundTrip(t, conn, map[string]any{
		"requestId": "r1",
		"action":    "selfDestruct",
	})
	if resp.Status != memory.StatusError || !strings.Contains(resp.Message, "unknown action") {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestGatewayMalformedJSON(t *testing.T) {
	conn, cleanup := newTestGateway(t)
	defer cleanup()

	if err := conn.WriteMessage(websocket.TextMessage, []byte("{not json")); err != nil {
		t.Fatalf("write: %v", err)
	}
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var resp wireResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != memory.StatusError {
		t.Fatalf("malformed request status = %q", resp.Status)
	}
}
