package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/goldoon/goldoon-go/pkg/netstack"
)

func logJSON(t *testing.T, event Event) map[string]any {
	t.Helper()
	var buf bytes.Buffer
	handler := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	NewSlogAdapter(slog.New(handler)).Log(event)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log output %q: %v", buf.String(), err)
	}
	return entry
}

func TestSlogAdapterNetEvent(t *testing.T) {
	entry := logJSON(t, Event{
		Timestamp: time.Now(),
		SessionID: "s-1",
		Layer:     LayerRadio,
		Category:  CategoryNet,
		SSID:      "TestNet",
		Net:       &NetEvent{Kind: netstack.StationDisconnected, Reason: "beacon timeout", Action: "reconnect"},
	})

	want := map[string]string{
		"layer":    "RADIO",
		"category": "NET",
		"session":  "s-1",
		"ssid":     "TestNet",
		"event":    "STA_DISCONNECTED",
		"reason":   "beacon timeout",
		"action":   "reconnect",
	}
	for k, v := range want {
		if entry[k] != v {
			t.Errorf("%s: got %v, want %q", k, entry[k], v)
		}
	}
}

func TestSlogAdapterStateChange(t *testing.T) {
	entry := logJSON(t, Event{
		Timestamp:   time.Now(),
		Layer:       LayerConnection,
		Category:    CategoryState,
		StateChange: &StateChangeEvent{Entity: StateEntityConnection, OldState: "CONNECTING", NewState: "CONNECTED"},
	})

	if entry["entity"] != "CONNECTION" {
		t.Errorf("entity: got %v", entry["entity"])
	}
	if entry["new_state"] != "CONNECTED" {
		t.Errorf("new_state: got %v", entry["new_state"])
	}
	if _, ok := entry["session"]; ok {
		t.Error("empty session should be omitted")
	}
}

func TestSlogAdapterExchange(t *testing.T) {
	d := 3 * time.Millisecond
	entry := logJSON(t, Event{
		Timestamp:  time.Now(),
		Layer:      LayerCoAP,
		Category:   CategoryExchange,
		RemoteAddr: "192.0.2.9:40000",
		Exchange: &ExchangeEvent{
			Method: "GET", Path: "/About", Code: "Content",
			ContentFormat: 0, Size: 19, ProcessingTime: &d,
		},
	})

	if entry["path"] != "/About" {
		t.Errorf("path: got %v", entry["path"])
	}
	if entry["size"] != float64(19) {
		t.Errorf("size: got %v", entry["size"])
	}
	if entry["remote"] != "192.0.2.9:40000" {
		t.Errorf("remote: got %v", entry["remote"])
	}
	if _, ok := entry["processing_time"]; !ok {
		t.Error("processing_time missing")
	}
}

func TestSlogAdapterError(t *testing.T) {
	entry := logJSON(t, Event{
		Timestamp: time.Now(),
		Layer:     LayerConnection,
		Category:  CategoryError,
		Error:     &ErrorEventData{Layer: LayerRadio, Message: "init failed", Context: "connect"},
	})

	if entry["error_layer"] != "RADIO" {
		t.Errorf("error_layer: got %v", entry["error_layer"])
	}
	if entry["error_msg"] != "init failed" {
		t.Errorf("error_msg: got %v", entry["error_msg"])
	}
}
