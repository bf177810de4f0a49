package log

import (
	"testing"
	"time"

	"github.com/goldoon/goldoon-go/pkg/netstack"
)

func TestEventCBORKeepsPayload(t *testing.T) {
	ts := time.Date(2026, 3, 4, 5, 6, 7, 891011, time.UTC)
	d := 250 * time.Microsecond
	event := Event{
		Timestamp:  ts,
		Layer:      LayerCoAP,
		Category:   CategoryExchange,
		RemoteAddr: "[fe80::1]:5683",
		Exchange: &ExchangeEvent{
			Method:         "GET",
			Path:           "/elahe",
			Token:          []byte{0xAB, 0xCD},
			Confirmable:    true,
			Code:           "Content",
			ContentFormat:  60,
			Size:           42,
			ProcessingTime: &d,
		},
	}

	data, err := EncodeEvent(event)
	if err != nil {
		t.Fatalf("EncodeEvent failed: %v", err)
	}
	got, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("DecodeEvent failed: %v", err)
	}

	if !got.Timestamp.Equal(ts) {
		t.Errorf("Timestamp: got %v, want %v", got.Timestamp, ts)
	}
	if got.Exchange == nil {
		t.Fatal("Exchange payload lost")
	}
	if got.Exchange.ContentFormat != 60 || !got.Exchange.Confirmable {
		t.Errorf("Exchange: got %+v", got.Exchange)
	}
	if got.Exchange.ProcessingTime == nil || *got.Exchange.ProcessingTime != d {
		t.Errorf("ProcessingTime: got %v, want %v", got.Exchange.ProcessingTime, d)
	}
	if got.Net != nil || got.StateChange != nil || got.Error != nil {
		t.Error("unexpected payloads decoded")
	}
}

func TestNetEventFrom(t *testing.T) {
	ev := netstack.Event{Kind: netstack.StationDisconnected, Reason: "auth expired"}
	n := NetEventFrom(ev, "reconnect")
	if n.Addr != "" {
		t.Errorf("Addr: got %q, want empty", n.Addr)
	}
	if n.Action != "reconnect" || n.Reason != "auth expired" {
		t.Errorf("got %+v", n)
	}
}

func TestLayerAndCategoryNames(t *testing.T) {
	if LayerCoAP.String() != "COAP" || Layer(9).String() != "UNKNOWN" {
		t.Error("unexpected layer names")
	}
	if CategoryExchange.String() != "EXCHANGE" || Category(9).String() != "UNKNOWN" {
		t.Error("unexpected category names")
	}
	if StateEntityServer.String() != "SERVER" {
		t.Error("unexpected entity name")
	}
}
