// Package commands implements the goldoon-log CLI commands.
package commands

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/goldoon/goldoon-go/pkg/log"
	"github.com/goldoon/goldoon-go/pkg/netstack"
)

// ViewFilter specifies criteria for filtering events in the view command.
type ViewFilter struct {
	SessionID string
	Layer     *log.Layer
	Category  *log.Category
	NetKind   netstack.EventKind
}

func (f ViewFilter) logFilter() log.Filter {
	return log.Filter{
		SessionID: f.SessionID,
		Layer:     f.Layer,
		Category:  f.Category,
		NetKind:   f.NetKind,
	}
}

// formatEvent writes a human-readable representation of the event to w.
func formatEvent(w io.Writer, event log.Event) {
	// Header line: timestamp [session:id] LAYER Type
	ts := event.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z")
	session := shortenID(event.SessionID)
	if session == "" {
		session = "-"
	}

	var typeLabel string
	switch {
	case event.Net != nil:
		typeLabel = event.Net.Kind.String()
	case event.StateChange != nil:
		typeLabel = "State"
	case event.Exchange != nil:
		typeLabel = event.Exchange.Method
	case event.Error != nil:
		typeLabel = "Error"
	default:
		typeLabel = "Unknown"
	}

	fmt.Fprintf(w, "%s [session:%s] %s %s\n", ts, session, event.Layer, typeLabel)
	if event.SSID != "" {
		fmt.Fprintf(w, "  SSID: %s\n", event.SSID)
	}
	if event.RemoteAddr != "" {
		fmt.Fprintf(w, "  Remote: %s\n", event.RemoteAddr)
	}

	switch {
	case event.Net != nil:
		formatNetDetails(w, event.Net)
	case event.StateChange != nil:
		formatStateChangeDetails(w, event.StateChange)
	case event.Exchange != nil:
		formatExchangeDetails(w, event.Exchange)
	case event.Error != nil:
		formatErrorDetails(w, event.Error)
	}

	fmt.Fprintln(w) // Blank line between events
}

// shortenID returns the first 8 characters of a session ID.
func shortenID(id string) string {
	if len(id) >= 8 {
		return id[:8]
	}
	return id
}

func formatNetDetails(w io.Writer, n *log.NetEvent) {
	if n.Addr != "" {
		fmt.Fprintf(w, "  Addr: %s\n", n.Addr)
	}
	if n.Reason != "" {
		fmt.Fprintf(w, "  Reason: %s\n", n.Reason)
	}
	if n.Action != "" {
		fmt.Fprintf(w, "  Action: %s\n", n.Action)
	}
}

func formatStateChangeDetails(w io.Writer, sc *log.StateChangeEvent) {
	fmt.Fprintf(w, "  Entity: %s\n", sc.Entity.String())
	if sc.OldState != "" {
		fmt.Fprintf(w, "  %s -> %s\n", sc.OldState, sc.NewState)
	} else {
		fmt.Fprintf(w, "  -> %s\n", sc.NewState)
	}
	if sc.Reason != "" {
		fmt.Fprintf(w, "  Reason: %s\n", sc.Reason)
	}
}

func formatExchangeDetails(w io.Writer, ex *log.ExchangeEvent) {
	fmt.Fprintf(w, "  Path: %s\n", ex.Path)
	if ex.Code != "" {
		fmt.Fprintf(w, "  Code: %s\n", ex.Code)
	}
	if ex.ContentFormat >= 0 {
		fmt.Fprintf(w, "  ContentFormat: %d\n", ex.ContentFormat)
	}
	if ex.Size > 0 {
		fmt.Fprintf(w, "  Size: %d bytes\n", ex.Size)
	}
	if ex.ProcessingTime != nil {
		fmt.Fprintf(w, "  Duration: %s\n", formatDuration(*ex.ProcessingTime))
	}
}

func formatErrorDetails(w io.Writer, err *log.ErrorEventData) {
	fmt.Fprintf(w, "  Layer: %s\n", err.Layer.String())
	fmt.Fprintf(w, "  Message: %s\n", err.Message)
	if err.Context != "" {
		fmt.Fprintf(w, "  Context: %s\n", err.Context)
	}
}

// formatDuration formats a duration for display.
func formatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%.3fus", float64(d.Nanoseconds())/1000)
	}
	if d < time.Second {
		return fmt.Sprintf("%.3fms", float64(d.Microseconds())/1000)
	}
	return fmt.Sprintf("%.3fs", d.Seconds())
}

// ParseLayerFlag parses a layer string from a command-line flag (case-insensitive).
func ParseLayerFlag(s string) (log.Layer, error) {
	switch strings.ToLower(s) {
	case "radio":
		return log.LayerRadio, nil
	case "connection":
		return log.LayerConnection, nil
	case "coap":
		return log.LayerCoAP, nil
	default:
		return 0, fmt.Errorf("invalid layer: %s (must be radio, connection, or coap)", s)
	}
}

// ParseCategoryFlag parses a category string from a command-line flag (case-insensitive).
func ParseCategoryFlag(s string) (log.Category, error) {
	switch strings.ToLower(s) {
	case "net":
		return log.CategoryNet, nil
	case "state":
		return log.CategoryState, nil
	case "exchange":
		return log.CategoryExchange, nil
	case "error":
		return log.CategoryError, nil
	default:
		return 0, fmt.Errorf("invalid category: %s (must be net, state, exchange, or error)", s)
	}
}

// ParseEventFlag parses a stack event kind name such as GOT_IP4 (case-insensitive).
func ParseEventFlag(s string) (netstack.EventKind, error) {
	for _, k := range netstack.Kinds {
		if strings.EqualFold(k.String(), s) {
			return k, nil
		}
	}
	return 0, fmt.Errorf("invalid event: %s", s)
}

// RunView executes the view command.
func RunView(path string, filter ViewFilter, output io.Writer) error {
	reader, err := log.NewFilteredReader(path, filter.logFilter())
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		formatEvent(output, event)
	}

	return nil
}
