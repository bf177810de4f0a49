package commands

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/goldoon/goldoon-go/pkg/log"
	"github.com/goldoon/goldoon-go/pkg/netstack"
)

// Stats holds aggregate statistics about a log file.
type Stats struct {
	TotalEvents      int
	EventsByLayer    map[log.Layer]int
	EventsByCategory map[log.Category]int
	NetEvents        map[netstack.EventKind]int
	Reconnects       int
	Sessions         map[string]*SessionStats
	Requests         map[string]int // by path
	Errors           int
	TimeRange        struct {
		Start time.Time
		End   time.Time
	}
}

// SessionStats holds statistics for a single connection attempt.
type SessionStats struct {
	FirstSeen time.Time
	LastSeen  time.Time
	Events    int
	SSID      string

	// ConnectedAfter is the time from the first event to the CONNECTED
	// transition, zero if the session never connected.
	ConnectedAfter time.Duration
}

// RunStats analyzes the log file and prints statistics.
func RunStats(path string, w io.Writer) error {
	reader, err := log.NewReader(path)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	stats := &Stats{
		EventsByLayer:    make(map[log.Layer]int),
		EventsByCategory: make(map[log.Category]int),
		NetEvents:        make(map[netstack.EventKind]int),
		Sessions:         make(map[string]*SessionStats),
		Requests:         make(map[string]int),
	}

	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		stats.add(event)
	}

	printStats(w, stats)
	return nil
}

func (s *Stats) add(event log.Event) {
	s.TotalEvents++
	s.EventsByLayer[event.Layer]++
	s.EventsByCategory[event.Category]++

	if s.TimeRange.Start.IsZero() || event.Timestamp.Before(s.TimeRange.Start) {
		s.TimeRange.Start = event.Timestamp
	}
	if event.Timestamp.After(s.TimeRange.End) {
		s.TimeRange.End = event.Timestamp
	}

	switch {
	case event.Net != nil:
		s.NetEvents[event.Net.Kind]++
		if event.Net.Action == "reconnect" {
			s.Reconnects++
		}
	case event.Exchange != nil:
		s.Requests[event.Exchange.Path]++
	case event.Error != nil:
		s.Errors++
	}

	if event.SessionID == "" {
		return
	}
	sess, ok := s.Sessions[event.SessionID]
	if !ok {
		sess = &SessionStats{FirstSeen: event.Timestamp, LastSeen: event.Timestamp}
		s.Sessions[event.SessionID] = sess
	}
	sess.Events++
	if event.Timestamp.After(sess.LastSeen) {
		sess.LastSeen = event.Timestamp
	}
	if event.SSID != "" && sess.SSID == "" {
		sess.SSID = event.SSID
	}
	if sc := event.StateChange; sc != nil && sc.Entity == log.StateEntityConnection &&
		sc.NewState == "CONNECTED" && sess.ConnectedAfter == 0 {
		sess.ConnectedAfter = event.Timestamp.Sub(sess.FirstSeen)
	}
}

func printStats(w io.Writer, stats *Stats) {
	fmt.Fprintln(w, "=== Station Log Statistics ===")
	fmt.Fprintln(w)

	if stats.TotalEvents > 0 {
		fmt.Fprintf(w, "Time Range: %s to %s\n",
			stats.TimeRange.Start.Format(time.RFC3339),
			stats.TimeRange.End.Format(time.RFC3339))
		fmt.Fprintf(w, "Duration:   %s\n", stats.TimeRange.End.Sub(stats.TimeRange.Start).Round(time.Second))
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Total Events: %d\n", stats.TotalEvents)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Layer:")
	for _, layer := range []log.Layer{log.LayerRadio, log.LayerConnection, log.LayerCoAP} {
		if count := stats.EventsByLayer[layer]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", layer.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Category:")
	for _, cat := range []log.Category{log.CategoryNet, log.CategoryState, log.CategoryExchange, log.CategoryError} {
		if count := stats.EventsByCategory[cat]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", cat.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	if len(stats.NetEvents) > 0 {
		fmt.Fprintln(w, "Stack Events:")
		for _, k := range netstack.Kinds {
			if count := stats.NetEvents[k]; count > 0 {
				fmt.Fprintf(w, "  %-20s %d\n", k.String()+":", count)
			}
		}
		fmt.Fprintf(w, "  %-20s %d\n", "reconnects:", stats.Reconnects)
		fmt.Fprintln(w)
	}

	if len(stats.Requests) > 0 {
		paths := make([]string, 0, len(stats.Requests))
		for p := range stats.Requests {
			paths = append(paths, p)
		}
		sort.Strings(paths)

		fmt.Fprintln(w, "CoAP Requests:")
		for _, p := range paths {
			fmt.Fprintf(w, "  %-12s %d\n", p+":", stats.Requests[p])
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Sessions: %d\n", len(stats.Sessions))
	if len(stats.Sessions) > 0 {
		type sessionInfo struct {
			id    string
			stats *SessionStats
		}
		sessions := make([]sessionInfo, 0, len(stats.Sessions))
		for id, ss := range stats.Sessions {
			sessions = append(sessions, sessionInfo{id, ss})
		}
		sort.Slice(sessions, func(i, j int) bool {
			return sessions[i].stats.FirstSeen.Before(sessions[j].stats.FirstSeen)
		})

		fmt.Fprintln(w)
		for _, s := range sessions {
			duration := s.stats.LastSeen.Sub(s.stats.FirstSeen).Round(time.Millisecond)
			fmt.Fprintf(w, "  [%s] %d events, duration %s\n", shortenID(s.id), s.stats.Events, duration)
			if s.stats.SSID != "" {
				fmt.Fprintf(w, "           SSID: %s\n", s.stats.SSID)
			}
			if s.stats.ConnectedAfter > 0 {
				fmt.Fprintf(w, "           Connected after: %s\n", s.stats.ConnectedAfter.Round(time.Millisecond))
			}
		}
	}

	if stats.Errors > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Errors: %d\n", stats.Errors)
	}
}
