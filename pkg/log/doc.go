// Package log provides machine-readable station logging.
//
// This package defines the Logger interface and Event types for capturing
// what the station did: network stack events at the radio layer, state
// changes of the connection synchronizer and the resource server, and CoAP
// exchanges handled by the server. It is separate from operational logging
// (slog); the capture is a complete event trace for debugging and analysis.
//
// # Basic Usage
//
// Components take a Logger in their configuration:
//
//	// For development: log to console via slog
//	cfg.ProtocolLogger = log.NewSlogAdapter(slog.Default())
//
//	// For production: write to binary file
//	cfg.ProtocolLogger, _ = log.NewFileLogger("/var/log/goldoon/station.glog")
//
//	// Both: use MultiLogger
//	cfg.ProtocolLogger = log.NewMultiLogger(
//	    log.NewSlogAdapter(slog.Default()),
//	    fileLogger,
//	)
//
// # Event Types
//
// Events are captured at three layers:
//   - Radio: network stack events (NetEvent)
//   - Connection: synchronizer state changes (StateChangeEvent)
//   - CoAP: request/response exchanges (ExchangeEvent) and server state
//
// Errors at any layer use ErrorEventData.
//
// # File Format
//
// Log files are a stream of CBOR-encoded events with the .glog extension.
// The goldoon-log command prints and summarizes them.
package log
