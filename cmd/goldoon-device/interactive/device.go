// Package interactive provides the interactive command-line interface
// for the goldoon station.
package interactive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/netip"
	"strings"
	"sync"
	"time"

	"github.com/chzyer/readline"

	"github.com/goldoon/goldoon-go/pkg/connection"
	"github.com/goldoon/goldoon-go/pkg/netstack"
)

// Station is the connection manager as seen by the console.
// *connection.Manager implements it.
type Station interface {
	State() connection.State
	SessionID() string
	Addrs() connection.Addrs
	Connect(ctx context.Context) error
	Disconnect() error
}

// Server reports CoAP server status. *transport.Server implements it.
type Server interface {
	Addr() net.Addr
	IsRunning() bool
	RequestCount() uint64
}

// Config wires the console to the running station.
type Config struct {
	Station Station

	// Server is optional.
	Server Server

	// Sim enables the drop and inject commands. Nil for a host radio.
	Sim *netstack.SimRadio

	// ConnectTimeout bounds the connect command (0 = no limit).
	ConnectTimeout time.Duration
}

// Device handles interactive mode for goldoon-device.
type Device struct {
	cfg Config
	rl  *readline.Instance
	out io.Writer

	mu         sync.Mutex
	connecting bool
}

// New creates a new interactive console.
func New(cfg Config) (*Device, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "station> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}
	return &Device{cfg: cfg, rl: rl, out: rl.Stdout()}, nil
}

// Stdout returns a writer that properly coordinates with the readline input.
// Use this for log output to avoid interfering with the command prompt.
func (d *Device) Stdout() io.Writer {
	return d.rl.Stdout()
}

// Stderr returns a writer that properly coordinates with the readline input.
func (d *Device) Stderr() io.Writer {
	return d.rl.Stderr()
}

// Run starts the interactive command loop.
func (d *Device) Run(ctx context.Context, cancel context.CancelFunc) {
	defer d.rl.Close()

	d.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := d.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(d.out, "Exiting...")
			cancel()
			return
		}

		if !d.Exec(ctx, line) {
			fmt.Fprintln(d.out, "Exiting...")
			cancel()
			return
		}
	}
}

// Exec runs one command line. It returns false when the console should
// exit.
func (d *Device) Exec(ctx context.Context, line string) bool {
	parts := strings.Fields(strings.TrimSpace(line))
	if len(parts) == 0 {
		return true
	}
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case "help", "?":
		d.printHelp()

	case "status", "s":
		d.cmdStatus()

	case "addrs", "a":
		d.cmdAddrs()

	case "connect", "c":
		d.cmdConnect(ctx)

	case "disconnect", "d":
		d.cmdDisconnect()

	case "drop":
		d.cmdDrop(args)

	case "inject":
		d.cmdInject(args)

	case "quit", "exit", "q":
		return false

	default:
		fmt.Fprintf(d.out, "Unknown command: %s (type 'help' for commands)\n", cmd)
	}
	return true
}

func (d *Device) printHelp() {
	fmt.Fprintln(d.out, `
Station Commands:
  Connection:
    status             - Show connection and server status
    addrs              - Show the acquired addresses
    connect            - Join the configured network (runs in background)
    disconnect         - Leave the network

  Simulation (sim radio only):
    drop [reason]      - Simulate losing the access point
    inject <event> [addr]
                       - Publish a stack event: sta_connected, sta_disconnected,
                         got_ip4 <addr>, got_ip6_linklocal <addr>

  General:
    help               - Show this help
    quit               - Exit`)
}

func (d *Device) cmdStatus() {
	st := d.cfg.Station
	fmt.Fprintf(d.out, "Connection: %s\n", st.State())
	if id := st.SessionID(); id != "" {
		fmt.Fprintf(d.out, "Session:    %s\n", id)
	}

	srv := d.cfg.Server
	if srv == nil {
		return
	}
	if !srv.IsRunning() {
		fmt.Fprintln(d.out, "Server:     stopped")
		return
	}
	fmt.Fprintf(d.out, "Server:     %s (%d requests)\n", srv.Addr(), srv.RequestCount())
}

func (d *Device) cmdAddrs() {
	addrs := d.cfg.Station.Addrs()
	fmt.Fprintf(d.out, "IPv4:           %s\n", formatAddr(addrs.IPv4))
	fmt.Fprintf(d.out, "IPv6 link-local: %s\n", formatAddr(addrs.IPv6LinkLocal))
}

func (d *Device) cmdConnect(ctx context.Context) {
	d.mu.Lock()
	if d.connecting {
		d.mu.Unlock()
		fmt.Fprintln(d.out, "Connect already running")
		return
	}
	d.connecting = true
	d.mu.Unlock()

	fmt.Fprintln(d.out, "Connecting...")
	go func() {
		defer func() {
			d.mu.Lock()
			d.connecting = false
			d.mu.Unlock()
		}()

		cctx := ctx
		if d.cfg.ConnectTimeout > 0 {
			var cancel context.CancelFunc
			cctx, cancel = context.WithTimeout(ctx, d.cfg.ConnectTimeout)
			defer cancel()
		}

		if err := d.cfg.Station.Connect(cctx); err != nil {
			fmt.Fprintf(d.out, "Connect failed: %v\n", err)
			return
		}
		addrs := d.cfg.Station.Addrs()
		fmt.Fprintf(d.out, "Connected (%s, %s)\n", addrs.IPv4, addrs.IPv6LinkLocal)
	}()
}

func (d *Device) cmdDisconnect() {
	if err := d.cfg.Station.Disconnect(); err != nil {
		fmt.Fprintf(d.out, "Error: %v\n", err)
		return
	}
	fmt.Fprintln(d.out, "Disconnected")
}

func (d *Device) cmdDrop(args []string) {
	if d.cfg.Sim == nil {
		fmt.Fprintln(d.out, "drop needs the sim radio")
		return
	}
	reason := "console"
	if len(args) > 0 {
		reason = strings.Join(args, " ")
	}
	if err := d.cfg.Sim.Drop(reason); err != nil {
		fmt.Fprintf(d.out, "Error: %v\n", err)
	}
}

func (d *Device) cmdInject(args []string) {
	if d.cfg.Sim == nil {
		fmt.Fprintln(d.out, "inject needs the sim radio")
		return
	}
	if len(args) < 1 {
		fmt.Fprintln(d.out, "Usage: inject <event> [addr]")
		return
	}
	ev, err := parseEvent(args[0], args[1:])
	if err != nil {
		fmt.Fprintf(d.out, "Error: %v\n", err)
		return
	}
	if err := d.cfg.Sim.Inject(ev); err != nil {
		fmt.Fprintf(d.out, "Error: %v\n", err)
	}
}

// parseEvent builds a stack event from its kind name and arguments.
func parseEvent(name string, args []string) (netstack.Event, error) {
	var kind netstack.EventKind
	for _, k := range netstack.Kinds {
		if strings.EqualFold(k.String(), name) {
			kind = k
			break
		}
	}
	if !kind.Valid() {
		return netstack.Event{}, fmt.Errorf("unknown event %q", name)
	}

	ev := netstack.Event{Kind: kind}
	switch kind {
	case netstack.GotIPv4, netstack.GotIPv6LinkLocal:
		if len(args) < 1 {
			return netstack.Event{}, errors.New("address required")
		}
		addr, err := netip.ParseAddr(args[0])
		if err != nil {
			return netstack.Event{}, err
		}
		ev.Addr = addr
	case netstack.StationDisconnected:
		ev.Reason = strings.Join(args, " ")
	}
	return ev, nil
}

func formatAddr(a netip.Addr) string {
	if !a.IsValid() {
		return "-"
	}
	return a.String()
}
