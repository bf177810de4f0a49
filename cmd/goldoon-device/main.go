// Command goldoon-device runs a Wi-Fi station that joins a network and
// serves CoAP resources once it has both an IPv4 and an IPv6 link-local
// address.
//
// Usage:
//
//	goldoon-device [flags]
//
// Flags:
//
//	-config string           YAML configuration file (flags override it)
//	-ssid string             Network SSID
//	-password string         Network passphrase
//	-credentials string      YAML credentials file (ssid, password)
//	-port int                CoAP port (default 5683, 1378 when only elahe is served)
//	-resource string         Resources to serve: about, elahe, both (default "about")
//	-radio string            Radio backend: sim, host (default "sim")
//	-iface string            Host interface for -radio host
//	-connect-timeout dur     Give up connecting after this long (0 = wait forever)
//	-log-level string        Log level: debug, info, warn, error (default "info")
//	-protocol-log string     Write the station log to this .glog file
//	-advertise               Announce the CoAP endpoint over mDNS
//	-state string            Station state file (instance ID, last connection)
//	-interactive             Enable interactive command mode
//
// Examples:
//
//	# Join a network with the simulated radio and serve /About
//	goldoon-device -ssid TestNet -password Secret123
//
//	# Follow wlan0 and serve /elahe on port 1378
//	goldoon-device -radio host -iface wlan0 -credentials /etc/goldoon/wifi.yaml -resource elahe
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/goldoon/goldoon-go/cmd/goldoon-device/interactive"
	"github.com/goldoon/goldoon-go/pkg/connection"
	"github.com/goldoon/goldoon-go/pkg/credentials"
	"github.com/goldoon/goldoon-go/pkg/discovery"
	"github.com/goldoon/goldoon-go/pkg/log"
	"github.com/goldoon/goldoon-go/pkg/netstack"
	"github.com/goldoon/goldoon-go/pkg/persistence"
	"github.com/goldoon/goldoon-go/pkg/resource"
	"github.com/goldoon/goldoon-go/pkg/transport"
)

// Version is set at build time.
var Version = "dev"

// Config holds the station configuration.
type Config struct {
	ConfigFile      string        `yaml:"-"`
	SSID            string        `yaml:"ssid"`
	Password        string        `yaml:"password"`
	CredentialsFile string        `yaml:"credentials"`
	Port            int           `yaml:"port"`
	Resource        string        `yaml:"resource"`
	Radio           string        `yaml:"radio"`
	Interface       string        `yaml:"iface"`
	ConnectTimeout  time.Duration `yaml:"connect_timeout"`
	LogLevel        string        `yaml:"log_level"`
	ProtocolLog     string        `yaml:"protocol_log"`
	Advertise       bool          `yaml:"advertise"`
	StateFile       string        `yaml:"state"`
	Interactive     bool          `yaml:"interactive"`
}

var config Config

func init() {
	flag.StringVar(&config.ConfigFile, "config", "", "YAML configuration file (flags override it)")
	flag.StringVar(&config.SSID, "ssid", "", "Network SSID")
	flag.StringVar(&config.Password, "password", "", "Network passphrase")
	flag.StringVar(&config.CredentialsFile, "credentials", "", "YAML credentials file (ssid, password)")
	flag.IntVar(&config.Port, "port", 0, "CoAP port (default 5683, 1378 when only elahe is served)")
	flag.StringVar(&config.Resource, "resource", "about", "Resources to serve: about, elahe, both")
	flag.StringVar(&config.Radio, "radio", "sim", "Radio backend: sim, host")
	flag.StringVar(&config.Interface, "iface", "", "Host interface for -radio host")
	flag.DurationVar(&config.ConnectTimeout, "connect-timeout", 0, "Give up connecting after this long (0 = wait forever)")
	flag.StringVar(&config.LogLevel, "log-level", "info", "Log level: debug, info, warn, error")
	flag.StringVar(&config.ProtocolLog, "protocol-log", "", "Write the station log to this .glog file")
	flag.BoolVar(&config.Advertise, "advertise", false, "Announce the CoAP endpoint over mDNS")
	flag.StringVar(&config.StateFile, "state", "", "Station state file (instance ID, last connection)")
	flag.BoolVar(&config.Interactive, "interactive", false, "Enable interactive command mode")
}

func main() {
	flag.Parse()
	os.Exit(run(&config, os.Stderr))
}

// run starts the station and blocks until shutdown. It returns the process
// exit code; deferred cleanup has run by the time it returns.
func run(cfg *Config, stderr io.Writer) int {
	output := &logOutput{w: stderr}
	if err := applyConfigFile(cfg); err != nil {
		return failed(slog.New(slog.NewTextHandler(output, nil)), "invalid configuration", err)
	}
	logger := setupLogging(cfg.LogLevel, output)

	resources, err := validateConfig(cfg)
	if err != nil {
		return failed(logger, "invalid configuration", err)
	}

	logger.Info("goldoon station",
		"version", Version,
		"radio", cfg.Radio,
		"resources", resources.String(),
		"port", cfg.Port)

	creds, err := loadCredentials(cfg)
	if err != nil {
		return failed(logger, "credentials", err)
	}
	logger.Info("credentials loaded", "creds", creds.Redacted())

	protocolLogger, closeProtocolLog, err := setupProtocolLog(cfg.ProtocolLog, logger)
	if err != nil {
		return failed(logger, "protocol log", err)
	}
	defer closeProtocolLog()

	events := netstack.NewDispatcher(logger)
	defer events.Close()

	radio, sim, err := createRadio(cfg, events, logger)
	if err != nil {
		return failed(logger, "radio", err)
	}

	var store *persistence.StationStateStore
	instanceID := persistence.NewInstanceID()
	if cfg.StateFile != "" {
		store = persistence.NewStationStateStore(cfg.StateFile)
		state, err := store.LoadOrInit()
		if err != nil {
			return failed(logger, "load state", err)
		}
		instanceID = state.InstanceID
		logger.Info("state loaded", "path", store.Path(), "instance", instanceID, "connects", state.ConnectCount)
	}

	station := connection.NewManager(radio, connection.Config{
		Credentials:    creds,
		Backoff:        connection.DefaultBackoffConfig(),
		Logger:         logger,
		ProtocolLogger: protocolLogger,
	})

	srvConfig := transport.DefaultServerConfig()
	srvConfig.Address = fmt.Sprintf(":%d", cfg.Port)
	srvConfig.Resources = resources
	srvConfig.Elahe = resource.NewElahe(resource.DefaultElaheName)
	srvConfig.Logger = logger
	srvConfig.ProtocolLogger = protocolLogger
	server, err := transport.NewServer(srvConfig)
	if err != nil {
		return failed(logger, "coap server", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var advertising *discovery.DiscoveryManager
	if cfg.Advertise {
		advertising, err = setupDiscovery(cfg, instanceID, creds.SSID(), resources, logger)
		if err != nil {
			return failed(logger, "discovery", err)
		}
	}

	links := make(chan bool, 8)
	station.OnConnected(func() { notifyLink(ctx, links, true) })
	station.OnDisconnected(func() { notifyLink(ctx, links, false) })
	go followLink(ctx, links, station, creds.SSID(), store, advertising, logger)

	if cfg.Interactive {
		console, err := interactive.New(interactive.Config{
			Station:        station,
			Server:         server,
			Sim:            sim,
			ConnectTimeout: cfg.ConnectTimeout,
		})
		if err != nil {
			return failed(logger, "failed to create interactive console", err)
		}
		// Redirect log output through readline to avoid interfering with input
		output.Set(console.Stderr())
		go console.Run(ctx, cancel)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("received signal", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := connect(ctx, station, cfg.ConnectTimeout, logger); err != nil {
		return failed(logger, "connect", err)
	}

	serverDone := make(chan error, 1)
	go func() { serverDone <- server.Run(ctx, station) }()

	<-ctx.Done()
	logger.Info("shutting down")

	if err := station.Disconnect(); err != nil && !errors.Is(err, connection.ErrNotConnected) {
		logger.Warn("disconnect", "error", err)
	}
	if err := <-serverDone; err != nil && !errors.Is(err, context.Canceled) {
		logger.Warn("coap server", "error", err)
	}
	if advertising != nil {
		advertising.Stop()
	}

	logger.Info("goodbye")
	return 0
}

// applyConfigFile loads cfg.ConfigFile, keeping the values of flags given
// on the command line.
func applyConfigFile(cfg *Config) error {
	if cfg.ConfigFile == "" {
		return nil
	}
	data, err := os.ReadFile(cfg.ConfigFile)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	explicit := make(map[string]string)
	flag.Visit(func(f *flag.Flag) {
		explicit[f.Name] = f.Value.String()
	})

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", cfg.ConfigFile, err)
	}
	for name, value := range explicit {
		if err := flag.Set(name, value); err != nil {
			return err
		}
	}
	return nil
}

func validateConfig(cfg *Config) (resource.Set, error) {
	set, err := resource.ParseSet(cfg.Resource)
	if err != nil {
		return 0, err
	}
	if cfg.Port == 0 {
		cfg.Port = transport.DefaultPort
		if set == resource.SetElahe {
			cfg.Port = transport.AlternatePort
		}
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return 0, fmt.Errorf("port must be 1-65535, got %d", cfg.Port)
	}
	switch cfg.Radio {
	case "sim":
	case "host":
		if cfg.Interface == "" {
			return 0, errors.New("-radio host needs -iface")
		}
	default:
		return 0, fmt.Errorf("unknown radio: %s", cfg.Radio)
	}
	if cfg.ConnectTimeout < 0 {
		return 0, fmt.Errorf("connect timeout must not be negative, got %s", cfg.ConnectTimeout)
	}
	return set, nil
}

func setupLogging(level string, w io.Writer) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)
	return logger
}

func loadCredentials(cfg *Config) (*credentials.Store, error) {
	creds := &credentials.Store{}
	if cfg.CredentialsFile != "" {
		if err := creds.Load(cfg.CredentialsFile); err != nil {
			return nil, err
		}
	}
	// Flags win over the file.
	ssid, password := creds.SSID(), creds.Password()
	if cfg.SSID != "" {
		ssid = cfg.SSID
	}
	if cfg.Password != "" {
		password = cfg.Password
	}
	if ssid == "" {
		return nil, errors.New("no SSID configured (use -ssid or -credentials)")
	}
	if err := creds.Set(ssid, password); err != nil {
		return nil, err
	}
	return creds, nil
}

// setupProtocolLog builds the station log: always mirrored to slog at debug
// level, plus a .glog file when path is set.
func setupProtocolLog(path string, logger *slog.Logger) (log.Logger, func(), error) {
	adapter := log.NewSlogAdapter(logger)
	if path == "" {
		return adapter, func() {}, nil
	}
	fileLogger, err := log.NewFileLogger(path)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("station log enabled", "path", path)

	var once sync.Once
	closeFn := func() {
		once.Do(func() {
			if n := fileLogger.Dropped(); n > 0 {
				logger.Warn("station log dropped events", "count", n)
			}
			if err := fileLogger.Close(); err != nil {
				logger.Warn("close station log", "error", err)
			}
		})
	}
	return log.NewMultiLogger(fileLogger, adapter), closeFn, nil
}

func createRadio(cfg *Config, events *netstack.Dispatcher, logger *slog.Logger) (netstack.Radio, *netstack.SimRadio, error) {
	switch cfg.Radio {
	case "host":
		radio, err := netstack.NewHostRadio(events, netstack.HostConfig{
			Interface: cfg.Interface,
			Logger:    logger,
		})
		return radio, nil, err
	default:
		simCfg := netstack.DefaultSimConfig()
		simCfg.Logger = logger
		sim := netstack.NewSimRadio(events, simCfg)
		return sim, sim, nil
	}
}

func setupDiscovery(cfg *Config, instanceID, ssid string, resources resource.Set, logger *slog.Logger) (*discovery.DiscoveryManager, error) {
	advCfg := discovery.DefaultAdvertiserConfig()
	advCfg.Interface = cfg.Interface
	adv, err := discovery.NewMDNSAdvertiser(advCfg)
	if err != nil {
		return nil, err
	}
	dm := discovery.NewDiscoveryManager(adv, &discovery.ServiceInfo{
		InstanceID: instanceID,
		Port:       uint16(cfg.Port),
		Resources:  resources.Paths(),
		Firmware:   Version,
		SSID:       ssid,
	})
	dm.SetLogger(logger)
	return dm, nil
}

// connect joins the network, bounded by timeout when it is positive.
// A shutdown while connecting is not an error.
func connect(ctx context.Context, station *connection.Manager, timeout time.Duration, logger *slog.Logger) error {
	cctx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		cctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	logger.Info("connecting")
	err := station.Connect(cctx)
	switch {
	case err == nil:
		addrs := station.Addrs()
		logger.Info("connected", "ipv4", addrs.IPv4, "ipv6_link_local", addrs.IPv6LinkLocal)
		return nil
	case ctx.Err() != nil:
		return nil
	default:
		return err
	}
}

func notifyLink(ctx context.Context, links chan<- bool, up bool) {
	select {
	case links <- up:
	case <-ctx.Done():
	}
}

// followLink records connections and keeps the mDNS announcement in step
// with the link. store and dm may be nil.
func followLink(ctx context.Context, links <-chan bool, station *connection.Manager, ssid string,
	store *persistence.StationStateStore, dm *discovery.DiscoveryManager, logger *slog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case up := <-links:
			if !up {
				if dm != nil {
					if err := dm.HandleDisconnected(); err != nil && !errors.Is(err, discovery.ErrNotAdvertising) {
						logger.Warn("withdraw announcement", "error", err)
					}
				}
				continue
			}

			if store != nil {
				addrs := station.Addrs()
				if err := store.RecordConnection(persistence.ConnectionRecord{
					SSID:          ssid,
					IPv4:          addrs.IPv4.String(),
					IPv6LinkLocal: addrs.IPv6LinkLocal.String(),
				}); err != nil {
					logger.Warn("save state", "error", err)
				}
			}
			if dm != nil {
				if err := dm.HandleConnected(ctx); err != nil {
					logger.Warn("announce", "error", err)
				}
			}
		}
	}
}

func failed(logger *slog.Logger, msg string, err error) int {
	logger.Error(msg, "error", err)
	return 1
}

// logOutput lets the interactive console take over log output after the
// logger has been created.
type logOutput struct {
	mu sync.Mutex
	w  io.Writer
}

func (o *logOutput) Write(p []byte) (int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.w.Write(p)
}

// Set redirects subsequent writes to w.
func (o *logOutput) Set(w io.Writer) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.w = w
}
