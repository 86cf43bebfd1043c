// Command dvmhost wires the configuration, modem transport, network peer,
// radio-ID lookup, and host arbitrator together and runs until SIGINT or
// SIGTERM cancels the host's context.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	charmlog "github.com/charmbracelet/log"
	"github.com/spf13/pflag"

	"github.com/openrepeater/dvmhost-go/internal/calibconsole"
	"github.com/openrepeater/dvmhost-go/internal/config"
	"github.com/openrepeater/dvmhost-go/internal/host"
	"github.com/openrepeater/dvmhost-go/internal/identdb"
	"github.com/openrepeater/dvmhost-go/internal/lookup"
	"github.com/openrepeater/dvmhost-go/internal/modem"
	"github.com/openrepeater/dvmhost-go/internal/netlink"
)

const version = "1.0.0-go"

var (
	header1 = "This software is for use on amateur radio networks only,"
	header2 = "it is to be used for educational purposes only."
)

func main() {
	var (
		configFile  = pflag.StringP("config", "c", "/etc/dvmhost/config.yaml", "Configuration file path")
		showVersion = pflag.BoolP("version", "v", false, "Show version information and exit")
		calibrate   = pflag.BoolP("calibrate", "C", false, "Attach the colourised calibration console")
		rconAddr    = pflag.StringP("rcon-listen", "r", "", "REST/RCON websocket listen address, e.g. :8089 (disabled if empty)")
	)
	pflag.Parse()

	if *showVersion {
		fmt.Printf("dvmhost-go v%s\n", version)
		fmt.Println(header1)
		fmt.Println(header2)
		return
	}

	if pflag.NArg() > 0 {
		*configFile = pflag.Arg(0)
	}

	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Printf("dvmhost-go v%s starting with config: %s", version, *configFile)

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	m, err := buildModem(cfg.System.Modem)
	if err != nil {
		log.Fatalf("modem: %v", err)
	}

	var netPeer *netlink.Peer
	if cfg.Network.Enable {
		netPeer, err = buildNetworkPeer(cfg)
		if err != nil {
			log.Fatalf("network: %v", err)
		}
	}

	h, err := host.New(cfg, m, netPeer)
	if err != nil {
		log.Fatalf("host: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	lookupSvc, closeLookup := buildLookup(ctx, cfg.System.Lookup)
	if lookupSvc != nil {
		if err := lookupSvc.Start(); err != nil {
			log.Printf("lookup: start failed: %v", err)
		}
		defer lookupSvc.Stop()
	}
	if closeLookup != nil {
		defer closeLookup()
	}

	if *calibrate {
		console := calibconsole.NewStderr()
		console.SetLevel(charmlog.DebugLevel)
		h.SetStatusReporter(console)
	}

	var rcon *netlink.RconServer
	if *rconAddr != "" {
		rcon = netlink.NewRconServer(rconHandler(h, lookupSvc))
		srv := &http.Server{Addr: *rconAddr, Handler: rcon}
		go func() {
			log.Printf("rcon: listening on %s", *rconAddr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("rcon: server error: %v", err)
			}
		}()
		defer srv.Close()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Printf("received signal %v, shutting down...", sig)
		cancel()
	}()

	if err := h.Run(ctx); err != nil {
		log.Fatalf("host: %v", err)
	}
	log.Print("dvmhost-go stopped")
}

// buildModem selects the modem transport from system.modem.port: a bare
// "null" for bench testing, "udp:host:port" for an MMDVM-style network
// modem, or "uart:/dev/ttyUSBn" (baud fixed at 115200, matching the
// reference hardware) for a directly attached board.
func buildModem(cfg config.ModemConfig) (modem.Modem, error) {
	switch {
	case cfg.Port == "" || cfg.Port == "null":
		return modem.NewNullModem(version), nil
	case strings.HasPrefix(cfg.Port, "udp:"):
		hostPort := strings.TrimPrefix(cfg.Port, "udp:")
		addr, portStr, err := splitHostPort(hostPort)
		if err != nil {
			return nil, fmt.Errorf("modem: invalid udp port spec %q: %w", cfg.Port, err)
		}
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return nil, fmt.Errorf("modem: invalid udp port %q: %w", portStr, err)
		}
		return modem.NewUDPModem(addr, port, 0)
	case strings.HasPrefix(cfg.Port, "uart:"):
		device := strings.TrimPrefix(cfg.Port, "uart:")
		return modem.NewSerialModem(device, 115200), nil
	default:
		return nil, fmt.Errorf("modem: unrecognised port spec %q", cfg.Port)
	}
}

func splitHostPort(hostPort string) (string, string, error) {
	idx := strings.LastIndex(hostPort, ":")
	if idx < 0 {
		return "", "", fmt.Errorf("expected host:port")
	}
	return hostPort[:idx], hostPort[idx+1:], nil
}

// buildNetworkPeer constructs the UDP network peer, registering every
// channel either enabled protocol needs: DMR's configured slots (gated by
// network.slot1/slot2), P25's single channel 0.
func buildNetworkPeer(cfg config.Config) (*netlink.Peer, error) {
	var channels []uint8
	if cfg.Protocols.DMR.Enable {
		if cfg.Network.Slot1 {
			channels = append(channels, 1)
		}
		if cfg.Network.Slot2 {
			channels = append(channels, 2)
		}
	}
	if cfg.Protocols.P25.Enable {
		channels = append(channels, 0)
	}
	return netlink.NewPeer(
		cfg.Network.Address,
		int(cfg.Network.Port),
		0,
		cfg.Network.ID,
		cfg.Network.Password,
		int(cfg.Network.Jitter),
		channels,
		false,
	)
}

// buildLookup constructs the radio-ID/callsign lookup named by
// system.lookup.mode, or nil if disabled. The returned closer releases
// the database handle (and stops a running syncer via ctx cancellation)
// for the "database" mode; callers should defer it alongside Stop().
func buildLookup(ctx context.Context, cfg config.LookupConfig) (lookup.RadioLookupInterface, func()) {
	switch cfg.Mode {
	case "file":
		return lookup.NewRadioLookup(cfg.File, cfg.ReloadHours), nil
	case "database":
		dbLogger := log.New(os.Stdout, "[identdb] ", log.LstdFlags)
		db, err := identdb.NewDB(identdb.Config{Path: cfg.DatabasePath}, dbLogger)
		if err != nil {
			log.Printf("lookup: database init failed: %v", err)
			return nil, nil
		}
		repo := identdb.NewRadioUserRepository(db.GetDB())
		adapter := lookup.NewRadioDatabaseAdapterWithConfig(repo, lookup.RadioDatabaseAdapterConfig{
			EnableCache: true,
			CacheSize:   cfg.CacheSize,
			CacheExpiry: 5 * time.Minute,
		})
		if cfg.SyncEnable {
			syncer := identdb.NewSyncer(repo, dbLogger)
			go syncer.Start(ctx)
		}
		return adapter, func() { db.Close() }
	default:
		return nil, nil
	}
}

// rconHandler dispatches REST/RCON actions onto Host's cross-thread
// request surface — the only way that boundary is allowed to touch core
// state, per the single-writer rule the arbitration loop depends on.
func rconHandler(h *host.Host, lookupSvc lookup.RadioLookupInterface) func(netlink.RconCommand) error {
	return func(cmd netlink.RconCommand) error {
		switch cmd.Action {
		case "fire-cwid":
			h.RequestCWId()
			return nil
		case "fire-beacon":
			h.RequestBeaconBurst()
			return nil
		case "fire-site-id":
			h.RequestSiteIdentityBroadcast()
			return nil
		case "mode":
			return nil
		case "lookup-reload":
			if lookupSvc == nil {
				return fmt.Errorf("rcon: lookup service not configured")
			}
			return lookupSvc.ForceReload()
		default:
			return fmt.Errorf("rcon: unrecognised action %q", cmd.Action)
		}
	}
}
