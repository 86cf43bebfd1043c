// Package host implements the single-threaded cooperative scheduler that
// owns the physical channel: it clocks the modem, the network peer, and
// whichever protocol Control units are enabled, arbitrating which one
// currently holds the air.
package host

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync/atomic"
	"time"

	"github.com/openrepeater/dvmhost-go/internal/config"
	"github.com/openrepeater/dvmhost-go/internal/dmr"
	"github.com/openrepeater/dvmhost-go/internal/frame"
	"github.com/openrepeater/dvmhost-go/internal/modem"
	"github.com/openrepeater/dvmhost-go/internal/netlink"
	"github.com/openrepeater/dvmhost-go/internal/p25"
	"github.com/openrepeater/dvmhost-go/internal/sitedata"
	"github.com/openrepeater/dvmhost-go/internal/timing"
)

// Mode is the Host's top-level arbitration state.
type Mode int

const (
	ModeIdle Mode = iota
	ModeTDMA
	ModeFDMA
	ModeLockout
	ModeError
	ModeQuit
)

func (m Mode) String() string {
	switch m {
	case ModeIdle:
		return "IDLE"
	case ModeTDMA:
		return "TDMA"
	case ModeFDMA:
		return "FDMA"
	case ModeLockout:
		return "LOCKOUT"
	case ModeError:
		return "ERROR"
	case ModeQuit:
		return "QUIT"
	default:
		return "UNKNOWN"
	}
}

const (
	idleSleep   = 10 * time.Millisecond
	activeSleep = 5 * time.Millisecond

	defaultBeaconIntervalMS = 60000
	defaultBeaconDurationMS = 3000

	adjSSNetworkIntervalMS = 10000
)

// StatusReporter receives mode transitions for display outside the core
// loop (the calibration console, a future REST/RCON push). Host calls it
// synchronously from the arbitration loop, so implementations must not
// block.
type StatusReporter interface {
	ReportMode(mode string)
}

// Host is the top-level arbitrator. One per process.
type Host struct {
	cfg      config.Config
	modem    modem.Modem
	network  *netlink.Peer
	dmr      *dmr.Control
	p25      *p25.Control
	reporter StatusReporter

	mode      Mode
	fixedMode string // "", "dmr", "p25" — mirrors cfg.System.FixedMode

	modeTimer *timing.Timer // rf/net mode-hang, shared across both protocols

	cwTimer    *timing.Timer
	cwEnabled  bool
	cwCallsign string

	dmrBeaconEnabled  bool
	dmrBeaconInterval *timing.Timer
	dmrBeaconDuration *timing.Timer

	site          sitedata.SiteData
	adjSSNetwork  *timing.Timer

	p25CCHaltedPrev bool

	quit bool

	// cwRequested and beaconRequested are set from outside the arbitration
	// goroutine (the REST/RCON boundary) and consumed atomically once per
	// tick — per-Host atomic flags in place of the process-wide "fire"
	// booleans a hand-rolled C++ port would otherwise carry forward.
	cwRequested     atomic.Bool
	beaconRequested atomic.Bool
	siteIDRequested atomic.Bool
}

// New validates cfg's cross-component invariants and builds a Host wired
// to the given modem and (optional, may be nil) network peer. Protocol
// Control units are constructed here from cfg.
func New(cfg config.Config, m modem.Modem, net *netlink.Peer) (*Host, error) {
	if err := validateInvariants(cfg); err != nil {
		return nil, err
	}

	site := buildSiteData(cfg.System.SiteConfig)

	h := &Host{
		cfg:       cfg,
		modem:     m,
		network:   net,
		mode:      ModeIdle,
		fixedMode: cfg.System.FixedMode,
		modeTimer: timing.New(0),
		cwTimer:   timing.New(int(cfg.System.CWId.Time) * 1000),
		cwEnabled: cfg.System.CWId.Enable,
		cwCallsign: cfg.System.CWId.Callsign,
		site:      site,
		adjSSNetwork: timing.New(adjSSNetworkIntervalMS),
	}

	if cfg.Protocols.DMR.Enable {
		h.dmr = dmr.NewControl(dmrControlConfig(cfg, site))
		h.dmrBeaconEnabled = cfg.Protocols.DMR.Beacons && cfg.Protocols.DMR.TrunkSlot == 0
		h.dmrBeaconInterval = timing.New(defaultBeaconIntervalMS)
		h.dmrBeaconDuration = timing.New(defaultBeaconDurationMS)
	}
	if cfg.Protocols.P25.Enable {
		h.p25 = p25.NewControl(p25ControlConfig(cfg))
		h.adjSSNetwork.Start()
	}

	return h, nil
}

// validateInvariants checks the startup invariants spec names as fatal:
// fixed mode selects exactly one protocol, duplex is required whenever a
// CC or beacon is enabled, and a dedicated/roaming CC of one protocol
// cannot coexist with the other protocol simply being enabled.
func validateInvariants(cfg config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	sys := cfg.System
	dmrCfg := cfg.Protocols.DMR
	p25Cfg := cfg.Protocols.P25

	switch sys.FixedMode {
	case "dmr":
		if !dmrCfg.Enable || p25Cfg.Enable {
			return fmt.Errorf("host: fixedMode \"dmr\" requires protocols.dmr.enable and protocols.p25.enable=false")
		}
	case "p25":
		if !p25Cfg.Enable || dmrCfg.Enable {
			return fmt.Errorf("host: fixedMode \"p25\" requires protocols.p25.enable and protocols.dmr.enable=false")
		}
	}

	ccOrBeacon := dmrCfg.Control || dmrCfg.Beacons || p25Cfg.Control || p25Cfg.Beacons
	if ccOrBeacon && !sys.Duplex {
		return fmt.Errorf("host: a control channel or beacon requires system.duplex")
	}

	if (dmrCfg.Control || dmrCfg.Beacons) && p25Cfg.Enable {
		return fmt.Errorf("host: protocols.dmr control/beacons cannot coexist with protocols.p25.enable")
	}
	if (p25Cfg.Control || p25Cfg.Beacons) && dmrCfg.Enable {
		return fmt.Errorf("host: protocols.p25 control/beacons cannot coexist with protocols.dmr.enable")
	}

	return nil
}

// buildSiteData maps the YAML site-identity block onto the immutable
// sitedata.SiteData both protocols pack into their trunking broadcasts.
func buildSiteData(cfg config.SiteConfigConfig) sitedata.SiteData {
	model := sitedata.ModelTiny
	switch cfg.SiteModel {
	case "SMALL":
		model = sitedata.ModelSmall
	case "LARGE":
		model = sitedata.ModelLarge
	case "HUGE":
		model = sitedata.ModelHuge
	}
	site := sitedata.New(model, cfg.NetID, cfg.SiteID, cfg.PartID, cfg.RequireRegistration)
	return site.WithNetActive(true)
}

func dmrControlConfig(cfg config.Config, site sitedata.SiteData) dmr.ControlConfig {
	d := cfg.Protocols.DMR
	slotCfg := func(id uint8) dmr.SlotConfig {
		return dmr.SlotConfig{
			ID:            id,
			ColorCode:     cfg.System.SiteConfig.ColorCode,
			CallHangMS:    int(d.CallHang) * 1000,
			TGHangMS:      int(d.TGHang) * 1000,
			RFTimeoutMS:   int(cfg.System.Timeout) * 1000,
			NetTimeoutMS:  int(cfg.System.Timeout) * 1000,
			NetWatchdogMS: int(cfg.System.Timeout) * 1000,
			RingCapacity:  int(d.QueueSize),
			EnableTSCC:    (d.Control && id == d.TrunkSlot) || (d.Beacons && d.TrunkSlot == 0 && id == 1),
			CCPacketMS:    180,
			Site:          site,
		}
	}
	return dmr.ControlConfig{
		ColorCode: cfg.System.SiteConfig.ColorCode,
		TrunkSlot: d.TrunkSlot,
		Slot1:     slotCfg(1),
		Slot2:     slotCfg(2),
	}
}

func p25ControlConfig(cfg config.Config) p25.ControlConfig {
	p := cfg.Protocols.P25
	mode := p25.CCDisabled
	switch {
	case p.Control:
		mode = p25.CCDedicated
	case p.Beacons:
		mode = p25.CCBurst
	}
	return p25.ControlConfig{
		NAC:              p.NAC,
		CallHangMS:       int(p.CallHang) * 1000,
		RFTimeoutMS:      int(cfg.System.Timeout) * 1000,
		NetTimeoutMS:     int(cfg.System.Timeout) * 1000,
		NetWatchdogMS:    int(cfg.System.Timeout) * 1000,
		RingCapacity:     int(p.QueueSize),
		TDUPreambleCount: int(p.TDUPreambleCount),
		CCMode:           mode,
		CCPacketMS:       180,
		CCIntervalMS:     defaultBeaconIntervalMS,
		CCDurationMS:     defaultBeaconDurationMS,
	}
}

// Run opens the modem and network, then clocks the arbitration loop until
// ctx is cancelled and the modem has finished transmitting. No error from
// within the loop ever aborts the run early; only setup failures do.
func (h *Host) Run(ctx context.Context) error {
	if err := h.modem.Open(); err != nil {
		return fmt.Errorf("host: modem open: %w", err)
	}
	defer h.modem.Close()

	if h.network != nil {
		if err := h.network.Open(); err != nil {
			return fmt.Errorf("host: network open: %w", err)
		}
		h.network.Enable(true)
		defer h.network.Close()
	}

	if h.dmrBeaconEnabled {
		h.dmrBeaconInterval.Start()
	}
	if h.cwEnabled {
		h.cwTimer.Start()
	}

	log.Printf("host: running, fixedMode=%q duplex=%v", h.fixedMode, h.cfg.System.Duplex)

	last := time.Now()
	for h.mode != ModeQuit {
		select {
		case <-ctx.Done():
			h.beginShutdown()
		default:
		}

		now := time.Now()
		elapsed := int(now.Sub(last).Milliseconds())
		last = now

		h.clockFaultLines()
		h.modem.Clock(elapsed)

		h.applyFixedMode()
		h.drainOutbound()
		h.drainInbound()

		if h.network != nil {
			h.network.Clock(elapsed)
			h.drainNetworkToRF()
		}
		if h.dmr != nil {
			h.dmr.Clock(elapsed)
		}
		if h.p25 != nil {
			h.p25.Clock(elapsed)
			h.clockP25CCBuffer()
		}

		h.modeTimer.Clock(elapsed)
		if h.modeTimer.HasExpired() {
			h.modeTimer.Stop()
			if h.mode == ModeTDMA || h.mode == ModeFDMA {
				h.setMode(ModeIdle)
			}
		}

		h.clockDMRBeacon(elapsed)
		h.clockCWId(elapsed)
		h.clockAdjSSNetwork(elapsed)
		h.clockSiteIdentity()
		h.clockShortLC()

		if h.quit && !h.modem.HasTX() {
			h.setMode(ModeQuit)
			break
		}

		sleep := activeSleep
		if h.mode == ModeIdle {
			sleep = idleSleep
		}
		time.Sleep(sleep)
	}

	h.shutdownSequence()
	return nil
}

// beginShutdown latches the termination request; the loop keeps running
// until any in-progress transmission completes, per the testable property
// that Host never jumps straight to QUIT while modem.hasTX() is true.
func (h *Host) beginShutdown() {
	if !h.quit {
		log.Print("host: shutdown requested, draining in-flight traffic")
	}
	h.quit = true
}

func (h *Host) shutdownSequence() {
	if h.dmr != nil {
		h.dmr.Shutdown()
	}
	if h.p25 != nil {
		h.p25.Shutdown()
	}
	h.removeLockFile()
	log.Print("host: stopped")
}

// clockFaultLines mirrors the modem's lockout/error flags onto the mode,
// taking priority over every other transition.
func (h *Host) clockFaultLines() {
	switch {
	case h.modem.HasLockout():
		h.setMode(ModeLockout)
	case h.modem.HasError():
		h.setMode(ModeError)
	case h.mode == ModeLockout || h.mode == ModeError:
		h.setMode(ModeIdle)
	}
}

// applyFixedMode forces the single enabled protocol whenever fixed mode is
// configured and no transmission is currently in progress; mode-hang plays
// no role here since the state never needs to fall back to IDLE.
func (h *Host) applyFixedMode() {
	if h.fixedMode == "" || h.modem.HasTX() {
		return
	}
	if h.mode == ModeLockout || h.mode == ModeError || h.mode == ModeQuit {
		return
	}
	switch h.fixedMode {
	case "dmr":
		h.setMode(ModeTDMA)
	case "p25":
		h.setMode(ModeFDMA)
	}
}

func (h *Host) setMode(m Mode) {
	if h.mode == m {
		return
	}
	h.mode = m
	h.writeLockFile()
	if h.reporter != nil {
		h.reporter.ReportMode(m.String())
	}
}

// SetStatusReporter attaches an optional sink for mode-transition
// reporting (e.g. a calibconsole.Console). Call before Run; nil detaches.
func (h *Host) SetStatusReporter(r StatusReporter) {
	h.reporter = r
}

// RequestCWId asks the arbitration loop to send an out-of-cycle CW-ID burst
// on its next tick, subject to the same dedicated-CC suppression as the
// scheduled one. Safe to call from another goroutine (the REST/RCON
// boundary).
func (h *Host) RequestCWId() { h.cwRequested.Store(true) }

// RequestBeaconBurst asks the DMR roaming-beacon scheduler to start a burst
// immediately, as if its interval timer had just expired. A no-op unless
// the roaming beacon is enabled. Safe to call from another goroutine.
func (h *Host) RequestBeaconBurst() { h.beaconRequested.Store(true) }

// RequestSiteIdentityBroadcast asks the DMR control/beacon slot to send an
// out-of-cycle aloha/system-identity pair on its next tick. A no-op when
// DMR is disabled. Safe to call from another goroutine.
func (h *Host) RequestSiteIdentityBroadcast() { h.siteIDRequested.Store(true) }

// drainOutbound pushes frames queued in each enabled Control into the
// modem while it reports space, starting the mode-hang timer the first
// time a protocol claims the channel from IDLE.
func (h *Host) drainOutbound() {
	if h.dmr != nil {
		h.drainDMROutbound()
	}
	if h.p25 != nil {
		h.drainP25Outbound()
	}
}

func (h *Host) drainDMROutbound() {
	for h.modem.HasSpace(frame.ProtoTDMA) {
		progressed := false
		if b := h.dmr.GetFrame1(); len(b) > 0 {
			h.writeTDMA(1, b)
			progressed = true
		}
		if b := h.dmr.GetFrame2(); len(b) > 0 {
			h.writeTDMA(2, b)
			progressed = true
		}
		if !progressed {
			return
		}
	}
}

func (h *Host) writeTDMA(slot uint8, payload []byte) {
	if h.mode == ModeIdle {
		h.modeTimer.SetTimeout(int(h.cfg.System.NetModeHang) * 1000)
		h.modeTimer.Start()
		h.setMode(ModeTDMA)
	}
	if h.mode != ModeTDMA {
		return
	}
	h.modem.WriteData(frame.ProtoTDMA, frame.Frame{Protocol: frame.ProtoTDMA, Slot: slot, Payload: payload})
}

func (h *Host) drainP25Outbound() {
	for h.modem.HasSpace(frame.ProtoFDMA) {
		b := h.p25.GetFrame()
		if len(b) == 0 {
			return
		}
		if h.mode == ModeIdle {
			h.modeTimer.SetTimeout(int(h.cfg.System.NetModeHang) * 1000)
			h.modeTimer.Start()
			h.setMode(ModeFDMA)
		}
		if h.mode != ModeFDMA {
			continue
		}
		h.modem.WriteData(frame.ProtoFDMA, frame.Frame{Protocol: frame.ProtoFDMA, Payload: b})
	}
}

// drainInbound reads RF frames from the modem into each enabled Control,
// entering that protocol's mode (and interrupting any running CC/beacon)
// the first time RF traffic arrives from IDLE, then relays accepted
// frames to the network.
func (h *Host) drainInbound() {
	if h.dmr != nil {
		for {
			f, ok := h.modem.ReadData(frame.ProtoTDMA)
			if !ok {
				break
			}
			h.onRFEntry(ModeTDMA, true)
			if h.mode != ModeTDMA {
				continue
			}
			if h.dmr.ProcessFrame(f) && h.network != nil {
				if err := h.network.WriteFrame(f.Slot, f); err != nil {
					log.Printf("host: network relay (TDMA slot %d) error: %v", f.Slot, err)
				}
			}
		}
	}
	if h.p25 != nil {
		for {
			f, ok := h.modem.ReadData(frame.ProtoFDMA)
			if !ok {
				break
			}
			h.onRFEntry(ModeFDMA, false)
			if h.mode != ModeFDMA {
				continue
			}
			if h.p25.ProcessFrame(f) && h.network != nil {
				if err := h.network.WriteFrame(0, f); err != nil {
					log.Printf("host: network relay (FDMA) error: %v", err)
				}
			}
		}
	}
}

// onRFEntry fires the first time RF traffic for mode arrives while the
// Host is IDLE: it terminates any running beacon/CC for isDMR (TDMA
// beacons stop outright) and starts the RF mode-hang timer.
func (h *Host) onRFEntry(m Mode, isDMR bool) {
	if h.mode != ModeIdle {
		return
	}
	if isDMR && h.dmrBeaconEnabled && h.dmr.CCRunning() {
		h.dmrBeaconDuration.Stop()
		h.dmr.SetCCRunning(false)
		h.dmrBeaconInterval.Start()
	}
	h.modeTimer.SetTimeout(int(h.cfg.System.RFModeHang) * 1000)
	h.modeTimer.Start()
	h.setMode(m)
}

// drainNetworkToRF relays frames waiting in the network peer's jitter
// buffers into the matching Control, which queues them for RF transmission
// on its own outbound ring — the same ring drainOutbound already pumps.
func (h *Host) drainNetworkToRF() {
	if h.dmr != nil {
		for _, slot := range [2]uint8{1, 2} {
			if f, ok := h.network.ReadFrame(slot); ok {
				h.dmr.ProcessNetwork(f)
			}
		}
	}
	if h.p25 != nil {
		if f, ok := h.network.ReadFrame(0); ok {
			h.p25.ProcessNetwork(f)
		}
	}
}

// clockDMRBeacon runs the TDMA roaming-beacon scheduler; the dedicated-CC
// case never reaches here since dmrBeaconEnabled is false whenever
// TrunkSlot picks a permanent control slot instead.
func (h *Host) clockDMRBeacon(elapsedMS int) {
	if !h.dmrBeaconEnabled {
		return
	}
	h.dmrBeaconInterval.Clock(elapsedMS)
	h.dmrBeaconDuration.Clock(elapsedMS)

	if !h.dmr.CCRunning() && h.beaconRequested.CompareAndSwap(true, false) {
		h.dmrBeaconInterval.Stop()
		h.dmr.SetCCRunning(true)
		h.dmrBeaconDuration.Start()
		return
	}
	if !h.dmr.CCRunning() && h.dmrBeaconInterval.HasExpired() {
		h.dmr.SetCCRunning(true)
		h.dmrBeaconDuration.Start()
	}
	if h.dmr.CCRunning() && h.dmrBeaconDuration.IsRunning() && h.dmrBeaconDuration.HasExpired() {
		h.dmr.SetCCRunning(false)
		h.dmrBeaconInterval.Start()
	}
}

// clockP25CCBuffer clears the modem's buffered P25 CC bytes exactly once,
// on the transition into a halted dedicated CC, per spec.
func (h *Host) clockP25CCBuffer() {
	halted := h.p25.CCHalted()
	if halted && !h.p25CCHaltedPrev {
		h.modem.ClearP25Data()
	}
	h.p25CCHaltedPrev = halted
}

// clockCWId fires a Morse identification burst when due, suppressed while
// a dedicated control channel of either protocol is active.
func (h *Host) clockCWId(elapsedMS int) {
	if !h.cwEnabled {
		return
	}
	h.cwTimer.Clock(elapsedMS)
	requested := h.cwRequested.CompareAndSwap(true, false)
	if !requested && !h.cwTimer.HasExpired() {
		return
	}
	h.cwTimer.Start()

	if h.dedicatedCCActive() || h.modem.HasTX() {
		return
	}
	h.modem.SendCWId(h.cwCallsign)
}

// clockAdjSSNetwork periodically pushes adjacent-site identity to the
// network peer on P25's own schedule, independent of the RF-side CC
// scheduler — it runs even when no call is active and even when this site
// has no dedicated or bursting control channel at all.
func (h *Host) clockAdjSSNetwork(elapsedMS int) {
	if h.p25 == nil || h.network == nil {
		return
	}
	h.adjSSNetwork.Clock(elapsedMS)
	if !h.adjSSNetwork.HasExpired() {
		return
	}
	h.adjSSNetwork.Start()

	b := h.p25.WriteAdjSSNetwork(h.site)
	f := frame.Frame{Protocol: frame.ProtoFDMA, Payload: b}
	if err := h.network.WriteFrame(0, f); err != nil {
		log.Printf("host: adjacent-site network write error: %v", err)
	}
}

// clockSiteIdentity consumes a pending RequestSiteIdentityBroadcast, if any.
func (h *Host) clockSiteIdentity() {
	if h.dmr == nil {
		return
	}
	if h.siteIDRequested.CompareAndSwap(true, false) {
		h.dmr.BroadcastSiteIdentity()
	}
}

// clockShortLC pushes a freshly regenerated short-LC payload to the modem
// whenever either DMR slot's RF/net occupancy has changed since the last
// tick.
func (h *Host) clockShortLC() {
	if h.dmr == nil {
		return
	}
	if payload, ok := h.dmr.PopShortLC(); ok {
		h.modem.WriteShortLC(payload)
	}
}

func (h *Host) dedicatedCCActive() bool {
	return h.cfg.Protocols.DMR.Control || h.cfg.Protocols.P25.Control
}

// writeLockFile and removeLockFile implement the single-line process-state
// file spec.md describes: "DMR"/"P25" while that mode is active, absent
// otherwise. A configured empty path disables the feature entirely.
func (h *Host) writeLockFile() {
	path := h.cfg.System.LockFile
	if path == "" {
		return
	}
	switch h.mode {
	case ModeTDMA:
		h.writeLockContents(path, "DMR")
	case ModeFDMA:
		h.writeLockContents(path, "P25")
	default:
		h.removeLockFile()
	}
}

func (h *Host) writeLockContents(path, contents string) {
	if err := os.WriteFile(path, []byte(contents+"\n"), 0o644); err != nil {
		log.Printf("host: write lock file %s: %v", path, err)
	}
}

func (h *Host) removeLockFile() {
	path := h.cfg.System.LockFile
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.Printf("host: remove lock file %s: %v", path, err)
	}
}

// Mode reports the Host's current arbitration state, for tests and status
// reporting (e.g. the calibration console).
func (h *Host) Mode() Mode { return h.mode }
