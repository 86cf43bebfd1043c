package host

import (
	"context"
	"testing"
	"time"

	"github.com/openrepeater/dvmhost-go/internal/config"
	"github.com/openrepeater/dvmhost-go/internal/dmr"
	"github.com/openrepeater/dvmhost-go/internal/frame"
)

// scriptedModem is a bench double that lets tests queue inbound frames and
// record outbound ones, rather than talking to real hardware.
type scriptedModem struct {
	inTDMA  []frame.Frame
	inFDMA  []frame.Frame
	outTDMA []frame.Frame
	outFDMA []frame.Frame

	lockout, errFlag, hasTX bool
	cwCount                 int
	clearedP25              int
	lastShortLC             []byte
}

func (m *scriptedModem) Open() error  { return nil }
func (m *scriptedModem) Close() error { return nil }
func (m *scriptedModem) Clock(elapsedMS int) {}

func (m *scriptedModem) HasLockout() bool   { return m.lockout }
func (m *scriptedModem) HasError() bool     { return m.errFlag }
func (m *scriptedModem) HasTX() bool        { return m.hasTX }
func (m *scriptedModem) IsHotspot() bool    { return false }
func (m *scriptedModem) GetVersion() string { return "scripted/0" }

func (m *scriptedModem) HasSpace(p frame.Protocol) bool { return true }

func (m *scriptedModem) ReadData(p frame.Protocol) (frame.Frame, bool) {
	if p == frame.ProtoTDMA {
		if len(m.inTDMA) == 0 {
			return frame.Frame{}, false
		}
		f := m.inTDMA[0]
		m.inTDMA = m.inTDMA[1:]
		return f, true
	}
	if len(m.inFDMA) == 0 {
		return frame.Frame{}, false
	}
	f := m.inFDMA[0]
	m.inFDMA = m.inFDMA[1:]
	return f, true
}

func (m *scriptedModem) WriteData(p frame.Protocol, f frame.Frame) bool {
	if p == frame.ProtoTDMA {
		m.outTDMA = append(m.outTDMA, f)
	} else {
		m.outFDMA = append(m.outFDMA, f)
	}
	return true
}

func (m *scriptedModem) WriteStart(p frame.Protocol) bool { return true }

func (m *scriptedModem) SendCWId(callsign string) bool {
	m.cwCount++
	return true
}

func (m *scriptedModem) ClearP25Data() { m.clearedP25++ }

func (m *scriptedModem) WriteShortLC(payload []byte) bool {
	m.lastShortLC = append([]byte(nil), payload...)
	return true
}

func dmrVoiceHeaderFrame(slot uint8, src, dst uint32) frame.Frame {
	lc := dmr.LinkControl{FLCO: dmr.FLCOGroupCall, SourceID: src, DestinationID: dst}
	payload := append([]byte{0}, lc.Encode()...) // dataVoiceHeader == 0
	return frame.Frame{Protocol: frame.ProtoTDMA, Slot: slot, Payload: payload}
}

func dmrTerminatorFrame(slot uint8) frame.Frame {
	return frame.Frame{Protocol: frame.ProtoTDMA, Slot: slot, Payload: []byte{3}} // dataTerminator == 3
}

func baseTestConfig() config.Config {
	cfg := config.Default()
	cfg.Protocols.DMR.Enable = true
	cfg.Protocols.DMR.QueueSize = 64
	cfg.System.RFModeHang = 0
	cfg.System.NetModeHang = 0
	return cfg
}

func TestNewRejectsFixedModeMismatch(t *testing.T) {
	cfg := config.Default()
	cfg.System.FixedMode = "dmr"
	cfg.Protocols.DMR.Enable = false
	if _, err := New(cfg, &scriptedModem{}, nil); err == nil {
		t.Fatalf("expected error for fixedMode dmr without protocols.dmr.enable")
	}
}

func TestNewRejectsBeaconsWithoutDuplex(t *testing.T) {
	cfg := config.Default()
	cfg.Protocols.DMR.Enable = true
	cfg.Protocols.DMR.Beacons = true
	cfg.System.Duplex = false
	if _, err := New(cfg, &scriptedModem{}, nil); err == nil {
		t.Fatalf("expected error for beacons without duplex")
	}
}

func TestNewRejectsCrossProtocolCC(t *testing.T) {
	cfg := config.Default()
	cfg.System.Duplex = true
	cfg.Protocols.DMR.Control = true
	cfg.Protocols.DMR.TrunkSlot = 1
	cfg.Protocols.P25.Enable = true
	if _, err := New(cfg, &scriptedModem{}, nil); err == nil {
		t.Fatalf("expected error when dmr control coexists with p25 enabled")
	}
}

func TestHostTDMASimplexVoiceCall(t *testing.T) {
	cfg := baseTestConfig()
	m := &scriptedModem{}
	h, err := New(cfg, m, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	m.inTDMA = append(m.inTDMA, dmrVoiceHeaderFrame(2, 100, 9))
	for i := 0; i < 16; i++ {
		m.inTDMA = append(m.inTDMA, frame.Frame{Protocol: frame.ProtoTDMA, Slot: 2, Payload: []byte{2, byte(i)}})
	}
	m.inTDMA = append(m.inTDMA, dmrTerminatorFrame(2))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h.clockFaultLines()
	h.modem.Clock(0)
	h.applyFixedMode()
	h.drainInbound()

	if h.Mode() != ModeTDMA {
		t.Fatalf("expected mode TDMA after voice header, got %v", h.Mode())
	}

	_ = ctx
}

func TestHostLockoutOverridesMode(t *testing.T) {
	cfg := baseTestConfig()
	m := &scriptedModem{}
	h, err := New(cfg, m, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	m.lockout = true
	h.clockFaultLines()
	if h.Mode() != ModeLockout {
		t.Fatalf("expected mode LOCKOUT, got %v", h.Mode())
	}

	m.lockout = false
	h.clockFaultLines()
	if h.Mode() != ModeIdle {
		t.Fatalf("expected mode IDLE after lockout clears, got %v", h.Mode())
	}
}

func TestHostCWIdSuppressedInDedicatedCC(t *testing.T) {
	cfg := config.Default()
	cfg.System.Duplex = true
	cfg.System.CWId.Enable = true
	cfg.System.CWId.Time = 1
	cfg.Protocols.DMR.Enable = true
	cfg.Protocols.DMR.Control = true
	cfg.Protocols.DMR.TrunkSlot = 1
	cfg.System.FixedMode = "dmr"

	m := &scriptedModem{}
	h, err := New(cfg, m, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	h.cwTimer.Start()
	h.clockCWId(2000)
	if m.cwCount != 0 {
		t.Fatalf("expected CW-ID suppressed under dedicated CC, got %d bursts", m.cwCount)
	}
}

func TestHostCWIdFiresWithoutDedicatedCC(t *testing.T) {
	cfg := baseTestConfig()
	cfg.System.CWId.Enable = true
	cfg.System.CWId.Time = 1

	m := &scriptedModem{}
	h, err := New(cfg, m, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	h.cwTimer.Start()
	h.clockCWId(2000)
	if m.cwCount != 1 {
		t.Fatalf("expected one CW-ID burst, got %d", m.cwCount)
	}
}

func TestHostRunHonoursContextCancellation(t *testing.T) {
	cfg := baseTestConfig()
	m := &scriptedModem{}
	h, err := New(cfg, m, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("unexpected error from Run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not return after context cancellation")
	}
}
