package modem

import (
	"testing"

	"github.com/openrepeater/dvmhost-go/internal/frame"
)

func TestUDPModemParsesStatusPacket(t *testing.T) {
	m := &UDPModem{}
	m.handlePacket([]byte{5, cmdGetStatus, 0x07, 1, 0, 0})
	if !m.HasLockout() || !m.HasError() || !m.HasTX() {
		t.Fatalf("expected lockout+error+tx set from flags 0x07, got %+v", m.status)
	}
	if !m.HasSpace(frame.ProtoTDMA) {
		t.Fatalf("expected TDMA slot 1 space")
	}
	if m.HasSpace(frame.ProtoFDMA) {
		t.Fatalf("expected no FDMA space")
	}
}

func TestUDPModemQueuesInboundData(t *testing.T) {
	m := &UDPModem{}
	m.handlePacket(append([]byte{3, cmdTDMAData1}, []byte{0xAA, 0xBB}...))
	f, ok := m.ReadData(frame.ProtoTDMA)
	if !ok {
		t.Fatalf("expected a queued TDMA frame")
	}
	if f.Slot != 1 || len(f.Payload) != 2 {
		t.Fatalf("unexpected frame: %+v", f)
	}
	if _, ok := m.ReadData(frame.ProtoTDMA); ok {
		t.Fatalf("expected queue to be drained after one read")
	}
}

func TestUDPModemParsesVersion(t *testing.T) {
	m := &UDPModem{}
	m.handlePacket(append([]byte{0, cmdGetVersion}, []byte("fw-1.2.3")...))
	if m.GetVersion() != "fw-1.2.3" {
		t.Fatalf("got version %q", m.GetVersion())
	}
}
