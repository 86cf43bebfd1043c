package modem

import (
	"testing"

	"github.com/openrepeater/dvmhost-go/internal/frame"
)

func TestNullModemAlwaysHasSpaceAndNoData(t *testing.T) {
	m := NewNullModem("")
	if !m.HasSpace(frame.ProtoTDMA) || !m.HasSpace(frame.ProtoFDMA) {
		t.Fatalf("expected null modem to always report space")
	}
	if _, ok := m.ReadData(frame.ProtoTDMA); ok {
		t.Fatalf("expected no data from null modem")
	}
}

func TestNullModemCountsCWId(t *testing.T) {
	m := NewNullModem("")
	m.SendCWId("W1AW")
	m.SendCWId("W1AW")
	if m.CWIdCount() != 2 {
		t.Fatalf("expected 2 CW-ID bursts, got %d", m.CWIdCount())
	}
}

func TestNullModemVersionDefaulted(t *testing.T) {
	m := NewNullModem("")
	if m.GetVersion() == "" {
		t.Fatalf("expected a non-empty default version string")
	}
}
