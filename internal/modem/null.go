package modem

import "github.com/openrepeater/dvmhost-go/internal/frame"

// NullModem discards writes and never produces inbound frames. Used on the
// bench when no physical modem is attached: Host still drives the full
// Clock/hasSpace/readData loop, just against a device that always reports
// idle and ready.
type NullModem struct {
	version string
	cwSent  int
}

// NewNullModem builds a modem stub reporting version for GetVersion.
func NewNullModem(version string) *NullModem {
	if version == "" {
		version = "null-modem/0"
	}
	return &NullModem{version: version}
}

func (m *NullModem) Open() error  { return nil }
func (m *NullModem) Close() error { return nil }

func (m *NullModem) Clock(elapsedMS int) {}

func (m *NullModem) HasLockout() bool    { return false }
func (m *NullModem) HasError() bool      { return false }
func (m *NullModem) HasTX() bool         { return false }
func (m *NullModem) IsHotspot() bool     { return false }
func (m *NullModem) GetVersion() string  { return m.version }

func (m *NullModem) HasSpace(p frame.Protocol) bool { return true }

func (m *NullModem) ReadData(p frame.Protocol) (frame.Frame, bool) {
	return frame.Frame{}, false
}

func (m *NullModem) WriteData(p frame.Protocol, f frame.Frame) bool { return true }

func (m *NullModem) WriteStart(p frame.Protocol) bool { return true }

func (m *NullModem) SendCWId(callsign string) bool {
	m.cwSent++
	return true
}

func (m *NullModem) ClearP25Data() {}

func (m *NullModem) WriteShortLC(payload []byte) bool { return true }

// CWIdCount reports how many CW-ID bursts have been requested, for tests
// that assert the periodic-identification timer actually fires.
func (m *NullModem) CWIdCount() int { return m.cwSent }
