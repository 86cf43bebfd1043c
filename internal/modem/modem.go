// Package modem defines the opaque Modem adapter boundary between Host and
// the physical RF modem: a non-blocking request/response byte protocol
// offering space-queries, per-protocol read/write, PTT control, and CW-ID
// injection. Frame payloads crossing this boundary are already FEC-processed
// by the modem; nothing here touches bit-level correction.
package modem

import "github.com/openrepeater/dvmhost-go/internal/frame"

// Modem is the interface Host drives every tick. Implementations: Null (no
// hardware, for bench testing), UDP (MMDVM-style host-modem protocol over a
// local UDP socket), and a UART/serial transport for directly attached
// hardware.
type Modem interface {
	Open() error
	Close() error

	// Clock advances the modem's internal request/response state machine by
	// elapsedMS milliseconds; it does not block.
	Clock(elapsedMS int)

	HasLockout() bool
	HasError() bool
	HasTX() bool
	IsHotspot() bool
	GetVersion() string

	HasSpace(p frame.Protocol) bool
	ReadData(p frame.Protocol) (frame.Frame, bool)
	WriteData(p frame.Protocol, f frame.Frame) bool

	// WriteStart asserts PTT ahead of a duplex TDMA transmission; a no-op on
	// half-duplex or FDMA-only configurations.
	WriteStart(p frame.Protocol) bool

	SendCWId(callsign string) bool

	// ClearP25Data flushes any buffered FDMA control-channel bytes still
	// queued in the modem, used when RF traffic interrupts a dedicated CC.
	ClearP25Data()

	// WriteShortLC pushes the pre-FEC TDMA short-link-control payload,
	// regenerated whenever either slot's RF/net occupancy changes.
	WriteShortLC(payload []byte) bool
}

var (
	_ Modem = (*NullModem)(nil)
	_ Modem = (*UDPModem)(nil)
	_ Modem = (*SerialModem)(nil)
)
