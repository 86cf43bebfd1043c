// Package dmr implements the TDMA protocol control unit: two independent
// time slots, each a small RF/network state machine, plus the CSBK trunking
// signalling codec shared by both slots.
package dmr

// Call-level constants shared across the package.
const (
	FLCOGroupCall   = 0x00
	FLCOUnitToUnit  = 0x03

	ColorCodeMin = 0
	ColorCodeMax = 15

	PayloadLength = 24 // TDMA frame payload size per the data model (§3)
)

// LinkControl carries per-call metadata: call type, source/destination,
// and the emergency/privacy/priority flags. Built at call start, held for
// the call's duration, discarded at call end.
type LinkControl struct {
	FLCO          uint8
	SourceID      uint32
	DestinationID uint32
	FID           uint8

	Emergency bool
	Privacy   bool
	Priority  uint8

	EncryptedLC []byte // non-nil when a privacy/encryption LC accompanies the call
}

// IsGroupCall reports whether the call addresses a talkgroup rather than a
// single radio.
func (lc LinkControl) IsGroupCall() bool {
	return lc.FLCO == FLCOGroupCall
}

// Encode packs the Link Control into the 9-byte on-air representation.
func (lc LinkControl) Encode() []byte {
	data := make([]byte, 9)
	opts := lc.FLCO << 2
	if lc.Emergency {
		opts |= 0x80
	}
	if lc.Privacy {
		opts |= 0x40
	}
	data[0] = opts
	data[1] = uint8(lc.DestinationID >> 16)
	data[2] = uint8(lc.DestinationID >> 8)
	data[3] = uint8(lc.DestinationID)
	data[4] = uint8(lc.SourceID >> 16)
	data[5] = uint8(lc.SourceID >> 8)
	data[6] = uint8(lc.SourceID)
	data[7] = lc.FID
	data[8] = lc.Priority
	return data
}

// DecodeLinkControl parses the 9-byte on-air Link Control representation.
func DecodeLinkControl(data []byte) (LinkControl, bool) {
	if len(data) < 9 {
		return LinkControl{}, false
	}
	var lc LinkControl
	lc.FLCO = (data[0] >> 2) & 0x3F
	lc.Emergency = data[0]&0x80 != 0
	lc.Privacy = data[0]&0x40 != 0
	lc.DestinationID = uint32(data[1])<<16 | uint32(data[2])<<8 | uint32(data[3])
	lc.SourceID = uint32(data[4])<<16 | uint32(data[5])<<8 | uint32(data[6])
	lc.FID = data[7]
	lc.Priority = data[8]
	return lc, true
}

// ShortLC is the compact per-superframe signalling field summarising both
// slots' occupancy: current destination and a voice/data flag, regenerated
// on every RF-state transition.
type ShortLC struct {
	Slot1Active bool
	Slot1DstID  uint32
	Slot1Voice  bool
	Slot2Active bool
	Slot2DstID  uint32
	Slot2Voice  bool
}

// Encode packs the short-LC into its compact field; the real 68-bit on-air
// form applies BPTC(16,8) parity the core does not compute (bit-level FEC is
// out of scope) so this returns the pre-FEC logical payload only.
func (s ShortLC) Encode() []byte {
	data := make([]byte, 8)
	if s.Slot1Active {
		data[0] |= 0x80
	}
	if s.Slot1Voice {
		data[0] |= 0x40
	}
	data[1] = uint8(s.Slot1DstID >> 16)
	data[2] = uint8(s.Slot1DstID >> 8)
	data[3] = uint8(s.Slot1DstID)
	if s.Slot2Active {
		data[4] |= 0x80
	}
	if s.Slot2Voice {
		data[4] |= 0x40
	}
	data[5] = uint8(s.Slot2DstID >> 16)
	data[6] = uint8(s.Slot2DstID >> 8)
	data[7] = uint8(s.Slot2DstID)
	return data
}
