package dmr

import "encoding/binary"

// CSBK wire layout: byte0 = LB(1) | PF(1) | CSBKO(6), byte1 = FID, bytes 2-9
// = an 8-byte opcode-specific payload, bytes 10-23 = outer parity/CRC that
// Regenerate recomputes without ever being interpreted. Reed-Solomon/BPTC
// level correction of that parity is DSP-level FEC and out of scope; a
// 16-bit CRC-CCITT stand-in occupies the first two parity bytes so
// Encode/Decode/Regenerate round-trip exactly.
const (
	BlockLength   = 24
	opcodeByte    = 0
	fidByte       = 1
	payloadStart  = 2
	payloadLength = 8
	parityStart   = payloadStart + payloadLength
)

// Opcode identifies a recognised CSBK variant; unrecognised values decode to
// Opaque.
type Opcode uint8

const (
	OpcodeAloha Opcode = iota
	OpcodeAckResponse
	OpcodeBroadcastSiteID
	OpcodeBroadcastSystemID
	OpcodeBroadcastAdjacentSite
	OpcodeBroadcastNetworkStatus
	OpcodeCallAlert
	OpcodeExtendedFunction
	OpcodeEmergencyAlarm
	OpcodeGroupAffiliationQuery
	OpcodeGroupAffiliationUpdate
	OpcodeUnitRegistrationCommand
	OpcodeGrantVoiceChannel
	OpcodeGrantDataChannel
	OpcodeAnnouncement
)

// wire opcode values as carried in the CSBKO field (6 bits). Distinct from
// the Opcode enum above so unrecognised wire values can map to Opaque while
// still letting the enum be a small dense range for switches.
var wireOpcode = map[Opcode]uint8{
	OpcodeAloha:                   0x19,
	OpcodeAckResponse:             0x20,
	OpcodeBroadcastSiteID:         0x3A,
	OpcodeBroadcastSystemID:       0x3B,
	OpcodeBroadcastAdjacentSite:   0x3C,
	OpcodeBroadcastNetworkStatus:  0x3D,
	OpcodeCallAlert:               0x1F,
	OpcodeExtendedFunction:        0x24,
	OpcodeEmergencyAlarm:          0x1B,
	OpcodeGroupAffiliationQuery:   0x1D,
	OpcodeGroupAffiliationUpdate:  0x28,
	OpcodeUnitRegistrationCommand: 0x2E,
	OpcodeGrantVoiceChannel:       0x30,
	OpcodeGrantDataChannel:        0x31,
	OpcodeAnnouncement:            0x28 ^ 0x10, // distinct from group-affiliation-update
}

var opcodeFromWire = func() map[uint8]Opcode {
	m := make(map[uint8]Opcode, len(wireOpcode))
	for op, w := range wireOpcode {
		m[w] = op
	}
	return m
}()

// ExtendedFunctionKind distinguishes the extended-function CSBK's operation.
type ExtendedFunctionKind uint8

const (
	ExtFuncCheck ExtendedFunctionKind = iota
	ExtFuncInhibit
	ExtFuncUninhibit
	ExtFuncDynRegroup
)

// ServiceOptions mirrors the CSBK service-options byte: emergency, privacy,
// broadcast, and proxy flags.
type ServiceOptions struct {
	Emergency bool
	Privacy   bool
	Broadcast bool
	Proxy     bool
}

func (s ServiceOptions) pack() uint8 {
	var b uint8
	if s.Emergency {
		b |= 0x80
	}
	if s.Privacy {
		b |= 0x40
	}
	if s.Broadcast {
		b |= 0x20
	}
	if s.Proxy {
		b |= 0x10
	}
	return b
}

func unpackServiceOptions(b uint8) ServiceOptions {
	return ServiceOptions{
		Emergency: b&0x80 != 0,
		Privacy:   b&0x40 != 0,
		Broadcast: b&0x20 != 0,
		Proxy:     b&0x10 != 0,
	}
}

// CSBK is a tagged sum type over the trunking/call-control opcodes. Fields
// not meaningful to a given Opcode are left zero; Opaque carries the
// untouched payload bytes for opcodes this codec doesn't implement.
type CSBK struct {
	Opcode Opcode
	FID    uint8
	Last   bool // last block of a multi-block CSBK sequence

	Source      uint32
	Destination uint32
	Options     ServiceOptions
	Response    uint8
	Reason      uint8
	Channel1    uint16
	Channel2    uint16
	Slot        uint8

	ExtFunc ExtendedFunctionKind

	SiteIdentity uint16 // packed SiteData.SystemIdentity() for broadcast opcodes

	Opaque []byte // raw 8-byte payload, set only when Opcode is unrecognised on decode
}

// Decode parses a 24-byte CSBK block. Unknown wire opcodes decode into a
// CSBK whose Opaque field holds the untouched payload so Regenerate can
// forward it bit-exactly.
func Decode(block []byte) (CSBK, error) {
	if len(block) < BlockLength {
		return CSBK{}, errShortBlock
	}

	last := block[opcodeByte]&0x80 != 0
	wire := block[opcodeByte] & 0x3F
	fid := block[fidByte]
	payload := block[payloadStart : payloadStart+payloadLength]

	op, known := opcodeFromWire[wire]
	csbk := CSBK{FID: fid, Last: last}
	if !known {
		csbk.Opcode = Opcode(0xFF)
		csbk.Opaque = append([]byte(nil), payload...)
		return csbk, nil
	}
	csbk.Opcode = op

	switch op {
	case OpcodeAloha:
		csbk.SiteIdentity = binary.BigEndian.Uint16(payload[0:2])
		csbk.Options = unpackServiceOptions(payload[2])
	case OpcodeAckResponse:
		csbk.Source = uint32(payload[0])<<16 | uint32(payload[1])<<8 | uint32(payload[2])
		csbk.Destination = uint32(payload[3])<<16 | uint32(payload[4])<<8 | uint32(payload[5])
		csbk.Response = payload[6]
	case OpcodeBroadcastSiteID, OpcodeBroadcastSystemID, OpcodeBroadcastAdjacentSite, OpcodeBroadcastNetworkStatus:
		csbk.SiteIdentity = binary.BigEndian.Uint16(payload[0:2])
		csbk.Channel1 = binary.BigEndian.Uint16(payload[2:4])
	case OpcodeCallAlert, OpcodeEmergencyAlarm:
		csbk.Source = uint32(payload[0])<<16 | uint32(payload[1])<<8 | uint32(payload[2])
		csbk.Destination = uint32(payload[3])<<16 | uint32(payload[4])<<8 | uint32(payload[5])
	case OpcodeExtendedFunction:
		csbk.ExtFunc = ExtendedFunctionKind(payload[0])
		csbk.Destination = uint32(payload[1])<<16 | uint32(payload[2])<<8 | uint32(payload[3])
		csbk.Source = uint32(payload[4])<<16 | uint32(payload[5])<<8 | uint32(payload[6])
	case OpcodeGroupAffiliationQuery, OpcodeGroupAffiliationUpdate, OpcodeUnitRegistrationCommand:
		csbk.Source = uint32(payload[0])<<16 | uint32(payload[1])<<8 | uint32(payload[2])
		csbk.Destination = uint32(payload[3])<<16 | uint32(payload[4])<<8 | uint32(payload[5])
	case OpcodeGrantVoiceChannel, OpcodeGrantDataChannel:
		csbk.Channel1 = binary.BigEndian.Uint16(payload[0:2])
		csbk.Slot = payload[2] & 0x01
		csbk.Options = unpackServiceOptions(payload[3])
		csbk.Destination = uint32(payload[4])<<16 | uint32(payload[5])<<8 | uint32(payload[6])
	case OpcodeAnnouncement:
		csbk.Reason = payload[0]
		csbk.Channel1 = binary.BigEndian.Uint16(payload[1:3])
		csbk.Channel2 = binary.BigEndian.Uint16(payload[3:5])
	}

	return csbk, nil
}

// Encode reverses Decode, reproducing the wire-exact 24-byte block for any
// variant this codec understands. Opaque CSBKs cannot be re-encoded from
// their decoded form — use Regenerate on the original bytes instead.
func Encode(c CSBK) []byte {
	block := make([]byte, BlockLength)
	wire, known := wireOpcode[c.Opcode]
	if !known {
		wire = 0
	}
	flags := wire & 0x3F
	if c.Last {
		flags |= 0x80
	}
	block[opcodeByte] = flags
	block[fidByte] = c.FID

	payload := block[payloadStart : payloadStart+payloadLength]
	switch c.Opcode {
	case OpcodeAloha:
		binary.BigEndian.PutUint16(payload[0:2], c.SiteIdentity)
		payload[2] = c.Options.pack()
	case OpcodeAckResponse:
		putID24(payload[0:3], c.Source)
		putID24(payload[3:6], c.Destination)
		payload[6] = c.Response
	case OpcodeBroadcastSiteID, OpcodeBroadcastSystemID, OpcodeBroadcastAdjacentSite, OpcodeBroadcastNetworkStatus:
		binary.BigEndian.PutUint16(payload[0:2], c.SiteIdentity)
		binary.BigEndian.PutUint16(payload[2:4], c.Channel1)
	case OpcodeCallAlert, OpcodeEmergencyAlarm:
		putID24(payload[0:3], c.Source)
		putID24(payload[3:6], c.Destination)
	case OpcodeExtendedFunction:
		payload[0] = uint8(c.ExtFunc)
		putID24(payload[1:4], c.Destination)
		putID24(payload[4:7], c.Source)
	case OpcodeGroupAffiliationQuery, OpcodeGroupAffiliationUpdate, OpcodeUnitRegistrationCommand:
		putID24(payload[0:3], c.Source)
		putID24(payload[3:6], c.Destination)
	case OpcodeGrantVoiceChannel, OpcodeGrantDataChannel:
		binary.BigEndian.PutUint16(payload[0:2], c.Channel1)
		payload[2] = c.Slot & 0x01
		payload[3] = c.Options.pack()
		putID24(payload[4:7], c.Destination)
	case OpcodeAnnouncement:
		payload[0] = c.Reason
		binary.BigEndian.PutUint16(payload[1:3], c.Channel1)
		binary.BigEndian.PutUint16(payload[3:5], c.Channel2)
	default:
		copy(payload, c.Opaque)
	}

	applyParity(block)
	return block
}

// Regenerate recomputes the outer parity of a received block without
// decoding its opcode body, so unrecognised or MFID-private blocks forward
// unchanged except for the recomputed parity field.
func Regenerate(block []byte) []byte {
	out := append([]byte(nil), block...)
	applyParity(out)
	return out
}

func applyParity(block []byte) {
	crc := crcCCITT(block[:parityStart])
	binary.BigEndian.PutUint16(block[parityStart:parityStart+2], crc)
	for i := parityStart + 2; i < BlockLength; i++ {
		block[i] = 0
	}
}

func putID24(dst []byte, id uint32) {
	dst[0] = uint8(id >> 16)
	dst[1] = uint8(id >> 8)
	dst[2] = uint8(id)
}

// crcCCITT computes the CRC-CCITT (poly 0x1021, init 0xFFFF) checksum used
// for the CSBK's outer parity field.
func crcCCITT(data []byte) uint16 {
	crc := uint16(0xFFFF)
	for _, b := range data {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

type csbkError string

func (e csbkError) Error() string { return string(e) }

const errShortBlock = csbkError("dmr: csbk block shorter than 24 bytes")
