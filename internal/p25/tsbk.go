package p25

import "encoding/binary"

// TSBK wire layout mirrors the DMR CSBK block: byte0 = LB(1) | PF(1) |
// OPCODE(6), byte1 = MFID, bytes 2-9 an 8-byte opcode-specific payload,
// bytes 10-23 outer parity that Regenerate recomputes without decoding.
// Reed-Solomon correction of that field is DSP-level FEC and out of scope.
const (
	BlockLength   = 24
	opcodeByte    = 0
	mfidByte      = 1
	payloadStart  = 2
	payloadLength = 8
	parityStart   = payloadStart + payloadLength
)

// Opcode identifies a recognised TSBK variant; unrecognised values decode
// to Opaque.
type Opcode uint8

const (
	OpcodeGroupVoiceGrant Opcode = iota
	OpcodeGroupVoiceGrantUpdate
	OpcodeUnitVoiceGrant
	OpcodeUnitVoiceGrantUpdate
	OpcodeAcknowledge
	OpcodeDeny
	OpcodeGroupAffiliationResponse
	OpcodeUnitRegistrationResponse
	OpcodeNetworkStatusBroadcast
	OpcodeAdjacentStatusBroadcast
	OpcodeSystemServiceBroadcast
	OpcodeRFSSStatusBroadcast
	OpcodeCallAlert
	OpcodeMessageUpdate
)

var wireOpcode = map[Opcode]uint8{
	OpcodeGroupVoiceGrant:          0x00,
	OpcodeGroupVoiceGrantUpdate:    0x02,
	OpcodeUnitVoiceGrant:           0x04,
	OpcodeUnitVoiceGrantUpdate:     0x05,
	OpcodeAcknowledge:              0x16,
	OpcodeDeny:                     0x27,
	OpcodeGroupAffiliationResponse: 0x28,
	OpcodeUnitRegistrationResponse: 0x2C,
	OpcodeNetworkStatusBroadcast:   0x3A,
	OpcodeAdjacentStatusBroadcast:  0x3B,
	OpcodeSystemServiceBroadcast:   0x3C,
	OpcodeRFSSStatusBroadcast:      0x3D,
	OpcodeCallAlert:                0x1F,
	OpcodeMessageUpdate:            0x1D,
}

var opcodeFromWire = func() map[uint8]Opcode {
	m := make(map[uint8]Opcode, len(wireOpcode))
	for op, w := range wireOpcode {
		m[w] = op
	}
	return m
}()

// ServiceOptions mirrors the TSBK service-options byte.
type ServiceOptions struct {
	Emergency bool
	Encrypted bool
	Priority  uint8
}

func (s ServiceOptions) pack() uint8 {
	var b uint8
	if s.Emergency {
		b |= 0x80
	}
	if s.Encrypted {
		b |= 0x40
	}
	return b | (s.Priority & 0x07)
}

func unpackServiceOptions(b uint8) ServiceOptions {
	return ServiceOptions{
		Emergency: b&0x80 != 0,
		Encrypted: b&0x40 != 0,
		Priority:  b & 0x07,
	}
}

// TSBK is a tagged sum type over the FDMA trunking/call-control opcodes.
type TSBK struct {
	Opcode Opcode
	MFID   uint8
	Last   bool

	Source      uint32
	Destination uint32
	Options     ServiceOptions
	Response    uint8
	Channel     uint16
	NAC         uint16

	Opaque []byte // raw 8-byte payload, set only when Opcode is unrecognised
}

// Decode parses a 24-byte TSBK block.
func Decode(block []byte) (TSBK, error) {
	if len(block) < BlockLength {
		return TSBK{}, errShortBlock
	}

	last := block[opcodeByte]&0x80 != 0
	wire := block[opcodeByte] & 0x3F
	mfid := block[mfidByte]
	payload := block[payloadStart : payloadStart+payloadLength]

	op, known := opcodeFromWire[wire]
	t := TSBK{MFID: mfid, Last: last}
	if !known {
		t.Opcode = Opcode(0xFF)
		t.Opaque = append([]byte(nil), payload...)
		return t, nil
	}
	t.Opcode = op

	switch op {
	case OpcodeGroupVoiceGrant, OpcodeGroupVoiceGrantUpdate, OpcodeUnitVoiceGrant, OpcodeUnitVoiceGrantUpdate:
		t.Options = unpackServiceOptions(payload[0])
		t.Channel = binary.BigEndian.Uint16(payload[1:3])
		t.Destination = uint32(payload[3])<<16 | uint32(payload[4])<<8 | uint32(payload[5])
		t.Source = uint32(payload[6])<<16 | uint32(payload[7])<<8
	case OpcodeAcknowledge, OpcodeDeny:
		t.Response = payload[0]
		t.Source = uint32(payload[1])<<16 | uint32(payload[2])<<8 | uint32(payload[3])
		t.Destination = uint32(payload[4])<<16 | uint32(payload[5])<<8 | uint32(payload[6])
	case OpcodeGroupAffiliationResponse, OpcodeUnitRegistrationResponse, OpcodeCallAlert, OpcodeMessageUpdate:
		t.Source = uint32(payload[0])<<16 | uint32(payload[1])<<8 | uint32(payload[2])
		t.Destination = uint32(payload[3])<<16 | uint32(payload[4])<<8 | uint32(payload[5])
	case OpcodeNetworkStatusBroadcast, OpcodeAdjacentStatusBroadcast, OpcodeSystemServiceBroadcast, OpcodeRFSSStatusBroadcast:
		t.NAC = binary.BigEndian.Uint16(payload[0:2]) & NACMax
		t.Channel = binary.BigEndian.Uint16(payload[2:4])
	}

	return t, nil
}

// Encode reverses Decode for any variant this codec understands.
func Encode(t TSBK) []byte {
	block := make([]byte, BlockLength)
	wire, known := wireOpcode[t.Opcode]
	if !known {
		wire = 0
	}
	flags := wire & 0x3F
	if t.Last {
		flags |= 0x80
	}
	block[opcodeByte] = flags
	block[mfidByte] = t.MFID

	payload := block[payloadStart : payloadStart+payloadLength]
	switch t.Opcode {
	case OpcodeGroupVoiceGrant, OpcodeGroupVoiceGrantUpdate, OpcodeUnitVoiceGrant, OpcodeUnitVoiceGrantUpdate:
		payload[0] = t.Options.pack()
		binary.BigEndian.PutUint16(payload[1:3], t.Channel)
		putID24(payload[3:6], t.Destination)
		payload[6] = uint8(t.Source >> 16)
		payload[7] = uint8(t.Source >> 8)
	case OpcodeAcknowledge, OpcodeDeny:
		payload[0] = t.Response
		putID24(payload[1:4], t.Source)
		putID24(payload[4:7], t.Destination)
	case OpcodeGroupAffiliationResponse, OpcodeUnitRegistrationResponse, OpcodeCallAlert, OpcodeMessageUpdate:
		putID24(payload[0:3], t.Source)
		putID24(payload[3:6], t.Destination)
	case OpcodeNetworkStatusBroadcast, OpcodeAdjacentStatusBroadcast, OpcodeSystemServiceBroadcast, OpcodeRFSSStatusBroadcast:
		binary.BigEndian.PutUint16(payload[0:2], t.NAC&NACMax)
		binary.BigEndian.PutUint16(payload[2:4], t.Channel)
	default:
		copy(payload, t.Opaque)
	}

	applyParity(block)
	return block
}

// Regenerate recomputes the outer parity of a received block without
// decoding its opcode body.
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
// for the TSBK's outer parity field — the same construction as the DMR
// CSBK codec, kept package-local since the two protocols never share a
// wire format.
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

type tsbkError string

func (e tsbkError) Error() string { return string(e) }

const errShortBlock = tsbkError("p25: tsbk block shorter than 24 bytes")
