package p25

import (
	"bytes"
	"testing"
)

func TestEncodeDecodeGroupVoiceGrant(t *testing.T) {
	in := TSBK{
		Opcode:      OpcodeGroupVoiceGrant,
		MFID:        0x01,
		Channel:     42,
		Destination: 9,
		Options:     ServiceOptions{Emergency: true, Priority: 3},
	}
	block := Encode(in)
	if len(block) != BlockLength {
		t.Fatalf("expected %d byte block, got %d", BlockLength, len(block))
	}
	out, err := Decode(block)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Channel != 42 || out.Destination != 9 || !out.Options.Emergency || out.Options.Priority != 3 {
		t.Fatalf("round-trip mismatch: %+v", out)
	}
}

func TestEncodeDecodeNetworkStatusBroadcast(t *testing.T) {
	in := TSBK{Opcode: OpcodeNetworkStatusBroadcast, NAC: 0x3A3, Channel: 100}
	block := Encode(in)
	out, err := Decode(block)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.NAC != 0x3A3 || out.Channel != 100 {
		t.Fatalf("round-trip mismatch: %+v", out)
	}
}

func TestDecodeUnknownOpcodeIsOpaque(t *testing.T) {
	block := make([]byte, BlockLength)
	block[opcodeByte] = 0x3F
	payload := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	copy(block[payloadStart:], payload)

	out, err := Decode(block)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(out.Opaque, payload) {
		t.Fatalf("expected opaque payload preserved, got %x", out.Opaque)
	}
}

func TestRegenerateRecomputesParityOnly(t *testing.T) {
	block := Encode(TSBK{Opcode: OpcodeCallAlert, Source: 1, Destination: 2})
	block[parityStart] ^= 0xFF
	block[parityStart+1] ^= 0xFF

	regen := Regenerate(block)
	if !bytes.Equal(regen[:parityStart], block[:parityStart]) {
		t.Fatalf("regenerate must not touch opcode/payload bytes")
	}
	want := crcCCITT(block[:parityStart])
	got := uint16(regen[parityStart])<<8 | uint16(regen[parityStart+1])
	if got != want {
		t.Fatalf("parity not recomputed: got %#x want %#x", got, want)
	}
}
