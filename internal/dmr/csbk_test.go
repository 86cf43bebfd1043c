package dmr

import (
	"bytes"
	"testing"
)

func TestEncodeDecodeAloha(t *testing.T) {
	in := CSBK{
		Opcode:       OpcodeAloha,
		FID:          0x10,
		Last:         true,
		SiteIdentity: 0x1234,
		Options:      ServiceOptions{Emergency: true},
	}
	block := Encode(in)
	if len(block) != BlockLength {
		t.Fatalf("expected %d byte block, got %d", BlockLength, len(block))
	}
	out, err := Decode(block)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Opcode != OpcodeAloha || out.SiteIdentity != 0x1234 || !out.Options.Emergency || !out.Last {
		t.Fatalf("round-trip mismatch: %+v", out)
	}
}

func TestEncodeDecodeGrantVoiceChannel(t *testing.T) {
	in := CSBK{
		Opcode:      OpcodeGrantVoiceChannel,
		Channel1:    7,
		Slot:        1,
		Destination: 0xABCDEF,
		Options:     ServiceOptions{Privacy: true, Broadcast: true},
	}
	block := Encode(in)
	out, err := Decode(block)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Channel1 != 7 || out.Slot != 1 || out.Destination != 0xABCDEF {
		t.Fatalf("round-trip mismatch: %+v", out)
	}
	if !out.Options.Privacy || !out.Options.Broadcast {
		t.Fatalf("service options lost: %+v", out.Options)
	}
}

func TestDecodeUnknownOpcodeIsOpaque(t *testing.T) {
	block := make([]byte, BlockLength)
	block[opcodeByte] = 0x3F // not present in wireOpcode
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
	block := Encode(CSBK{Opcode: OpcodeCallAlert, Source: 1, Destination: 2})
	// corrupt the parity bytes as if received with bit errors there
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

func TestDecodeRejectsShortBlock(t *testing.T) {
	if _, err := Decode(make([]byte, 10)); err == nil {
		t.Fatalf("expected error for short block")
	}
}
