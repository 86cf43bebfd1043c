package dmr

import (
	"testing"

	"github.com/openrepeater/dvmhost-go/internal/frame"
)

func testConfig() SlotConfig {
	return SlotConfig{
		ID:            1,
		CallHangMS:    100,
		TGHangMS:      500,
		RFTimeoutMS:   1000,
		NetTimeoutMS:  1000,
		NetWatchdogMS: 500,
		CCPacketMS:    100,
	}
}

func voiceHeaderFrame(src, dst uint32) frame.Frame {
	lc := LinkControl{FLCO: FLCOGroupCall, SourceID: src, DestinationID: dst}
	payload := append([]byte{byte(dataVoiceHeader)}, lc.Encode()...)
	return frame.Frame{Protocol: frame.ProtoTDMA, Slot: 1, Kind: frame.KindVoiceHeader, Payload: payload}
}

func TestProcessFrameVoiceHeaderStartsCall(t *testing.T) {
	s := NewSlot(testConfig())
	accepted := s.ProcessFrame(voiceHeaderFrame(100, 9))
	if !accepted {
		t.Fatalf("expected voice header to be accepted")
	}
	if s.RFState() != RFAudio {
		t.Fatalf("expected RF state AUDIO, got %v", s.RFState())
	}
	if s.LastDstID() != 9 {
		t.Fatalf("expected lastDstId 9, got %d", s.LastDstID())
	}
	if out := s.GetFrame(); out == nil {
		t.Fatalf("expected header frame to be enqueued for replay")
	}
}

func TestProcessFrameTerminatorReturnsToIdle(t *testing.T) {
	s := NewSlot(testConfig())
	s.ProcessFrame(voiceHeaderFrame(100, 9))
	s.GetFrame()

	term := frame.Frame{Payload: []byte{byte(dataTerminator)}}
	if !s.ProcessFrame(term) {
		t.Fatalf("expected terminator to be accepted")
	}
	if s.RFState() != RFIdle {
		t.Fatalf("expected RF state IDLE after terminator, got %v", s.RFState())
	}
}

func TestNetworkCallDroppedWhileRFActive(t *testing.T) {
	s := NewSlot(testConfig())
	s.ProcessFrame(voiceHeaderFrame(100, 9))
	s.GetFrame()

	netCall := voiceHeaderFrame(200, 9)
	if s.ProcessNetwork(netCall) {
		t.Fatalf("expected network call to be dropped while RF is active")
	}
	if s.NetState() != NetIdle {
		t.Fatalf("expected net state to remain IDLE")
	}
}

func TestRFTimeoutForcesIdleAndEmitsTerminator(t *testing.T) {
	s := NewSlot(testConfig())
	s.ProcessFrame(voiceHeaderFrame(100, 9))
	s.GetFrame()

	s.Clock(1000)
	if s.RFState() != RFIdle {
		t.Fatalf("expected RF timeout to force IDLE, got %v", s.RFState())
	}
	found := false
	for {
		out := s.GetFrame()
		if out == nil {
			break
		}
		if len(out) > 0 && dataKind(out[0]) == dataTerminator {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected synthetic terminator frame after RF timeout")
	}
}

func TestCSBKRoundTripsThroughSlot(t *testing.T) {
	s := NewSlot(testConfig())
	block := Encode(CSBK{Opcode: OpcodeCallAlert, Source: 1, Destination: 2})
	f := frame.Frame{Payload: append([]byte{byte(dataCSBK)}, block...)}
	if !s.ProcessFrame(f) {
		t.Fatalf("expected CSBK frame to be accepted")
	}
	out := s.GetFrame()
	if out == nil || dataKind(out[0]) != dataCSBK {
		t.Fatalf("expected a CSBK frame to be enqueued for forwarding")
	}
}

func TestControlChannelScriptedSequence(t *testing.T) {
	cfg := testConfig()
	cfg.EnableTSCC = true
	s := NewSlot(cfg)
	s.SetCCRunning(true)
	s.Clock(cfg.CCPacketMS)

	out := s.GetFrame()
	if out == nil || dataKind(out[0]) != dataCSBK {
		t.Fatalf("expected scripted CC CSBK to be enqueued")
	}
}
