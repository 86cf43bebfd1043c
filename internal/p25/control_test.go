package p25

import (
	"testing"

	"github.com/openrepeater/dvmhost-go/internal/frame"
)

func testConfig() ControlConfig {
	return ControlConfig{
		NAC:           0x293,
		CallHangMS:    100,
		RFTimeoutMS:   1000,
		NetTimeoutMS:  1000,
		NetWatchdogMS: 500,
		CCPacketMS:    100,
	}
}

func voiceHeaderFrame(src, dst uint32) frame.Frame {
	lc := LinkControl{LCO: LCOGroupCall, SourceID: src, DestinationID: dst}
	payload := append([]byte{byte(dataVoiceHeader)}, lc.Encode()...)
	return frame.Frame{Protocol: frame.ProtoFDMA, Payload: payload}
}

func TestProcessFrameVoiceHeaderStartsCall(t *testing.T) {
	c := NewControl(testConfig())
	if !c.ProcessFrame(voiceHeaderFrame(100, 9)) {
		t.Fatalf("expected voice header to be accepted")
	}
	if c.RFState() != RFAudio {
		t.Fatalf("expected RF state AUDIO, got %v", c.RFState())
	}
}

func TestTerminatorReturnsToIdle(t *testing.T) {
	c := NewControl(testConfig())
	c.ProcessFrame(voiceHeaderFrame(100, 9))
	c.GetFrame()
	term := frame.Frame{Payload: []byte{byte(dataTerminator)}}
	if !c.ProcessFrame(term) {
		t.Fatalf("expected terminator to be accepted")
	}
	if c.RFState() != RFIdle {
		t.Fatalf("expected RF state IDLE after terminator, got %v", c.RFState())
	}
}

func TestDedicatedCCHaltsOnRFTraffic(t *testing.T) {
	cfg := testConfig()
	cfg.CCMode = CCDedicated
	c := NewControl(cfg)
	if !c.CCRunning() {
		t.Fatalf("expected dedicated CC to start running immediately")
	}
	c.ProcessFrame(voiceHeaderFrame(100, 9))
	if !c.CCHalted() {
		t.Fatalf("expected CC halted flag set once RF traffic begins")
	}
	c.ProcessFrame(frame.Frame{Payload: []byte{byte(dataTerminator)}})
	if c.CCHalted() {
		t.Fatalf("expected CC halted flag cleared after call ends")
	}
}

func TestBurstCCPausesDurationOnRFTraffic(t *testing.T) {
	cfg := testConfig()
	cfg.CCMode = CCBurst
	cfg.CCIntervalMS = 10
	cfg.CCDurationMS = 1000
	c := NewControl(cfg)
	c.Clock(10)
	if !c.CCRunning() {
		t.Fatalf("expected burst CC to start after interval elapses")
	}
	c.Clock(100)
	remainingBefore := c.ccDuration.Remaining()

	c.ProcessFrame(voiceHeaderFrame(100, 9))
	c.Clock(500)
	if c.ccDuration.Remaining() != remainingBefore {
		t.Fatalf("expected CC duration timer paused during RF traffic: before=%d after=%d",
			remainingBefore, c.ccDuration.Remaining())
	}
}

func TestNetworkOriginatedCallEmitsTDUPreamble(t *testing.T) {
	cfg := testConfig()
	cfg.TDUPreambleCount = 3
	c := NewControl(cfg)
	c.ProcessNetwork(voiceHeaderFrame(100, 9))

	tduCount := 0
	for {
		f := c.GetFrame()
		if f == nil {
			break
		}
		if dataKind(f[0]) == dataTDU {
			tduCount++
		}
	}
	if tduCount != 3 {
		t.Fatalf("expected 3 TDU preambles, got %d", tduCount)
	}
}

func TestNetworkCallDroppedWhileRFActive(t *testing.T) {
	c := NewControl(testConfig())
	c.ProcessFrame(voiceHeaderFrame(100, 9))
	c.GetFrame()
	if c.ProcessNetwork(voiceHeaderFrame(200, 9)) {
		t.Fatalf("expected network call to be dropped while RF is active")
	}
}
