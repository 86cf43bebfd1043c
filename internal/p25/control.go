package p25

import (
	"log"

	"github.com/openrepeater/dvmhost-go/internal/frame"
	"github.com/openrepeater/dvmhost-go/internal/ring"
	"github.com/openrepeater/dvmhost-go/internal/sitedata"
	"github.com/openrepeater/dvmhost-go/internal/timing"
)

// RFState and NetState mirror the DMR slot's call-ownership states;
// P25 has no slot concept so Control plays the role of TDMA's Slot+Control
// combined, operating on one continuous channel.
type RFState int

const (
	RFIdle RFState = iota
	RFAudio
	RFData
	RFTSBK
	RFRejected
)

type NetState int

const (
	NetIdle NetState = iota
	NetAudio
	NetData
)

// CCMode selects how the trunking control channel is scheduled.
type CCMode int

const (
	CCDisabled CCMode = iota
	CCDedicated
	CCBurst
)

// ControlConfig configures the FDMA control unit.
type ControlConfig struct {
	NAC              uint16
	CallHangMS       int
	RFTimeoutMS      int
	NetTimeoutMS     int
	NetWatchdogMS    int
	RingCapacity     int
	TDUPreambleCount int
	CCMode           CCMode
	CCPacketMS       int
	CCIntervalMS     int
	CCDurationMS     int
}

// Control is the single-channel FDMA state machine: voice header/
// superframe/terminator sequencing, TSBK trunking generation, and the
// dedicated/burst control-channel scheduler.
type Control struct {
	cfg  ControlConfig
	ring *ring.Buffer

	rfState  RFState
	netState NetState

	rfLC  *LinkControl
	netLC *LinkControl

	callHang    *timing.Timer
	rfTimeout   *timing.Timer
	netTimeout  *timing.Timer
	netWatchdog *timing.Timer
	ccPacket    *timing.Timer
	ccInterval  *timing.Timer
	ccDuration  *timing.Timer

	ccRunning bool
	ccHalted  bool
	ccStep    int

	tduPending int

	dataBlockCount     int
	dataBlocksReceived int
	dataBuffer         []byte

	rfFrames, netFrames uint64
	rfErrors            uint64
}

// NewControl builds a Control in the IDLE/IDLE state. In dedicated CC mode
// the control channel is started immediately and runs indefinitely.
func NewControl(cfg ControlConfig) *Control {
	if cfg.RingCapacity == 0 {
		cfg.RingCapacity = 8192
	}
	if cfg.TDUPreambleCount == 0 {
		cfg.TDUPreambleCount = DefaultTDUPreambleCount
	}
	c := &Control{
		cfg:         cfg,
		ring:        ring.New(cfg.RingCapacity, "p25-control"),
		callHang:    timing.New(cfg.CallHangMS),
		rfTimeout:   timing.New(cfg.RFTimeoutMS),
		netTimeout:  timing.New(cfg.NetTimeoutMS),
		netWatchdog: timing.New(cfg.NetWatchdogMS),
		ccPacket:    timing.New(cfg.CCPacketMS),
		ccInterval:  timing.New(cfg.CCIntervalMS),
		ccDuration:  timing.New(cfg.CCDurationMS),
	}
	if cfg.CCMode == CCDedicated {
		c.startCC()
	} else if cfg.CCMode == CCBurst {
		c.ccInterval.Start()
	}
	return c
}

func (c *Control) RFState() RFState   { return c.rfState }
func (c *Control) NetState() NetState { return c.netState }
func (c *Control) CCRunning() bool    { return c.ccRunning }
func (c *Control) CCHalted() bool     { return c.ccHalted }

// dataKind classifies the embedded P25 burst type carried in a frame's
// first payload byte.
type dataKind uint8

const (
	dataVoiceHeader dataKind = iota
	dataVoiceSuperframe
	dataTerminator
	dataDataHeader
	dataDataBlock
	dataTSBK
	dataTDU
)

// ProcessFrame classifies an inbound RF frame and drives the RF state
// machine. Returns true if accepted into a call context.
func (c *Control) ProcessFrame(f frame.Frame) bool {
	if len(f.Payload) == 0 {
		return false
	}
	kind := dataKind(f.Payload[0])
	body := f.Payload[1:]

	// Any RF voice/data traffic interrupts a running burst CC and halts a
	// dedicated CC's writes until the call clears.
	if kind == dataVoiceHeader || kind == dataVoiceSuperframe || kind == dataDataHeader {
		c.onRFTrafficStart()
	}

	switch kind {
	case dataVoiceHeader:
		return c.processVoiceHeader(body)
	case dataVoiceSuperframe:
		return c.processVoiceSuperframe(body)
	case dataTerminator:
		return c.processTerminator(body)
	case dataDataHeader:
		return c.processDataHeader(body)
	case dataDataBlock:
		return c.processDataBlock(body)
	case dataTSBK:
		return c.processTSBK(body)
	default:
		return false
	}
}

func (c *Control) onRFTrafficStart() {
	if c.cfg.CCMode == CCDedicated && c.ccRunning {
		c.ccHalted = true
		log.Print("p25 control: RF traffic halts dedicated CC, clearing modem CC buffer")
	}
	if c.cfg.CCMode == CCBurst && c.ccRunning {
		c.ccDuration.Pause()
	}
}

func (c *Control) onRFTrafficEnd() {
	if c.cfg.CCMode == CCDedicated {
		c.ccHalted = false
	}
	if c.cfg.CCMode == CCBurst && c.ccRunning {
		c.ccDuration.Resume()
	}
}

func (c *Control) processVoiceHeader(body []byte) bool {
	if c.netState != NetIdle {
		log.Print("p25 control: RF voice header dropped, network call active")
		return false
	}
	lc, ok := DecodeLinkControl(body)
	if !ok {
		c.rfErrors++
		return false
	}
	c.rfLC = &lc
	c.rfState = RFAudio
	c.rfTimeout.Start()
	c.rfFrames++
	c.enqueue(append([]byte{byte(dataVoiceHeader)}, body...))
	return true
}

func (c *Control) processVoiceSuperframe(body []byte) bool {
	if c.rfState != RFAudio {
		c.rfErrors++
		return false
	}
	c.rfTimeout.Start()
	c.rfFrames++
	c.enqueue(append([]byte{byte(dataVoiceSuperframe)}, body...))
	return true
}

func (c *Control) processTerminator(body []byte) bool {
	switch c.rfState {
	case RFAudio:
		c.rfFrames++
		log.Printf("p25 control: RF call ended, src=%d dst=%d frames=%d errors=%d",
			c.rfLC.SourceID, c.rfLC.DestinationID, c.rfFrames, c.rfErrors)
		c.rfLC = nil
	case RFData:
		c.rfFrames++
		log.Printf("p25 control: RF data session ended, blocks=%d/%d",
			c.dataBlocksReceived, c.dataBlockCount)
		c.resetDataAccumulator()
	default:
		return false
	}
	c.rfTimeout.Stop()
	c.callHang.Start()
	c.rfState = RFIdle
	c.enqueue(append([]byte{byte(dataTerminator)}, body...))
	c.onRFTrafficEnd()
	return true
}

// processDataHeader starts a data session: body[0] carries the block count
// the following dataDataBlock frames must accumulate before reassembly.
func (c *Control) processDataHeader(body []byte) bool {
	if c.netState != NetIdle {
		return false
	}
	if len(body) == 0 {
		c.rfErrors++
		return false
	}
	c.resetDataAccumulator()
	c.dataBlockCount = int(body[0])
	c.rfState = RFData
	c.rfTimeout.Start()
	c.rfFrames++
	c.enqueue(append([]byte{byte(dataDataHeader)}, body...))
	return true
}

// processDataBlock accumulates one block of the current data session. Once
// dataBlockCount blocks have arrived the accumulated payload is reassembled
// and forwarded as a single frame; a block received outside an active
// session, or past the expected count, is dropped as an error.
func (c *Control) processDataBlock(body []byte) bool {
	if c.rfState != RFData || c.dataBlocksReceived >= c.dataBlockCount {
		c.rfErrors++
		return false
	}
	c.rfTimeout.Start()
	c.rfFrames++
	c.dataBuffer = append(c.dataBuffer, body...)
	c.dataBlocksReceived++
	if c.dataBlocksReceived < c.dataBlockCount {
		return true
	}
	reassembled := c.dataBuffer
	c.resetDataAccumulator()
	c.enqueue(append([]byte{byte(dataDataBlock)}, reassembled...))
	return true
}

// resetDataAccumulator clears in-progress data-session reassembly state,
// used both after a clean reassembly and to drop a truncated session.
func (c *Control) resetDataAccumulator() {
	c.dataBlockCount = 0
	c.dataBlocksReceived = 0
	c.dataBuffer = nil
}

func (c *Control) processTSBK(body []byte) bool {
	block, err := Decode(body)
	if err != nil {
		c.rfErrors++
		return false
	}
	var out []byte
	if block.Opcode == Opcode(0xFF) {
		out = Regenerate(body)
	} else {
		out = Encode(block)
	}
	c.enqueue(append([]byte{byte(dataTSBK)}, out...))
	return true
}

// ProcessNetwork accepts a network-originated frame. A network call
// starting while RF is busy is dropped, honouring the half-duplex
// call-ownership invariant. On a network-originated call start, the
// configured count of TDU preambles is queued before the voice header so
// slave receivers can align.
func (c *Control) ProcessNetwork(f frame.Frame) bool {
	if c.rfState != RFIdle {
		log.Print("p25 control: network frame dropped, RF call active")
		return false
	}
	if len(f.Payload) == 0 {
		return false
	}
	kind := dataKind(f.Payload[0])
	switch kind {
	case dataVoiceHeader:
		lc, ok := DecodeLinkControl(f.Payload[1:])
		if !ok {
			return false
		}
		c.netLC = &lc
		c.netState = NetAudio
		c.netTimeout.Start()
		c.netWatchdog.Start()
		c.tduPending = c.cfg.TDUPreambleCount
		for i := 0; i < c.tduPending; i++ {
			c.enqueue([]byte{byte(dataTDU)})
		}
		c.tduPending = 0
	case dataVoiceSuperframe:
		if c.netState != NetAudio {
			return false
		}
		c.netWatchdog.Start()
	case dataTerminator:
		c.netState = NetIdle
		c.netLC = nil
		c.netTimeout.Stop()
		c.netWatchdog.Stop()
	}
	c.netFrames++
	c.enqueue(f.Payload)
	return true
}

// Clock advances every timer and applies timeout failure semantics, plus
// the CC scheduler.
func (c *Control) Clock(elapsedMS int) {
	c.callHang.Clock(elapsedMS)
	c.rfTimeout.Clock(elapsedMS)
	c.netTimeout.Clock(elapsedMS)
	c.netWatchdog.Clock(elapsedMS)
	c.ccPacket.Clock(elapsedMS)
	c.ccInterval.Clock(elapsedMS)
	c.ccDuration.Clock(elapsedMS)

	if c.rfState != RFIdle && c.rfTimeout.HasExpired() {
		if c.rfState == RFData {
			log.Printf("p25 control: RF data session truncated, blocks=%d/%d",
				c.dataBlocksReceived, c.dataBlockCount)
			c.resetDataAccumulator()
		} else {
			log.Print("p25 control: RF timeout, forcing idle")
		}
		c.rfState = RFIdle
		c.rfLC = nil
		c.rfTimeout.Stop()
		c.enqueue([]byte{byte(dataTerminator)})
		c.onRFTrafficEnd()
	}
	if c.netState != NetIdle && c.netTimeout.HasExpired() {
		log.Print("p25 control: network timeout, forcing idle")
		c.netState = NetIdle
		c.netLC = nil
		c.netTimeout.Stop()
		c.netWatchdog.Stop()
		c.enqueue([]byte{byte(dataTerminator)})
	}
	if c.netState == NetAudio && c.netWatchdog.HasExpired() {
		log.Print("p25 control: network watchdog expired mid-call, reverting")
		c.netState = NetIdle
		c.netLC = nil
		c.netTimeout.Stop()
		c.netWatchdog.Stop()
	}

	c.clockCC()
}

func (c *Control) clockCC() {
	switch c.cfg.CCMode {
	case CCDedicated:
		if c.ccRunning && !c.ccHalted && c.ccPacket.HasExpired() {
			c.writeControlRF()
			c.ccPacket.Start()
		}
	case CCBurst:
		if !c.ccRunning && c.ccInterval.HasExpired() {
			c.startCC()
		}
		if c.ccRunning {
			if c.ccDuration.IsRunning() && c.ccPacket.HasExpired() {
				c.writeControlRF()
				c.ccPacket.Start()
			}
			if c.ccDuration.IsRunning() && c.ccDuration.HasExpired() {
				c.stopCC()
				c.ccInterval.Start()
			}
		}
	}
}

func (c *Control) startCC() {
	c.ccRunning = true
	c.ccHalted = false
	c.ccStep = 0
	c.ccPacket.Start()
	if c.cfg.CCMode == CCBurst {
		c.ccDuration.Start()
	}
}

func (c *Control) stopCC() {
	c.ccRunning = false
	c.ccPacket.Stop()
	c.ccDuration.Stop()
}

// Shutdown synthesises a clean end-of-RF terminator ahead of stopping the
// control channel, so peers see an orderly close instead of the CC simply
// going silent mid-cycle. Host calls this once, during the QUIT sequence,
// only when this protocol owns a dedicated or currently-running CC.
func (c *Control) Shutdown() {
	if !c.ccRunning {
		return
	}
	c.enqueue([]byte{byte(dataTDU)})
	c.stopCC()
}

// writeControlRF emits the next scripted TSBK in the trunking sequence:
// network status, then RFSS status, then adjacent-site status.
func (c *Control) writeControlRF() {
	var t TSBK
	switch c.ccStep % 3 {
	case 0:
		t = TSBK{Opcode: OpcodeNetworkStatusBroadcast, NAC: c.cfg.NAC, Last: true}
	case 1:
		t = TSBK{Opcode: OpcodeRFSSStatusBroadcast, NAC: c.cfg.NAC, Last: true}
	case 2:
		t = TSBK{Opcode: OpcodeAdjacentStatusBroadcast, NAC: c.cfg.NAC, Last: true}
	}
	c.ccStep++
	c.enqueue(append([]byte{byte(dataTSBK)}, Encode(t)...))
}

// WriteAdjSSNetwork periodically transmits adjacent-site identity to the
// network layer even outside an active call; Host calls this on its own
// schedule independent of the RF-side CC scheduler.
func (c *Control) WriteAdjSSNetwork(site sitedata.SiteData) []byte {
	return Encode(TSBK{Opcode: OpcodeAdjacentStatusBroadcast, NAC: c.cfg.NAC, Channel: uint16(site.SiteID()), Last: true})
}

func (c *Control) enqueue(payload []byte) {
	if !c.ring.Put(payload) {
		log.Print("p25 control: outbound ring full, dropping frame")
	}
}

// GetFrame pops the next outbound frame, or nil if the ring is empty.
func (c *Control) GetFrame() []byte {
	return c.ring.Get()
}
