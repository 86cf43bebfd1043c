package dmr

import (
	"log"

	"github.com/openrepeater/dvmhost-go/internal/frame"
	"github.com/openrepeater/dvmhost-go/internal/ring"
	"github.com/openrepeater/dvmhost-go/internal/sitedata"
	"github.com/openrepeater/dvmhost-go/internal/timing"
)

// RFState tracks in-progress reception from the air.
type RFState int

const (
	RFIdle RFState = iota
	RFAudio
	RFData
	RFCSBK
	RFRejected
)

// NetState tracks in-progress reception from the wire.
type NetState int

const (
	NetIdle NetState = iota
	NetAudio
	NetData
)

// SlotConfig carries the per-slot timing and queue parameters normally
// sourced from the YAML configuration.
type SlotConfig struct {
	ID              uint8
	ColorCode       uint8
	CallHangMS      int
	TGHangMS        int
	RFTimeoutMS     int
	NetTimeoutMS    int
	NetWatchdogMS   int
	RingCapacity    int
	EnableTSCC      bool
	CCPacketMS      int
	Site            sitedata.SiteData
}

// Slot implements one of the two TDMA time slots: RF/net state machines,
// call bookkeeping, per-slot outbound ring, and (when selected as the
// trunking slot) the control-channel CSBK sequence generator.
type Slot struct {
	cfg  SlotConfig
	ring *ring.Buffer

	rfState  RFState
	netState NetState

	rfLC  *LinkControl
	netLC *LinkControl

	lastDstID uint32

	callHang    *timing.Timer
	tgHang      *timing.Timer
	rfTimeout   *timing.Timer
	netTimeout  *timing.Timer
	netWatchdog *timing.Timer
	ccPacket    *timing.Timer

	ccRunning bool
	ccStep    int

	rfFrames, netFrames   uint64
	rfErrors, netErrors   uint64

	dataBlockCount     int
	dataBlocksReceived int
	dataBuffer         []byte

	onShortLCChange func()
}

// NewSlot builds a Slot in the IDLE/IDLE state with all timers stopped.
func NewSlot(cfg SlotConfig) *Slot {
	if cfg.RingCapacity == 0 {
		cfg.RingCapacity = 5120
	}
	return &Slot{
		cfg:         cfg,
		ring:        ring.New(cfg.RingCapacity, "dmr-slot"),
		callHang:    timing.New(cfg.CallHangMS),
		tgHang:      timing.New(cfg.TGHangMS),
		rfTimeout:   timing.New(cfg.RFTimeoutMS),
		netTimeout:  timing.New(cfg.NetTimeoutMS),
		netWatchdog: timing.New(cfg.NetWatchdogMS),
		ccPacket:    timing.New(cfg.CCPacketMS),
	}
}

// OnShortLCChange registers a callback invoked whenever RF or net state
// transitions in a way that should regenerate the short-LC field. Control
// wires this to its own short-LC aggregator across both slots.
func (s *Slot) OnShortLCChange(fn func()) { s.onShortLCChange = fn }

func (s *Slot) shortLCChanged() {
	if s.onShortLCChange != nil {
		s.onShortLCChange()
	}
}

// RFState and NetState expose the slot's current call-ownership state.
func (s *Slot) RFState() RFState   { return s.rfState }
func (s *Slot) NetState() NetState { return s.netState }
func (s *Slot) LastDstID() uint32  { return s.lastDstID }

// dataKind classifies the embedded DMR burst type carried in a frame's
// first payload byte, mirroring the slot type field of the on-air sync
// pattern.
type dataKind uint8

const (
	dataVoiceHeader dataKind = iota
	dataVoiceSync
	dataVoiceSuperframe
	dataTerminator
	dataHeader
	dataBlock
	dataCSBK
	dataIdle
)

// ProcessFrame classifies an inbound RF frame and drives the RF state
// machine. It returns true if the frame was accepted into a call context,
// signalling to Control/Host that the mode-hang timer should (re)start.
func (s *Slot) ProcessFrame(f frame.Frame) bool {
	if len(f.Payload) == 0 {
		return false
	}
	kind := dataKind(f.Payload[0])
	body := f.Payload[1:]

	switch kind {
	case dataVoiceHeader, dataVoiceSync:
		return s.processVoiceHeader(body)
	case dataVoiceSuperframe:
		return s.processVoiceSuperframe(body)
	case dataTerminator:
		return s.processTerminator(body)
	case dataHeader:
		return s.processDataHeader(body)
	case dataBlock:
		return s.processDataBlock(body)
	case dataCSBK:
		return s.processCSBK(body)
	default:
		return false
	}
}

func (s *Slot) processVoiceHeader(body []byte) bool {
	if s.netState != NetIdle {
		log.Printf("dmr slot %d: RF voice header dropped, network call active", s.cfg.ID)
		return false
	}
	lc, ok := DecodeLinkControl(body)
	if !ok {
		s.rfErrors++
		return false
	}
	s.rfLC = &lc
	s.rfState = RFAudio
	s.lastDstID = lc.DestinationID
	s.tgHang.Start()
	s.rfTimeout.Start()
	s.rfFrames++
	s.shortLCChanged()
	s.enqueue(append([]byte{byte(dataVoiceHeader)}, body...))
	return true
}

func (s *Slot) processVoiceSuperframe(body []byte) bool {
	if s.rfState != RFAudio {
		s.rfErrors++
		return false
	}
	s.rfTimeout.Start()
	s.rfFrames++
	s.enqueue(append([]byte{byte(dataVoiceSuperframe)}, body...))
	return true
}

func (s *Slot) processTerminator(body []byte) bool {
	switch s.rfState {
	case RFAudio:
		s.rfFrames++
		log.Printf("dmr slot %d: RF call ended, src=%d dst=%d frames=%d errors=%d",
			s.cfg.ID, s.rfLC.SourceID, s.rfLC.DestinationID, s.rfFrames, s.rfErrors)
		s.rfLC = nil
	case RFData:
		s.rfFrames++
		log.Printf("dmr slot %d: RF data session ended, blocks=%d/%d",
			s.cfg.ID, s.dataBlocksReceived, s.dataBlockCount)
		s.resetDataAccumulator()
	default:
		return false
	}
	s.rfTimeout.Stop()
	s.callHang.Start()
	s.rfState = RFIdle
	s.shortLCChanged()
	s.enqueue(append([]byte{byte(dataTerminator)}, body...))
	return true
}

// processDataHeader starts a data session: body[0] carries the block count
// the following dataBlock frames must accumulate before reassembly, per the
// data-call framing DMR shares with a voice call's header/superframe/
// terminator shape.
func (s *Slot) processDataHeader(body []byte) bool {
	if s.netState != NetIdle {
		return false
	}
	if len(body) == 0 {
		s.rfErrors++
		return false
	}
	s.resetDataAccumulator()
	s.dataBlockCount = int(body[0])
	s.rfState = RFData
	s.rfTimeout.Start()
	s.rfFrames++
	s.shortLCChanged()
	s.enqueue(append([]byte{byte(dataHeader)}, body...))
	return true
}

// processDataBlock accumulates one block of the current data session. Once
// dataBlockCount blocks have arrived the accumulated payload is reassembled
// and forwarded as a single frame; a block received outside an active
// session, or past the expected count, is dropped as an error.
func (s *Slot) processDataBlock(body []byte) bool {
	if s.rfState != RFData || s.dataBlocksReceived >= s.dataBlockCount {
		s.rfErrors++
		return false
	}
	s.rfTimeout.Start()
	s.rfFrames++
	s.dataBuffer = append(s.dataBuffer, body...)
	s.dataBlocksReceived++
	if s.dataBlocksReceived < s.dataBlockCount {
		return true
	}
	reassembled := s.dataBuffer
	s.resetDataAccumulator()
	s.enqueue(append([]byte{byte(dataBlock)}, reassembled...))
	return true
}

// resetDataAccumulator clears in-progress data-session reassembly state,
// used both after a clean reassembly and to drop a truncated session.
func (s *Slot) resetDataAccumulator() {
	s.dataBlockCount = 0
	s.dataBlocksReceived = 0
	s.dataBuffer = nil
}

func (s *Slot) processCSBK(body []byte) bool {
	block, err := Decode(body)
	if err != nil {
		s.rfErrors++
		return false
	}
	s.rfFrames++
	s.handleCSBK(block)
	var out []byte
	if block.Opcode == Opcode(0xFF) {
		out = Regenerate(body)
	} else {
		out = Encode(block)
	}
	s.enqueue(append([]byte{byte(dataCSBK)}, out...))
	return true
}

// handleCSBK updates slot-local state for CSBK opcodes this core acts on;
// opcodes it doesn't recognise are forwarded unchanged by the caller via
// Regenerate.
func (s *Slot) handleCSBK(c CSBK) {
	switch c.Opcode {
	case OpcodeCallAlert, OpcodeEmergencyAlarm, OpcodeGroupAffiliationQuery,
		OpcodeGroupAffiliationUpdate, OpcodeUnitRegistrationCommand:
		s.lastDstID = c.Destination
	case OpcodeGrantVoiceChannel, OpcodeGrantDataChannel:
		s.lastDstID = c.Destination
	}
}

// ProcessNetwork accepts a network-originated frame for this slot. A
// network call is dropped outright if RF is currently active, honouring
// the half-duplex call-ownership invariant.
func (s *Slot) ProcessNetwork(f frame.Frame) bool {
	if s.rfState != RFIdle {
		log.Printf("dmr slot %d: network frame dropped, RF call active", s.cfg.ID)
		return false
	}
	if len(f.Payload) == 0 {
		return false
	}
	kind := dataKind(f.Payload[0])
	switch kind {
	case dataVoiceHeader, dataVoiceSync:
		lc, ok := DecodeLinkControl(f.Payload[1:])
		if !ok {
			return false
		}
		s.netLC = &lc
		s.netState = NetAudio
		s.netTimeout.Start()
		s.netWatchdog.Start()
	case dataVoiceSuperframe:
		if s.netState != NetAudio {
			return false
		}
		s.netWatchdog.Start()
	case dataTerminator:
		s.netState = NetIdle
		s.netLC = nil
		s.netTimeout.Stop()
		s.netWatchdog.Stop()
	}
	s.netFrames++
	s.shortLCChanged()
	s.enqueue(f.Payload)
	return true
}

// Clock advances every per-slot timer by elapsedMS and applies timeout
// failure semantics: an RF or net call that outlives its timeout is forced
// back to IDLE and a synthetic terminator is enqueued; a net call whose
// frames stop (watchdog expiry) is reverted to IDLE without one.
func (s *Slot) Clock(elapsedMS int) {
	s.callHang.Clock(elapsedMS)
	s.tgHang.Clock(elapsedMS)
	s.rfTimeout.Clock(elapsedMS)
	s.netTimeout.Clock(elapsedMS)
	s.netWatchdog.Clock(elapsedMS)
	s.ccPacket.Clock(elapsedMS)

	if s.rfState != RFIdle && s.rfTimeout.HasExpired() {
		if s.rfState == RFData {
			log.Printf("dmr slot %d: RF data session truncated, blocks=%d/%d",
				s.cfg.ID, s.dataBlocksReceived, s.dataBlockCount)
			s.resetDataAccumulator()
		} else {
			log.Printf("dmr slot %d: RF timeout, forcing idle", s.cfg.ID)
		}
		s.rfState = RFIdle
		s.rfLC = nil
		s.rfTimeout.Stop()
		s.enqueue([]byte{byte(dataTerminator)})
		s.shortLCChanged()
	}
	if s.netState != NetIdle && s.netTimeout.HasExpired() {
		log.Printf("dmr slot %d: network timeout, forcing idle", s.cfg.ID)
		s.netState = NetIdle
		s.netLC = nil
		s.netTimeout.Stop()
		s.netWatchdog.Stop()
		s.enqueue([]byte{byte(dataTerminator)})
		s.shortLCChanged()
	}
	if s.netState == NetAudio && s.netWatchdog.HasExpired() {
		log.Printf("dmr slot %d: network watchdog expired mid-call, reverting", s.cfg.ID)
		s.netState = NetIdle
		s.netLC = nil
		s.netTimeout.Stop()
		s.netWatchdog.Stop()
		s.shortLCChanged()
	}

	if s.cfg.EnableTSCC && s.ccRunning && s.ccPacket.HasExpired() {
		s.emitControlStep()
		s.ccPacket.Start()
	}
}

// SetCCRunning toggles scripted control-channel CSBK emission for this
// slot when it has been selected as the trunking slot.
func (s *Slot) SetCCRunning(running bool) {
	if running == s.ccRunning {
		return
	}
	s.ccRunning = running
	if running {
		s.ccStep = 0
		s.ccPacket.Start()
	} else {
		s.ccPacket.Stop()
	}
}

// emitControlStep advances the scripted CC CSBK sequence: aloha, then
// system identity broadcast, then adjacent-site broadcast, repeating.
func (s *Slot) emitControlStep() {
	identity := s.cfg.Site.SystemIdentity()
	var c CSBK
	switch s.ccStep % 3 {
	case 0:
		c = CSBK{Opcode: OpcodeAloha, SiteIdentity: identity, Last: true}
	case 1:
		c = CSBK{Opcode: OpcodeBroadcastSiteID, SiteIdentity: identity, Last: true}
	case 2:
		c = CSBK{Opcode: OpcodeBroadcastAdjacentSite, SiteIdentity: identity, Last: true}
	}
	s.ccStep++
	s.enqueue(append([]byte{byte(dataCSBK)}, Encode(c)...))
}

func (s *Slot) enqueue(payload []byte) {
	if !s.ring.Put(payload) {
		log.Printf("dmr slot %d: outbound ring full, dropping frame", s.cfg.ID)
	}
}

// GetFrame pops the next outbound frame, or nil if the ring is empty.
func (s *Slot) GetFrame() []byte {
	return s.ring.Get()
}

// SiteIdentityBroadcast builds the aloha/system-identity CSBK pair for a
// given site, used by BroadcastSiteIdentity for explicit re-broadcast
// requests; the scripted CC sequence builds its own CSBKs in
// emitControlStep.
func SiteIdentityBroadcast(site sitedata.SiteData) []CSBK {
	return []CSBK{
		{Opcode: OpcodeAloha, SiteIdentity: site.SystemIdentity(), Last: false},
		{Opcode: OpcodeBroadcastSiteID, SiteIdentity: site.SystemIdentity(), Last: true},
	}
}

// BroadcastSiteIdentity enqueues an out-of-cycle aloha/system-identity pair
// ahead of the scripted sequence, for an explicit re-broadcast request
// rather than the regular CC-packet cadence.
func (s *Slot) BroadcastSiteIdentity() {
	for _, c := range SiteIdentityBroadcast(s.cfg.Site) {
		s.enqueue(append([]byte{byte(dataCSBK)}, Encode(c)...))
	}
}
