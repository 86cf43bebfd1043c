package dmr

import (
	"log"

	"github.com/openrepeater/dvmhost-go/internal/frame"
)

// ControlConfig configures the two-slot TDMA control unit.
type ControlConfig struct {
	ColorCode  uint8
	TrunkSlot  uint8 // 1 or 2; 0 disables the dedicated control slot
	Slot1      SlotConfig
	Slot2      SlotConfig
}

// Control is the top-level TDMA owner. It holds pointers to both Slot
// instances in a fixed-size array (an arena) and refers to them by index,
// never by pointer pair between slots, so the two slots cannot form an
// ownership cycle.
type Control struct {
	colorCode uint8
	trunkSlot uint8
	slots     [2]*Slot

	shortLC      []byte
	shortLCDirty bool
}

// NewControl builds a Control with both slots constructed from cfg.
func NewControl(cfg ControlConfig) *Control {
	cfg.Slot1.ID = 1
	cfg.Slot2.ID = 2
	c := &Control{
		colorCode: cfg.ColorCode,
		trunkSlot: cfg.TrunkSlot,
		slots:     [2]*Slot{NewSlot(cfg.Slot1), NewSlot(cfg.Slot2)},
	}
	onChange := func() {
		c.shortLC = c.regenerateShortLC().Encode()
		c.shortLCDirty = true
	}
	c.slots[0].OnShortLCChange(onChange)
	c.slots[1].OnShortLCChange(onChange)
	if cfg.TrunkSlot == 1 || cfg.TrunkSlot == 2 {
		c.slots[cfg.TrunkSlot-1].SetCCRunning(true)
	}
	return c
}

// ColorCode reports the configured color code shared by both slots.
func (c *Control) ColorCode() uint8 { return c.colorCode }

// beaconSlot is the slot whose scripted CSBK sequence doubles as the
// control channel (dedicated trunking) or the roaming beacon burst (no
// dedicated trunking) — slot 1 when none is configured.
func (c *Control) beaconSlot() *Slot {
	if c.trunkSlot == 1 || c.trunkSlot == 2 {
		return c.slots[c.trunkSlot-1]
	}
	return c.slots[0]
}

// CCRunning reports whether the beacon/control-channel slot is currently
// emitting its scripted CSBK sequence.
func (c *Control) CCRunning() bool { return c.beaconSlot().ccRunning }

// SetCCRunning starts or stops the beacon/control-channel slot's scripted
// CSBK sequence. Host drives this directly when TrunkSlot is unset (the
// slot plays the role of a roaming beacon rather than a dedicated CC).
func (c *Control) SetCCRunning(running bool) { c.beaconSlot().SetCCRunning(running) }

// Shutdown synthesises a clean end-of-RF CSBK ahead of stopping the
// control/beacon slot, called once during the Host QUIT sequence.
func (c *Control) Shutdown() {
	s := c.beaconSlot()
	if !s.ccRunning {
		return
	}
	s.enqueue([]byte{byte(dataCSBK)})
	s.SetCCRunning(false)
}

// BroadcastSiteIdentity sends an immediate out-of-cycle site-identity
// broadcast on the beacon/control-channel slot, independent of its
// scripted-sequence cadence.
func (c *Control) BroadcastSiteIdentity() { c.beaconSlot().BroadcastSiteIdentity() }

func (c *Control) slot(n uint8) *Slot {
	if n != 1 && n != 2 {
		return nil
	}
	return c.slots[n-1]
}

// ProcessFrame1 / ProcessFrame2 dispatch an RF frame to the matching slot.
func (c *Control) ProcessFrame1(f frame.Frame) bool { return c.slots[0].ProcessFrame(f) }
func (c *Control) ProcessFrame2(f frame.Frame) bool { return c.slots[1].ProcessFrame(f) }

// ProcessFrame dispatches by f.Slot, giving Control the same single-entry
// RF-frame surface as p25.Control even though DMR has two independent
// slots underneath.
func (c *Control) ProcessFrame(f frame.Frame) bool {
	s := c.slot(f.Slot)
	if s == nil {
		return false
	}
	return s.ProcessFrame(f)
}

// GetFrame1 / GetFrame2 pop the next outbound frame for each slot.
func (c *Control) GetFrame1() []byte { return c.slots[0].GetFrame() }
func (c *Control) GetFrame2() []byte { return c.slots[1].GetFrame() }

// ProcessNetwork dispatches a network-originated frame to the slot named
// by f.Slot (1 or 2); frames for slot 0 or out of range are rejected.
func (c *Control) ProcessNetwork(f frame.Frame) bool {
	s := c.slot(f.Slot)
	if s == nil {
		return false
	}
	return s.ProcessNetwork(f)
}

// Clock advances both slots' timers.
func (c *Control) Clock(elapsedMS int) {
	c.slots[0].Clock(elapsedMS)
	c.slots[1].Clock(elapsedMS)
}

// wakeupMarker is the first payload byte of a wakeup CSBK, used only for
// duplex-only protocol bring-up where a hotspot must be woken before it
// will accept further traffic.
const wakeupMarker = 0xFE

// ProcessWakeup inspects a wakeup CSBK addressed to either slot and
// reports whether it was recognised. Wakeup has no slot-specific state;
// it exists purely to bring a duplex-only repeater out of sleep.
func (c *Control) ProcessWakeup(data []byte) bool {
	if len(data) == 0 || data[0] != wakeupMarker {
		return false
	}
	log.Print("dmr control: wakeup CSBK received")
	return true
}

// regenerateShortLC is invoked whenever either slot's RF/net state changes.
// It rebuilds the aggregate short-LC field summarising both slots and
// would hand it to the modem adapter; Control only assembles the struct
// here, the modem write happens at the Host/Modem boundary.
func (c *Control) regenerateShortLC() SiteShortLC {
	return SiteShortLC{
		Slot1Active: c.slots[0].RFState() != RFIdle || c.slots[0].NetState() != NetIdle,
		Slot1DstID:  c.slots[0].LastDstID(),
		Slot1Voice:  c.slots[0].RFState() == RFAudio || c.slots[0].NetState() == NetAudio,
		Slot2Active: c.slots[1].RFState() != RFIdle || c.slots[1].NetState() != NetIdle,
		Slot2DstID:  c.slots[1].LastDstID(),
		Slot2Voice:  c.slots[1].RFState() == RFAudio || c.slots[1].NetState() == NetAudio,
	}
}

// SiteShortLC is the aggregate view of both slots' occupancy, ready to
// hand to ShortLC.Encode.
type SiteShortLC = ShortLC

// PopShortLC reports the most recently regenerated short-LC payload and
// clears the pending flag, for Host to poll once per tick and push to the
// modem. Returns ok == false when no slot has changed state since the last
// call.
func (c *Control) PopShortLC() (payload []byte, ok bool) {
	if !c.shortLCDirty {
		return nil, false
	}
	c.shortLCDirty = false
	return c.shortLC, true
}
