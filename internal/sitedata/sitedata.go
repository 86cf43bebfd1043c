// Package sitedata holds the immutable site-identity value used to pack
// trunking-beacon system identities for both protocols.
package sitedata

// Model is the site capacity class, each with its own field widths for the
// packed system identity.
type Model int

const (
	ModelTiny Model = iota
	ModelSmall
	ModelLarge
	ModelHuge
)

// per-model clamp ranges and packed field widths, MSB->LSB order
// {model(2 bits always), netId, siteId, partId(2 bits always)}.
var modelLimits = map[Model]struct {
	netIdMax, siteIdMax uint32
	netIdBits, siteIdBits uint
}{
	ModelTiny:  {0x1FF, 0x07, 9, 3},
	ModelSmall: {0x7F, 0x1F, 7, 5},
	ModelLarge: {0x1F, 0xFF, 5, 7},
	ModelHuge:  {0x03, 0x7FF, 2, 10},
}

const (
	defaultPartID = 3
	partIDMax     = 3
	partIDBits    = 2
	modelBits     = 2
)

// SiteData is an immutable value: site model, network ID, site ID, partition
// ID, and the two operational flags that gate registration/network-active
// behaviour. Out-of-range numeric fields are clamped to the model's range at
// construction time, never mutated afterward.
type SiteData struct {
	model               Model
	netID               uint32
	siteID              uint32
	partID              uint32
	requireRegistration bool
	networkActive       bool
}

// New builds a clamped, immutable SiteData.
func New(model Model, netID, siteID, partID uint32, requireRegistration bool) SiteData {
	limits := modelLimits[model]

	if netID == 0 {
		netID = 1
	}
	if siteID == 0 {
		siteID = 1
	}
	if netID > limits.netIdMax {
		netID = limits.netIdMax
	}
	if siteID > limits.siteIdMax {
		siteID = limits.siteIdMax
	}
	if partID == 0 || partID > partIDMax {
		partID = defaultPartID
	}

	return SiteData{
		model:               model,
		netID:               netID,
		siteID:              siteID,
		partID:              partID,
		requireRegistration: requireRegistration,
	}
}

// WithNetActive returns a copy with the network-active flag set, per the
// single mutable field in the reference implementation — modelled here as a
// constructor rather than a setter so SiteData stays immutable.
func (s SiteData) WithNetActive(active bool) SiteData {
	s.networkActive = active
	return s
}

func (s SiteData) Model() Model   { return s.model }
func (s SiteData) NetID() uint32  { return s.netID }
func (s SiteData) SiteID() uint32 { return s.siteID }
func (s SiteData) PartID() uint32 { return s.partID }
func (s SiteData) RequireRegistration() bool { return s.requireRegistration }
func (s SiteData) NetworkActive() bool       { return s.networkActive }

// SystemIdentity bit-packs {model, netId, siteId, partId} MSB->LSB into a
// 16-bit value per the model's field widths.
func (s SiteData) SystemIdentity() uint16 {
	limits := modelLimits[s.model]
	var id uint32
	id = uint32(s.model)
	id = (id << limits.netIdBits) | (s.netID & limits.netIdMax)
	id = (id << limits.siteIdBits) | (s.siteID & limits.siteIdMax)
	id = (id << partIDBits) | (s.partID & partIDMax)
	return uint16(id)
}

// SystemIdentityNoPartition packs the MSB-only form, omitting the partition
// ID field entirely (total width shrinks by partIDBits).
func (s SiteData) SystemIdentityNoPartition() uint16 {
	limits := modelLimits[s.model]
	var id uint32
	id = uint32(s.model)
	id = (id << limits.netIdBits) | (s.netID & limits.netIdMax)
	id = (id << limits.siteIdBits) | (s.siteID & limits.siteIdMax)
	return uint16(id)
}
