package sitedata

import "testing"

func TestClampsOutOfRangeFields(t *testing.T) {
	s := New(ModelTiny, 0xFFFF, 0xFF, 9, false)
	if s.NetID() != 0x1FF {
		t.Fatalf("expected netId clamped to 0x1FF, got %#x", s.NetID())
	}
	if s.SiteID() != 0x07 {
		t.Fatalf("expected siteId clamped to 0x07, got %#x", s.SiteID())
	}
	if s.PartID() != defaultPartID {
		t.Fatalf("expected out-of-range partId to fall back to default %d, got %d", defaultPartID, s.PartID())
	}
}

func TestZeroNetIDAndSiteIDClampToOne(t *testing.T) {
	s := New(ModelTiny, 0, 0, 1, false)
	if s.NetID() != 1 {
		t.Fatalf("expected netId 0 to clamp to 1, got %d", s.NetID())
	}
	if s.SiteID() != 1 {
		t.Fatalf("expected siteId 0 to clamp to 1, got %d", s.SiteID())
	}
}

func TestSystemIdentityIs16Bits(t *testing.T) {
	for _, m := range []Model{ModelTiny, ModelSmall, ModelLarge, ModelHuge} {
		s := New(m, 1, 1, 1, false)
		id := s.SystemIdentity()
		if id > 0xFFFF {
			t.Fatalf("model %v: identity overflowed 16 bits: %#x", m, id)
		}
	}
}

func TestSystemIdentityPacksModelNetSitePart(t *testing.T) {
	// TINY: model(2) netId(9) siteId(3) partId(2)
	s := New(ModelTiny, 5, 2, 1, false)
	got := s.SystemIdentity()
	want := uint16(ModelTiny)<<14 | uint16(5)<<5 | uint16(2)<<2 | uint16(1)
	if got != want {
		t.Fatalf("got %#016b want %#016b", got, want)
	}
}

func TestWithNetActiveDoesNotMutateOriginal(t *testing.T) {
	s := New(ModelSmall, 1, 1, 1, false)
	active := s.WithNetActive(true)
	if s.NetworkActive() {
		t.Fatalf("original SiteData must stay immutable")
	}
	if !active.NetworkActive() {
		t.Fatalf("derived SiteData should have network-active set")
	}
}
