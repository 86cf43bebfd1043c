package ring

import "testing"

func TestPutGetRoundTrip(t *testing.T) {
	b := New(16, "test")
	frame := []byte{1, 2, 3, 4}
	if !b.Put(frame) {
		t.Fatalf("expected space for frame")
	}
	got := b.Get()
	if len(got) != len(frame) {
		t.Fatalf("expected %d bytes back, got %d", len(frame), len(got))
	}
	for i := range frame {
		if got[i] != frame[i] {
			t.Fatalf("byte %d mismatch: got %x want %x", i, got[i], frame[i])
		}
	}
}

func TestGetOnEmptyReturnsZeroLength(t *testing.T) {
	b := New(16, "test")
	if got := b.Get(); len(got) != 0 {
		t.Fatalf("expected zero-length frame from empty buffer, got %d bytes", len(got))
	}
}

func TestPutFailsWhenFull(t *testing.T) {
	b := New(4, "test")
	if b.Put([]byte{1, 2, 3, 4}) {
		t.Fatalf("4-byte frame + 1-byte length prefix should not fit in capacity 4")
	}
}

func TestFIFOOrdering(t *testing.T) {
	b := New(64, "test")
	b.Put([]byte{1})
	b.Put([]byte{2, 2})
	b.Put([]byte{3, 3, 3})

	if got := b.Get(); len(got) != 1 || got[0] != 1 {
		t.Fatalf("expected first frame {1}, got %v", got)
	}
	if got := b.Get(); len(got) != 2 {
		t.Fatalf("expected second frame len 2, got %v", got)
	}
	if got := b.Get(); len(got) != 3 {
		t.Fatalf("expected third frame len 3, got %v", got)
	}
}

func TestWrapAround(t *testing.T) {
	b := New(8, "test")
	for i := 0; i < 10; i++ {
		b.Put([]byte{byte(i)})
		got := b.Get()
		if got[0] != byte(i) {
			t.Fatalf("iteration %d: expected %d got %d", i, i, got[0])
		}
	}
}
