package netlink

import "testing"

func TestDelayBufferHoldsForJitterWindow(t *testing.T) {
	db := NewDelayBuffer(4, 60, 120)
	data := []byte{1, 2, 3, 4}
	db.AddData(data, 0)

	out := make([]byte, 4)
	if status := db.GetData(out); status != StatusNoData {
		t.Fatalf("expected no data before jitter window fills, got %v", status)
	}
}

func TestDelayBufferMarksMissingOnSequenceGap(t *testing.T) {
	db := NewDelayBuffer(4, 60, 60)
	db.AddData([]byte{1, 1, 1, 1}, 0)
	db.AddData([]byte{2, 2, 2, 2}, 2) // gap: seq 1 skipped
	db.Clock(200)

	out := make([]byte, 4)
	first := db.GetData(out)
	if first != StatusData {
		t.Fatalf("expected first popped frame to be seq 0's data, got %v", first)
	}
	second := db.GetData(out)
	if second != StatusMissing {
		t.Fatalf("expected second popped frame to be the synthesised gap filler, got %v", second)
	}
}

func TestDelayBufferResetClearsState(t *testing.T) {
	db := NewDelayBuffer(4, 60, 60)
	db.AddData([]byte{1, 1, 1, 1}, 0)
	db.Reset()
	if db.IsRunning() {
		t.Fatalf("expected buffer to stop running after Reset")
	}
}
