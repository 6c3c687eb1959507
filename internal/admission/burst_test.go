package admission

import "testing"

func TestMotionBurstFilter(t *testing.T) {
	f := NewMotionBurstFilter(3)
	for i := 0; i < 3; i++ {
		if !f.Suppress() {
			t.Fatalf("sample %d should be suppressed", i)
		}
	}
	if !f.Inert() {
		t.Fatal("filter should be inert after threshold")
	}
	for i := 0; i < 10; i++ {
		if f.Suppress() {
			t.Fatalf("inert filter suppressed sample %d", i)
		}
	}
	if got := f.Seen(); got != 3 {
		t.Errorf("Seen() = %d, want 3", got)
	}
}

func TestMotionBurstFilterZeroThreshold(t *testing.T) {
	f := NewMotionBurstFilter(0)
	if !f.Inert() {
		t.Error("zero threshold filter should start inert")
	}
	if f.Suppress() {
		t.Error("zero threshold filter should not suppress")
	}
}
