package simrand

import (
	"strings"
	"testing"
)

func TestSameSeedSameSequence(t *testing.T) {
	a, b := New(7), New(7)
	for i := 0; i < 100; i++ {
		if a.Float64() != b.Float64() {
			t.Fatalf("sequences diverged at %d", i)
		}
	}
	if NewID(a, "X") != NewID(b, "X") {
		t.Error("ids diverged for identical seeds")
	}
}

func TestJitterBounds(t *testing.T) {
	src := New(1)
	for i := 0; i < 1000; i++ {
		v := Jitter(src, 100, 0.05)
		if v < 95 || v > 105 {
			t.Fatalf("Jitter out of range: %f", v)
		}
		n := Noise(src, 2)
		if n < -2 || n > 2 {
			t.Fatalf("Noise out of range: %f", n)
		}
	}
}

func TestChanceEdges(t *testing.T) {
	src := New(3)
	for i := 0; i < 100; i++ {
		if Chance(src, 0) {
			t.Fatal("Chance(0) returned true")
		}
		if !Chance(src, 1) {
			t.Fatal("Chance(1) returned false")
		}
	}
}

func TestNewIDPrefix(t *testing.T) {
	id := NewID(New(9), "CMD")
	if !strings.HasPrefix(id, "CMD-") || len(id) != len("CMD-")+36 {
		t.Errorf("unexpected id %q", id)
	}
}
