package noise

import (
	"bytes"
	"image/png"
	"testing"
)

func TestUnitClamps(t *testing.T) {
	cases := map[float64]float64{-1: 0, 1: 1, 0: 0.5, -3: 0, 3: 1}
	for in, want := range cases {
		if got := Unit(in); got != want {
			t.Fatalf("Unit(%v)=%v want %v", in, got, want)
		}
	}
}

func TestFieldDeterministic(t *testing.T) {
	a, b := New(42), New(42)
	for i := 0; i < 50; i++ {
		x, y, z := float64(i)*0.37, float64(i)*0.11, float64(i)*0.73
		if a.Eval3(x, y, z) != b.Eval3(x, y, z) {
			t.Fatalf("same seed diverged at %d", i)
		}
	}
}

func TestNewRandDeterministic(t *testing.T) {
	a, b := NewRand(7), NewRand(7)
	for i := 0; i < 100; i++ {
		if a.Uint64() != b.Uint64() {
			t.Fatalf("draw %d diverged", i)
		}
	}
	if NewRand(7).Uint64() == NewRand(8).Uint64() {
		t.Fatalf("different seeds should give different streams")
	}
}

func TestHeightmapNormalized(t *testing.T) {
	cfg := DefaultHeightmapConfig()
	cfg.Width, cfg.Height = 32, 24
	values, err := Heightmap(cfg)
	if err != nil {
		t.Fatalf("Heightmap: %v", err)
	}
	if len(values) != 32*24 {
		t.Fatalf("len=%d", len(values))
	}
	sawZero, sawOne := false, false
	for _, v := range values {
		if v < 0 || v > 1 {
			t.Fatalf("value out of range: %v", v)
		}
		sawZero = sawZero || v == 0
		sawOne = sawOne || v == 1
	}
	if !sawZero || !sawOne {
		t.Fatalf("expected min/max to reach 0 and 1")
	}
}

func TestHeightmapRejectsBadConfig(t *testing.T) {
	cfg := DefaultHeightmapConfig()
	cfg.Octaves = 0
	if _, err := Heightmap(cfg); err == nil {
		t.Fatalf("expected error")
	}
}

func TestWriteHeightmapPNG(t *testing.T) {
	cfg := DefaultHeightmapConfig()
	cfg.Width, cfg.Height = 8, 8
	var buf bytes.Buffer
	if err := WriteHeightmapPNG(&buf, cfg); err != nil {
		t.Fatalf("WriteHeightmapPNG: %v", err)
	}
	img, err := png.Decode(&buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 8 || b.Dy() != 8 {
		t.Fatalf("bounds: %v", b)
	}
}
