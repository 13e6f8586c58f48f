package grid

import "testing"

func TestToPositionInvertsToIndex(t *testing.T) {
	for _, d := range []Dims{DefaultDims(), {Width: 2, Height: 2}, {Width: 5, Height: 3}} {
		for y := 0; y < d.Height; y++ {
			for z := 0; z < d.Width; z++ {
				for x := 0; x < d.Width; x++ {
					p := Position{float32(x), float32(y), float32(z)}
					i := d.ToIndex(p)
					if i < 0 || i >= d.Volume() {
						t.Fatalf("%v: index %d out of range for %+v", p, i, d)
					}
					if got := d.ToPosition(i); got != p {
						t.Fatalf("%+v: ToPosition(ToIndex(%v))=%v", d, p, got)
					}
				}
			}
		}
	}
}

func TestIndexLayout(t *testing.T) {
	d := DefaultDims()
	if got := d.Index(1, 0, 0); got != 1 {
		t.Fatalf("x stride: %d", got)
	}
	if got := d.Index(0, 0, 1); got != 16 {
		t.Fatalf("z stride: %d", got)
	}
	if got := d.Index(0, 1, 0); got != 256 {
		t.Fatalf("y stride: %d", got)
	}
	if d.Volume() != 16*64*16 {
		t.Fatalf("volume: %d", d.Volume())
	}
}

func TestInBounds(t *testing.T) {
	d := Dims{Width: 4, Height: 8}
	if !d.InBounds(0, 0, 0) || !d.InBounds(3, 7, 3) {
		t.Fatalf("corners should be in bounds")
	}
	for _, c := range [][3]int{{-1, 0, 0}, {4, 0, 0}, {0, -1, 0}, {0, 8, 0}, {0, 0, -1}, {0, 0, 4}} {
		if d.InBounds(c[0], c[1], c[2]) {
			t.Fatalf("%v should be out of bounds", c)
		}
	}
}

func TestValidate(t *testing.T) {
	if err := (Dims{Width: 0, Height: 4}).Validate(); err == nil {
		t.Fatalf("expected error for zero width")
	}
	if err := DefaultDims().Validate(); err != nil {
		t.Fatalf("default dims: %v", err)
	}
}

func TestIntegral(t *testing.T) {
	if !Integral(Position{1, 2, 3}) {
		t.Fatalf("expected integral")
	}
	if Integral(Position{1, 2.5, 3}) {
		t.Fatalf("expected non-integral")
	}
}
