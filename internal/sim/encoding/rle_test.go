package encoding

import (
	"encoding/base64"
	"testing"

	"voxelforge.ai/internal/sim/block"
)

func TestRLE_RoundTrip(t *testing.T) {
	in := make([]uint16, 0, 200)
	in = append(in, 1, 1, 1, 2, 2, 3)
	for i := 0; i < 50; i++ {
		in = append(in, 6)
	}
	in = append(in, 0, 4, 4, 4)

	out, err := DecodeRLE(EncodeRLE(in), -1)
	if err != nil {
		t.Fatalf("DecodeRLE: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("len mismatch: got %d want %d", len(out), len(in))
	}
	for i := range in {
		if out[i] != in[i] {
			t.Fatalf("mismatch at %d: got %d want %d", i, out[i], in[i])
		}
	}
}

func TestRLE_LongRunsStayCompact(t *testing.T) {
	in := make([]uint16, 16*64*16)
	enc := EncodeRLE(in)
	raw, _ := base64.StdEncoding.DecodeString(enc)
	if len(raw) > 4 {
		t.Fatalf("single run encoded to %d bytes", len(raw))
	}
}

func TestRLE_LimitAndCorruption(t *testing.T) {
	enc := EncodeRLE([]uint16{1, 1, 1, 1})
	if _, err := DecodeRLE(enc, 3); err == nil {
		t.Fatalf("expected limit error")
	}
	if _, err := DecodeRLE("!!!", -1); err == nil {
		t.Fatalf("expected base64 error")
	}
	truncated := base64.StdEncoding.EncodeToString([]byte{0x80})
	if _, err := DecodeRLE(truncated, -1); err == nil {
		t.Fatalf("expected varint error")
	}
	zeroRun := base64.StdEncoding.EncodeToString([]byte{1, 0})
	if _, err := DecodeRLE(zeroRun, -1); err == nil {
		t.Fatalf("expected zero-run error")
	}
}

func TestKinds_RoundTripAndValidation(t *testing.T) {
	in := []block.Kind{block.Stone, block.Stone, block.Dirt, block.Air, block.Grass}
	out, err := DecodeKinds(EncodeKinds(in), len(in))
	if err != nil {
		t.Fatalf("DecodeKinds: %v", err)
	}
	for i := range in {
		if out[i] != in[i] {
			t.Fatalf("mismatch at %d", i)
		}
	}
	if _, err := DecodeKinds(EncodeKinds(in), len(in)+1); err == nil {
		t.Fatalf("expected short-length error")
	}
	if _, err := DecodeKinds(EncodeRLE([]uint16{99}), 1); err == nil {
		t.Fatalf("expected unknown ordinal error")
	}
}

func TestDecodeKinds_HugeLimitIsAnError(t *testing.T) {
	// A header can claim far more cells than the payload holds.
	enc := EncodeRLE([]uint16{1})
	if _, err := DecodeKinds(enc, 100000*100000*16*64*16); err == nil {
		t.Fatalf("expected length mismatch error")
	}
	ids, err := DecodeRLE(enc, 1<<40)
	if err != nil || len(ids) != 1 {
		t.Fatalf("decode: ids=%v err=%v", ids, err)
	}
}
