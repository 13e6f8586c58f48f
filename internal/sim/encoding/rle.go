package encoding

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"fmt"

	"voxelforge.ai/internal/sim/block"
)

// EncodeRLE encodes ordinals as base64 of uvarint (value, run) pairs.
func EncodeRLE(ids []uint16) string {
	var buf bytes.Buffer
	var tmp [binary.MaxVarintLen64]byte
	for i := 0; i < len(ids); {
		v := ids[i]
		run := 1
		for i+run < len(ids) && ids[i+run] == v {
			run++
		}
		n := binary.PutUvarint(tmp[:], uint64(v))
		buf.Write(tmp[:n])
		n = binary.PutUvarint(tmp[:], uint64(run))
		buf.Write(tmp[:n])
		i += run
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

const maxPrealloc = 1 << 16

// DecodeRLE decodes at most limit values; limit < 0 disables the check.
func DecodeRLE(b64 string, limit int) ([]uint16, error) {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, err
	}
	var out []uint16
	if limit > 0 {
		// limit may come from an untrusted header; grow past this by append.
		out = make([]uint16, 0, min(limit, maxPrealloc))
	}
	for i := 0; i < len(raw); {
		v, n := binary.Uvarint(raw[i:])
		if n <= 0 {
			return nil, fmt.Errorf("bad varint at %d", i)
		}
		i += n
		run, n := binary.Uvarint(raw[i:])
		if n <= 0 {
			return nil, fmt.Errorf("bad varint at %d", i)
		}
		i += n
		if v > 0xFFFF {
			return nil, fmt.Errorf("value too large: %d", v)
		}
		if run == 0 {
			return nil, fmt.Errorf("zero-length run at %d", i)
		}
		if limit >= 0 && uint64(len(out))+run > uint64(limit) {
			return nil, fmt.Errorf("decoded length exceeds %d", limit)
		}
		for k := uint64(0); k < run; k++ {
			out = append(out, uint16(v))
		}
	}
	return out, nil
}

// EncodeKinds is EncodeRLE over block ordinals.
func EncodeKinds(kinds []block.Kind) string {
	ids := make([]uint16, len(kinds))
	for i, k := range kinds {
		ids[i] = k.Ordinal()
	}
	return EncodeRLE(ids)
}

// DecodeKinds requires exactly want cells, all known kinds.
func DecodeKinds(b64 string, want int) ([]block.Kind, error) {
	ids, err := DecodeRLE(b64, want)
	if err != nil {
		return nil, err
	}
	if len(ids) != want {
		return nil, fmt.Errorf("decoded %d cells, want %d", len(ids), want)
	}
	out := make([]block.Kind, len(ids))
	for i, v := range ids {
		if v >= uint16(block.Count) {
			return nil, fmt.Errorf("unknown block ordinal %d at %d", v, i)
		}
		out[i] = block.Kind(v)
	}
	return out, nil
}
