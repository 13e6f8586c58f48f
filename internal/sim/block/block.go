package block

import "strings"

// Kind is a block material id. One small unsigned integer per voxel.
type Kind uint16

const (
	Air Kind = iota
	Stone
	Granite
	Diorite
	Andesite
	Grass
	Dirt

	// Count is a sentinel, not a concrete kind.
	Count
)

var names = [Count]string{
	Air:      "AIR",
	Stone:    "STONE",
	Granite:  "GRANITE",
	Diorite:  "DIORITE",
	Andesite: "ANDESITE",
	Grass:    "GRASS",
	Dirt:     "DIRT",
}

// Len returns the number of concrete kinds, Air included.
func Len() int {
	return int(Count)
}

// FromOrdinal never fails: unknown ordinals map to Air.
func FromOrdinal(v uint16) Kind {
	if v >= uint16(Count) {
		return Air
	}
	return Kind(v)
}

func (k Kind) Ordinal() uint16 {
	return uint16(k)
}

func (k Kind) Valid() bool {
	return k < Count
}

// Solid reports whether k produces geometry.
func (k Kind) Solid() bool {
	return k != Air && k < Count
}

func (k Kind) String() string {
	if !k.Valid() {
		return "UNKNOWN"
	}
	return names[k]
}

func Parse(name string) (Kind, bool) {
	name = strings.ToUpper(strings.TrimSpace(name))
	for i, n := range names {
		if n == name {
			return Kind(i), true
		}
	}
	return Air, false
}

// Palette lists kind names by ordinal.
func Palette() []string {
	out := make([]string, len(names))
	copy(out, names[:])
	return out
}
