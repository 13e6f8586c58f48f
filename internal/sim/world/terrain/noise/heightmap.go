package noise

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"
)

// HeightmapConfig drives fractal (multi-octave) 2D noise.
type HeightmapConfig struct {
	Width       int     `yaml:"width"`
	Height      int     `yaml:"height"`
	Seed        uint64  `yaml:"seed"`
	Scale       float64 `yaml:"scale"`
	Octaves     int     `yaml:"octaves"`
	Persistence float64 `yaml:"persistence"`
	Lacunarity  float64 `yaml:"lacunarity"`
}

func DefaultHeightmapConfig() HeightmapConfig {
	return HeightmapConfig{
		Width:       160,
		Height:      160,
		Seed:        13,
		Scale:       27,
		Octaves:     4,
		Persistence: 0.5,
		Lacunarity:  2,
	}
}

func (c HeightmapConfig) Validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("heightmap: invalid size %dx%d", c.Width, c.Height)
	}
	if c.Scale <= 0 {
		return fmt.Errorf("heightmap: scale must be > 0")
	}
	if c.Octaves <= 0 {
		return fmt.Errorf("heightmap: octaves must be > 0")
	}
	return nil
}

// Heightmap samples fractal noise centred on the map and rescales the result
// to [0, 1]. The slice is row-major: i = x + y*Width.
func Heightmap(cfg HeightmapConfig) ([]float64, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	rng := NewRand(cfg.Seed)
	field := New(cfg.Seed)

	offsets := make([][2]float64, cfg.Octaves)
	for i := range offsets {
		offsets[i][0] = rng.Float64()*200000 - 100000
		offsets[i][1] = rng.Float64()*200000 - 100000
	}

	halfW := float64(cfg.Width) / 2
	halfH := float64(cfg.Height) / 2
	out := make([]float64, cfg.Width*cfg.Height)
	lo, hi := math.Inf(1), math.Inf(-1)
	for y := 0; y < cfg.Height; y++ {
		for x := 0; x < cfg.Width; x++ {
			amplitude, frequency, h := 1.0, 1.0, 0.0
			for o := 0; o < cfg.Octaves; o++ {
				sx := (float64(x)-halfW)/cfg.Scale*frequency + offsets[o][0]
				sy := (float64(y)-halfH)/cfg.Scale*frequency + offsets[o][1]
				h += field.Eval2(sx, sy) * amplitude
				amplitude *= cfg.Persistence
				frequency *= cfg.Lacunarity
			}
			lo = math.Min(lo, h)
			hi = math.Max(hi, h)
			out[x+y*cfg.Width] = h
		}
	}
	span := hi - lo
	for i, v := range out {
		if span == 0 {
			out[i] = 0
			continue
		}
		out[i] = (v - lo) / span
	}
	return out, nil
}

func HeightmapImage(cfg HeightmapConfig) (*image.Gray, error) {
	values, err := Heightmap(cfg)
	if err != nil {
		return nil, err
	}
	img := image.NewGray(image.Rect(0, 0, cfg.Width, cfg.Height))
	for y := 0; y < cfg.Height; y++ {
		for x := 0; x < cfg.Width; x++ {
			img.SetGray(x, y, color.Gray{Y: uint8(values[x+y*cfg.Width] * 255)})
		}
	}
	return img, nil
}

func WriteHeightmapPNG(w io.Writer, cfg HeightmapConfig) error {
	img, err := HeightmapImage(cfg)
	if err != nil {
		return err
	}
	return png.Encode(w, img)
}
