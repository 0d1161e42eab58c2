package domain

import "fmt"

const (
	DefaultWatermarkX      = 40
	DefaultWatermarkWidth  = 200
	DefaultWatermarkHeight = 27
)

// WatermarkPlacement is the overlay rectangle in device-independent units,
// as passed to the engine.
type WatermarkPlacement struct {
	X      float64 `mapstructure:"x" json:"x"`
	Y      float64 `mapstructure:"y" json:"y"`
	Width  float64 `mapstructure:"width" json:"width"`
	Height float64 `mapstructure:"height" json:"height"`
}

// DefaultPlacement anchors the overlay to the vertical center of a viewport of
// the given height, 40 units from the leading edge.
func DefaultPlacement(viewportHeight float64) WatermarkPlacement {
	return WatermarkPlacement{
		X:      DefaultWatermarkX,
		Y:      viewportHeight / 2,
		Width:  DefaultWatermarkWidth,
		Height: DefaultWatermarkHeight,
	}
}

func (p WatermarkPlacement) Validate() error {
	if p.Width <= 0 || p.Height <= 0 {
		return fmt.Errorf("watermark placement %vx%v: size must be positive", p.Width, p.Height)
	}
	if p.X < 0 || p.Y < 0 {
		return fmt.Errorf("watermark placement (%v,%v): offset must not be negative", p.X, p.Y)
	}
	return nil
}
