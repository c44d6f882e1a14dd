// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package render

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// FloatImage is a linear RGBA float image with the memory layout of a
// device target: 4 float32 values per pixel, rows top to bottom.
//
// As an [image.Image] it presents gamma-encoded, clamped colors so that it
// can be handed directly to image/png or any other encoder.
type FloatImage struct {
	Pix    []float32
	Width  int
	Height int
}

var _ image.Image = (*FloatImage)(nil)

// NewFloatImage allocates a zero (transparent black) image.
func NewFloatImage(width, height int) *FloatImage {
	return &FloatImage{
		Pix:    make([]float32, width*height*4),
		Width:  width,
		Height: height,
	}
}

// FloatImageFromPixels wraps pix without copying.
func FloatImageFromPixels(width, height int, pix []float32) (*FloatImage, error) {
	if len(pix) != width*height*4 {
		return nil, fmt.Errorf("render: %d floats for a %dx%d image, want %d",
			len(pix), width, height, width*height*4)
	}
	return &FloatImage{Pix: pix, Width: width, Height: height}, nil
}

func (m *FloatImage) offset(x, y int) int { return (y*m.Width + x) * 4 }

// RGBA returns the linear color at (x, y).
func (m *FloatImage) RGBA(x, y int) mgl32.Vec4 {
	i := m.offset(x, y)
	return mgl32.Vec4{m.Pix[i], m.Pix[i+1], m.Pix[i+2], m.Pix[i+3]}
}

// SetRGBA sets the linear color at (x, y).
func (m *FloatImage) SetRGBA(x, y int, c mgl32.Vec4) {
	i := m.offset(x, y)
	copy(m.Pix[i:i+4], c[:])
}

// ColorModel implements image.Image.
func (m *FloatImage) ColorModel() color.Model { return color.RGBA64Model }

// Bounds implements image.Image.
func (m *FloatImage) Bounds() image.Rectangle {
	return image.Rect(0, 0, m.Width, m.Height)
}

// At implements image.Image. Colors are gamma encoded and clamped to [0,1];
// alpha is always opaque.
func (m *FloatImage) At(x, y int) color.Color {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return color.RGBA64{}
	}
	c := m.RGBA(x, y)
	return color.RGBA64{
		R: encode(c[0]),
		G: encode(c[1]),
		B: encode(c[2]),
		A: 0xffff,
	}
}

const displayGamma = 2.2

func encode(v float32) uint16 {
	if !(v > 0) {
		return 0
	}
	if v >= 1 {
		return 0xffff
	}
	g := math.Pow(float64(v), 1/displayGamma)
	return uint16(g*0xffff + 0.5)
}

// GradientSky returns an equirectangular sky of the given size that fades
// from horizon at the middle row to zenith at the top and bottom rows.
func GradientSky(width, height int, horizon, zenith mgl32.Vec3) *FloatImage {
	img := NewFloatImage(width, height)
	if height == 0 {
		return img
	}
	for y := range height {
		// Latitude in [0,1]: 0 at the horizon, 1 at the poles.
		lat := float32(math.Abs(float64(y)+0.5-float64(height)/2)) / (float32(height) / 2)
		c := horizon.Mul(1 - lat).Add(zenith.Mul(lat))
		for x := range width {
			img.SetRGBA(x, y, c.Vec4(1))
		}
	}
	return img
}
