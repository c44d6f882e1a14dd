// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package render

import (
	"errors"
	"fmt"

	"github.com/gogpu/raytrace/gpucore"
)

// ErrNoTargets is returned by Composite before the first Ensure.
var ErrNoTargets = errors.New("render: targets not allocated")

// Targets owns the two accumulation images of a progressive renderer:
//
//   - Result: written by the kernel every frame (one noisy sample).
//   - Converged: persistent running mean of every Result since the last
//     reset.
//
// The sample counter is the number of frames folded into Converged.
type Targets struct {
	dev gpucore.Device

	result    gpucore.TargetID
	converged gpucore.TargetID
	width     int
	height    int

	sample uint32
}

// NewTargets creates an empty target pair on dev.
func NewTargets(dev gpucore.Device) *Targets {
	return &Targets{dev: dev}
}

// Ensure allocates both targets at width x height. Existing targets of the
// same size are kept. When anything is (re)allocated the sample counter is
// reset and Ensure reports true.
func (t *Targets) Ensure(width, height int) (bool, error) {
	if width <= 0 || height <= 0 {
		return false, fmt.Errorf("render: invalid target size %dx%d: %w", width, height, gpucore.ErrInvalidSize)
	}
	if t.result != gpucore.InvalidID && t.converged != gpucore.InvalidID &&
		t.width == width && t.height == height {
		return false, nil
	}

	t.Release()

	result, err := t.dev.CreateTarget("Result", width, height)
	if err != nil {
		return false, fmt.Errorf("render: create result target: %w", err)
	}
	converged, err := t.dev.CreateTarget("Converged", width, height)
	if err != nil {
		t.dev.DestroyTarget(result)
		return false, fmt.Errorf("render: create converged target: %w", err)
	}

	t.result, t.converged = result, converged
	t.width, t.height = width, height
	t.sample = 0

	slogger().Debug("render: targets allocated", "width", width, "height", height)
	return true, nil
}

// Composite folds Result into Converged with weight 1/(sample+1) and
// advances the sample counter by one.
func (t *Targets) Composite() error {
	if t.result == gpucore.InvalidID || t.converged == gpucore.InvalidID {
		return ErrNoTargets
	}
	if err := t.dev.Blend(t.result, t.converged, t.sample); err != nil {
		return fmt.Errorf("render: composite sample %d: %w", t.sample, err)
	}
	slogger().Debug("render: composited", "sample", t.sample, "weight", t.Weight())
	t.sample++
	return nil
}

// Weight returns the blend weight the next Composite will use.
func (t *Targets) Weight() float32 {
	return 1 / float32(t.sample+1)
}

// Reset restarts accumulation. The next Composite overwrites Converged.
func (t *Targets) Reset() {
	t.sample = 0
}

// Sample returns the number of frames accumulated since the last reset.
func (t *Targets) Sample() uint32 { return t.sample }

// Result returns the kernel output target.
func (t *Targets) Result() gpucore.TargetID { return t.result }

// Converged returns the accumulation target.
func (t *Targets) Converged() gpucore.TargetID { return t.converged }

// Size returns the current target dimensions, or zero before Ensure.
func (t *Targets) Size() (width, height int) { return t.width, t.height }

// Read reads back the converged image.
func (t *Targets) Read() (*FloatImage, error) {
	if t.converged == gpucore.InvalidID {
		return nil, ErrNoTargets
	}
	pix, err := t.dev.ReadTarget(t.converged)
	if err != nil {
		return nil, fmt.Errorf("render: read converged target: %w", err)
	}
	return FloatImageFromPixels(t.width, t.height, pix)
}

// Release destroys both targets.
func (t *Targets) Release() {
	if t.result != gpucore.InvalidID {
		t.dev.DestroyTarget(t.result)
	}
	if t.converged != gpucore.InvalidID {
		t.dev.DestroyTarget(t.converged)
	}
	t.result, t.converged = gpucore.InvalidID, gpucore.InvalidID
	t.width, t.height = 0, 0
}
