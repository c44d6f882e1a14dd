package cache

import (
	"errors"
	"fmt"

	"github.com/gogpu/raytrace/gpucore"
)

// ErrStrideMismatch is returned by Ensure when the data length is not a
// whole number of records.
var ErrStrideMismatch = errors.New("cache: data length is not a multiple of stride")

// Stats counts device operations issued by a Buffers.
type Stats struct {
	Allocations int
	Uploads     int
	Releases    int
}

// Buffers manages the geometry buffers of one device.
type Buffers struct {
	dev   gpucore.Device
	slots [gpucore.BufferSlotCount]gpucore.BufferBinding
	stats Stats
}

// New creates an empty buffer set on dev.
func New(dev gpucore.Device) *Buffers {
	return &Buffers{dev: dev}
}

// Ensure makes the buffer in slot hold data, packed as records of stride
// bytes.
func (b *Buffers) Ensure(slot gpucore.BufferSlot, data []byte, stride int) error {
	if slot < 0 || slot >= gpucore.BufferSlotCount {
		panic(fmt.Sprintf("cache: invalid buffer slot %d", int(slot)))
	}
	if stride <= 0 || len(data)%stride != 0 {
		return fmt.Errorf("%w: %s: %d bytes, stride %d", ErrStrideMismatch, slot, len(data), stride)
	}
	count := len(data) / stride

	cur := &b.slots[slot]
	if cur.ID != gpucore.InvalidID && (cur.Count != count || cur.Stride != stride) {
		b.release(slot)
	}
	if count == 0 {
		return nil
	}

	if cur.ID == gpucore.InvalidID {
		id, err := b.dev.CreateBuffer(slot.String(), count, stride)
		if err != nil {
			return fmt.Errorf("cache: allocate %s: %w", slot, err)
		}
		*cur = gpucore.BufferBinding{ID: id, Count: count, Stride: stride}
		b.stats.Allocations++
		slogger().Debug("cache: buffer allocated",
			"slot", slot.String(), "count", count, "stride", stride)
	}

	if err := b.dev.WriteBuffer(cur.ID, data); err != nil {
		return fmt.Errorf("cache: upload %s: %w", slot, err)
	}
	b.stats.Uploads++
	return nil
}

func (b *Buffers) release(slot gpucore.BufferSlot) {
	cur := &b.slots[slot]
	if cur.ID == gpucore.InvalidID {
		return
	}
	b.dev.DestroyBuffer(cur.ID)
	slogger().Debug("cache: buffer released",
		"slot", slot.String(), "count", cur.Count, "stride", cur.Stride)
	*cur = gpucore.BufferBinding{}
	b.stats.Releases++
}

// Binding returns the current binding of slot. An unallocated slot returns
// the zero binding.
func (b *Buffers) Binding(slot gpucore.BufferSlot) gpucore.BufferBinding {
	return b.slots[slot]
}

// Bind copies every allocated slot into params. Unallocated slots are
// cleared so that they stay unbound.
func (b *Buffers) Bind(params *gpucore.KernelParams) {
	for slot := range gpucore.BufferSlotCount {
		params.Bind(slot, b.slots[slot])
	}
}

// Release frees every buffer.
func (b *Buffers) Release() {
	for slot := range gpucore.BufferSlotCount {
		b.release(slot)
	}
}

// Stats returns the operation counters.
func (b *Buffers) Stats() Stats { return b.stats }
