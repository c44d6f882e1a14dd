// Package cache keeps the scene geometry buffers resident on the device.
//
// [Buffers] owns one GPU buffer per [gpucore.BufferSlot]. On every
// [Buffers.Ensure] a slot is reallocated only when its record count or
// stride changes; otherwise the existing buffer keeps its identity and the
// new contents are uploaded into it. Empty data leaves the slot unbound.
//
//	count/stride unchanged -> upload into the same buffer
//	count/stride changed   -> release, allocate, upload
//	empty                  -> release, slot stays unbound
//
// Buffers is not safe for concurrent use.
package cache
