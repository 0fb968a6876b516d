package webgpu

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/spaghettifunk/volumetric/engine/core"
)

const (
	UPLOAD_CHUNK_SIZE uint64 = 64 * 1024
	UPLOAD_ALIGNMENT  uint64 = 256
)

func alignUp(v, alignment uint64) uint64 {
	return (v + alignment - 1) / alignment * alignment
}

/**
 * @brief Staging memory for constant buffer updates. Queue writes land
 * before the whole command buffer runs, so each update gets its own region
 * and the encoder copies it into place at the point it was recorded.
 */
type uploadRing struct {
	sizes   []uint64
	chunks  []*wgpu.Buffer
	current int
	offset  uint64
}

// place finds room for size bytes. An index equal to len(sizes) asks for a
// new chunk of chunkSize bytes.
func (r *uploadRing) place(size uint64) (index int, offset uint64, chunkSize uint64) {
	for r.current < len(r.sizes) {
		off := alignUp(r.offset, UPLOAD_ALIGNMENT)
		if off+size <= r.sizes[r.current] {
			return r.current, off, r.sizes[r.current]
		}
		r.current++
		r.offset = 0
	}
	return len(r.sizes), 0, max(UPLOAD_CHUNK_SIZE, alignUp(size, UPLOAD_ALIGNMENT))
}

func (r *uploadRing) commit(index int, offset, size, chunkSize uint64) {
	if index == len(r.sizes) {
		r.sizes = append(r.sizes, chunkSize)
	}
	r.current = index
	r.offset = offset + size
}

func (r *uploadRing) stage(device *wgpu.Device, queue *wgpu.Queue, data []byte) (*wgpu.Buffer, uint64, error) {
	size := uint64(len(data))
	index, offset, chunkSize := r.place(size)
	if index == len(r.chunks) {
		chunk, err := device.CreateBuffer(&wgpu.BufferDescriptor{
			Label: fmt.Sprintf("upload_%d", index),
			Size:  chunkSize,
			Usage: wgpu.BufferUsageCopySrc | wgpu.BufferUsageCopyDst,
		})
		if err != nil {
			return nil, 0, fmt.Errorf("upload chunk: %v: %w", err, core.ErrResourceFailure)
		}
		r.chunks = append(r.chunks, chunk)
	}
	r.commit(index, offset, size, chunkSize)
	queue.WriteBuffer(r.chunks[index], offset, data)
	return r.chunks[index], offset, nil
}

// reset recycles every chunk. Queue ordering keeps earlier submissions reading the old data.
func (r *uploadRing) reset() {
	r.current = 0
	r.offset = 0
}

func (r *uploadRing) release() {
	for _, c := range r.chunks {
		c.Release()
	}
	r.chunks = nil
	r.sizes = nil
	r.reset()
}
