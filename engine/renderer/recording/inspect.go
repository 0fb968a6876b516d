package recording

import (
	"github.com/spaghettifunk/volumetric/engine/renderer/metadata"
)

// Commands returns the retained history, oldest first.
func (d *Device) Commands() []Command {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.history.Items()
}

// Count returns how many commands of type t were recorded since the last Reset, evicted ones included.
func (d *Device) Count(t CommandType) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.counts[t]
}

func (d *Device) Draws() []Draw {
	var out []Draw
	for _, c := range d.Commands() {
		if draw, ok := c.(Draw); ok {
			out = append(out, draw)
		}
	}
	return out
}

func (d *Device) Dispatches() []Dispatch {
	var out []Dispatch
	for _, c := range d.Commands() {
		if dispatch, ok := c.(Dispatch); ok {
			out = append(out, dispatch)
		}
	}
	return out
}

// Uploads returns the data of every UpdateBuffer on the named buffer.
func (d *Device) Uploads(buffer string) [][]byte {
	var out [][]byte
	for _, c := range d.Commands() {
		if u, ok := c.(UpdateBuffer); ok && u.Buffer == buffer {
			out = append(out, u.Data)
		}
	}
	return out
}

// Reset drops the history and counters. Live resources and bound state are kept.
func (d *Device) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.history.Clear()
	d.counts = [CMD_COUNT]int{}
}

func (d *Device) LiveTextures() []*metadata.Texture {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*metadata.Texture, 0, len(d.textures))
	for _, t := range d.textures {
		out = append(out, t)
	}
	return out
}

func (d *Device) LiveBuffers() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.buffers)
}

func (d *Device) Released() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.released
}
