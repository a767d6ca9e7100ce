package zarr

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// array reads raw values of one zarr array
type array struct {
	store   Store
	name    string
	meta    *arrayMeta
	dt      dtype
	fill    float64
	hasFill bool
}

func newArray(s Store, name string, m *arrayMeta) (*array, error) {
	if err := m.validate(name); err != nil {
		return nil, err
	}
	dt, err := parseDtype(m.Dtype)
	if err != nil {
		return nil, fmt.Errorf("array %s: %w", name, err)
	}
	fill, hasFill, err := m.fill()
	if err != nil {
		return nil, fmt.Errorf("array %s: %w", name, err)
	}
	return &array{store: s, name: name, meta: m, dt: dt, fill: dt.cast(fill), hasFill: hasFill}, nil
}

func (a *array) chunkKey(idx []int) string {
	sep := a.meta.Separator
	if sep == "" {
		sep = "."
	}
	parts := make([]string, len(idx))
	for i, c := range idx {
		parts[i] = strconv.Itoa(c)
	}
	if len(parts) == 0 {
		parts = []string{"0"}
	}
	return a.name + "/" + strings.Join(parts, sep)
}

// chunk returns the decoded values of the chunk at grid index idx. Chunks
// absent from the store are filled with the fill value.
func (a *array) chunk(ctx context.Context, idx []int) ([]float64, error) {
	n := 1
	for _, c := range a.meta.Chunks {
		n *= c
	}

	raw, err := a.store.Get(ctx, a.chunkKey(idx))
	if errors.Is(err, ErrNotFound) {
		out := make([]float64, n)
		v := math.NaN()
		if a.hasFill {
			v = a.fill
		}
		for i := range out {
			out[i] = v
		}
		return out, nil
	}
	if err != nil {
		return nil, err
	}

	raw, err = decompress(a.meta.Compressor, raw)
	if err != nil {
		return nil, fmt.Errorf("chunk %s: %w", a.chunkKey(idx), err)
	}
	vals, err := a.dt.decode(raw, n)
	if err != nil {
		return nil, fmt.Errorf("chunk %s: %w", a.chunkKey(idx), err)
	}
	return vals, nil
}

// read returns the C-ordered values of the box [lo, hi)
func (a *array) read(ctx context.Context, lo, hi []int) ([]float64, error) {
	nd := len(a.meta.Shape)
	if len(lo) != nd || len(hi) != nd {
		return nil, fmt.Errorf("array %s: region has %d dimensions, array %d", a.name, len(lo), nd)
	}
	size := 1
	outStride := make([]int, nd)
	for d := nd - 1; d >= 0; d-- {
		if lo[d] < 0 || hi[d] > a.meta.Shape[d] || lo[d] > hi[d] {
			return nil, fmt.Errorf("array %s: region [%d, %d) out of bounds in dimension %d (size %d)",
				a.name, lo[d], hi[d], d, a.meta.Shape[d])
		}
		outStride[d] = size
		size *= hi[d] - lo[d]
	}
	out := make([]float64, size)
	if size == 0 {
		return out, nil
	}

	chunks := a.meta.Chunks
	chunkStride := make([]int, nd)
	s := 1
	for d := nd - 1; d >= 0; d-- {
		chunkStride[d] = s
		s *= chunks[d]
	}

	// iterate over every chunk overlapping the region
	first := make([]int, nd)
	last := make([]int, nd)
	for d := 0; d < nd; d++ {
		first[d] = lo[d] / chunks[d]
		last[d] = (hi[d] - 1) / chunks[d]
	}
	idx := append([]int(nil), first...)
	for {
		vals, err := a.chunk(ctx, idx)
		if err != nil {
			return nil, err
		}
		a.copyChunk(out, outStride, vals, chunkStride, idx, lo, hi)

		d := nd - 1
		for ; d >= 0; d-- {
			idx[d]++
			if idx[d] <= last[d] {
				break
			}
			idx[d] = first[d]
		}
		if d < 0 {
			break
		}
	}
	return out, nil
}

// copyChunk copies the part of a chunk that falls inside [lo, hi) into out
func (a *array) copyChunk(out []float64, outStride []int, vals []float64, chunkStride []int, idx, lo, hi []int) {
	nd := len(idx)
	chunks := a.meta.Chunks

	// element box of this chunk clipped to the region
	from := make([]int, nd)
	to := make([]int, nd)
	for d := 0; d < nd; d++ {
		start := idx[d] * chunks[d]
		from[d] = max(start, lo[d])
		to[d] = min(start+chunks[d], hi[d])
	}

	pos := append([]int(nil), from...)
	for {
		src, dst := 0, 0
		for d := 0; d < nd; d++ {
			src += (pos[d] - idx[d]*chunks[d]) * chunkStride[d]
			dst += (pos[d] - lo[d]) * outStride[d]
		}
		out[dst] = vals[src]

		d := nd - 1
		for ; d >= 0; d-- {
			pos[d]++
			if pos[d] < to[d] {
				break
			}
			pos[d] = from[d]
		}
		if d < 0 {
			return
		}
	}
}

// readAll reads the whole array
func (a *array) readAll(ctx context.Context) ([]float64, error) {
	lo := make([]int, len(a.meta.Shape))
	return a.read(ctx, lo, a.meta.Shape)
}
