package zarr

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strconv"
	"sync"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
)

var (
	zstdOnce    sync.Once
	zstdDecoder *zstd.Decoder
	zstdErr     error
)

// zstdDecode uses one shared decoder; DecodeAll is safe for concurrent use
func zstdDecode(data []byte) ([]byte, error) {
	zstdOnce.Do(func() {
		zstdDecoder, zstdErr = zstd.NewReader(nil)
	})
	if zstdErr != nil {
		return nil, fmt.Errorf("zstd decoder: %w", zstdErr)
	}
	out, err := zstdDecoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd: %w", err)
	}
	return out, nil
}

func zlibDecode(data []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("zlib: %w", err)
	}
	defer r.Close()
	return io.ReadAll(r)
}

// decompress undoes the array's compressor. A nil compressor means raw chunks.
func decompress(c *codecConfig, data []byte) ([]byte, error) {
	if c == nil {
		return data, nil
	}
	switch c.ID {
	case "blosc":
		return bloscDecode(data)
	case "zstd":
		return zstdDecode(data)
	case "zlib":
		return zlibDecode(data)
	case "gzip":
		r, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
		defer r.Close()
		return io.ReadAll(r)
	}
	return nil, fmt.Errorf("compressor %q: %w", c.ID, ErrUnsupportedCodec)
}

// dtype is a parsed numpy type string such as "<f4"
type dtype struct {
	order binary.ByteOrder
	kind  byte
	size  int
}

func parseDtype(s string) (dtype, error) {
	if len(s) < 3 {
		return dtype{}, fmt.Errorf("%q: %w", s, ErrUnsupportedDtype)
	}
	size, err := strconv.Atoi(s[2:])
	if err != nil {
		return dtype{}, fmt.Errorf("%q: %w", s, ErrUnsupportedDtype)
	}
	d := dtype{kind: s[1], size: size}
	switch s[0] {
	case '<', '|':
		d.order = binary.LittleEndian
	case '>':
		d.order = binary.BigEndian
	default:
		return dtype{}, fmt.Errorf("%q: %w", s, ErrUnsupportedDtype)
	}

	ok := false
	switch d.kind {
	case 'f':
		ok = size == 4 || size == 8
	case 'i', 'u':
		ok = size == 1 || size == 2 || size == 4 || size == 8
	}
	if !ok {
		return dtype{}, fmt.Errorf("%q: %w", s, ErrUnsupportedDtype)
	}
	return d, nil
}

// decode converts n little- or big-endian elements to float64
func (d dtype) decode(raw []byte, n int) ([]float64, error) {
	if len(raw) != n*d.size {
		return nil, fmt.Errorf("chunk has %d bytes, expected %d", len(raw), n*d.size)
	}
	out := make([]float64, n)
	for i := range out {
		b := raw[i*d.size : (i+1)*d.size]
		switch d.kind {
		case 'f':
			if d.size == 4 {
				out[i] = float64(math.Float32frombits(d.order.Uint32(b)))
			} else {
				out[i] = math.Float64frombits(d.order.Uint64(b))
			}
		case 'i':
			out[i] = float64(d.signed(b))
		case 'u':
			out[i] = float64(d.unsigned(b))
		}
	}
	return out, nil
}

// cast rounds v to the storage type so that metadata markers compare equal
// to decoded values
func (d dtype) cast(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	switch {
	case d.kind == 'f' && d.size == 4:
		return float64(float32(v))
	case d.kind == 'i':
		switch d.size {
		case 1:
			return float64(int8(v))
		case 2:
			return float64(int16(v))
		case 4:
			return float64(int32(v))
		}
		return float64(int64(v))
	case d.kind == 'u':
		switch d.size {
		case 1:
			return float64(uint8(v))
		case 2:
			return float64(uint16(v))
		case 4:
			return float64(uint32(v))
		}
		return float64(uint64(v))
	}
	return v
}

func (d dtype) unsigned(b []byte) uint64 {
	switch d.size {
	case 1:
		return uint64(b[0])
	case 2:
		return uint64(d.order.Uint16(b))
	case 4:
		return uint64(d.order.Uint32(b))
	}
	return d.order.Uint64(b)
}

func (d dtype) signed(b []byte) int64 {
	switch d.size {
	case 1:
		return int64(int8(b[0]))
	case 2:
		return int64(int16(d.order.Uint16(b)))
	case 4:
		return int64(int32(d.order.Uint32(b)))
	}
	return int64(d.order.Uint64(b))
}
