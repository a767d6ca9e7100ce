package zarr

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/klauspost/compress/snappy"
	"github.com/pierrec/lz4/v4"
)

// Blosc frame layout: a 16 byte header, one offset per block, then each
// block as one or typesize length-prefixed streams.
const (
	bloscHeaderSize = 16
	bloscMaxSplits  = 16
	bloscMinBuffer  = 128

	bloscShuffle    = 0x01
	bloscMemcpyed   = 0x02
	bloscBitShuffle = 0x04
	bloscDontSplit  = 0x10
)

// compressor codes held in the top three flag bits
const (
	bloscLZ = iota
	bloscLZ4
	bloscSnappy
	bloscZlib
	bloscZstd
)

var errBloscCorrupt = errors.New("corrupt blosc frame")

type bloscHeader struct {
	flags     byte
	typesize  int
	nbytes    int
	blocksize int
	cbytes    int
}

func parseBloscHeader(src []byte) (bloscHeader, error) {
	if len(src) < bloscHeaderSize {
		return bloscHeader{}, fmt.Errorf("blosc: %d byte frame: %w", len(src), errBloscCorrupt)
	}
	h := bloscHeader{
		flags:     src[2],
		typesize:  int(src[3]),
		nbytes:    int(binary.LittleEndian.Uint32(src[4:])),
		blocksize: int(binary.LittleEndian.Uint32(src[8:])),
		cbytes:    int(binary.LittleEndian.Uint32(src[12:])),
	}
	if h.flags&(bloscShuffle|bloscBitShuffle) == bloscShuffle|bloscBitShuffle {
		return bloscHeader{}, fmt.Errorf("blosc2 extended header: %w", ErrUnsupportedCodec)
	}
	if h.typesize == 0 || h.cbytes > len(src) || h.cbytes < bloscHeaderSize {
		return bloscHeader{}, fmt.Errorf("blosc: typesize %d, %d of %d bytes: %w", h.typesize, len(src), h.cbytes, errBloscCorrupt)
	}
	return h, nil
}

// bloscDecode decompresses one blosc (version 1 format) frame
func bloscDecode(src []byte) ([]byte, error) {
	h, err := parseBloscHeader(src)
	if err != nil {
		return nil, err
	}
	src = src[:h.cbytes]
	out := make([]byte, h.nbytes)
	if h.nbytes == 0 {
		return out, nil
	}

	if h.flags&bloscMemcpyed != 0 {
		if len(src) < bloscHeaderSize+h.nbytes {
			return nil, fmt.Errorf("blosc: memcpy frame holds %d of %d bytes: %w", len(src)-bloscHeaderSize, h.nbytes, errBloscCorrupt)
		}
		copy(out, src[bloscHeaderSize:])
		return out, nil
	}

	if h.blocksize <= 0 {
		return nil, fmt.Errorf("blosc: block size %d: %w", h.blocksize, errBloscCorrupt)
	}
	nblocks := (h.nbytes + h.blocksize - 1) / h.blocksize
	if len(src) < bloscHeaderSize+4*nblocks {
		return nil, fmt.Errorf("blosc: %d block offsets: %w", nblocks, errBloscCorrupt)
	}

	tmp := make([]byte, h.blocksize)
	for j := 0; j < nblocks; j++ {
		bsize, leftover := h.blocksize, false
		if j == nblocks-1 && h.nbytes%h.blocksize != 0 {
			bsize, leftover = h.nbytes%h.blocksize, true
		}
		start := int(binary.LittleEndian.Uint32(src[bloscHeaderSize+4*j:]))
		dst := out[j*h.blocksize : j*h.blocksize+bsize]
		if err := h.block(src, start, leftover, dst, tmp[:bsize]); err != nil {
			return nil, fmt.Errorf("blosc block %d: %w", j, err)
		}
	}
	return out, nil
}

// block decodes the streams of one block into dst, going through tmp when
// the block has to be unshuffled
func (h bloscHeader) block(src []byte, pos int, leftover bool, dst, tmp []byte) error {
	bsize := len(dst)
	nsplits := 1
	if h.flags&bloscDontSplit == 0 && !leftover && h.typesize <= bloscMaxSplits && bsize/h.typesize >= bloscMinBuffer {
		nsplits = h.typesize
	}

	byteShuffled := h.flags&bloscShuffle != 0 && h.typesize > 1
	bitShuffled := h.flags&bloscBitShuffle != 0 && bsize >= h.typesize
	stage := dst
	if byteShuffled || bitShuffled {
		stage = tmp
	}

	neblock := bsize / nsplits
	for k := 0; k < nsplits; k++ {
		if pos < 0 || pos+4 > len(src) {
			return errBloscCorrupt
		}
		cb := int(int32(binary.LittleEndian.Uint32(src[pos:])))
		pos += 4
		if cb < 0 || pos+cb > len(src) {
			return errBloscCorrupt
		}
		part := stage[k*neblock : (k+1)*neblock]
		if cb == neblock {
			copy(part, src[pos:pos+cb])
		} else if err := h.stream(src[pos:pos+cb], part); err != nil {
			return err
		}
		pos += cb
	}

	switch {
	case byteShuffled:
		byteUnshuffle(dst, tmp, h.typesize)
	case bitShuffled:
		bitUnshuffle(dst, tmp, h.typesize)
	}
	return nil
}

// stream decompresses one stream, which must fill out exactly
func (h bloscHeader) stream(in, out []byte) error {
	var (
		dec []byte
		err error
	)
	switch code := int(h.flags>>5) & 0x7; code {
	case bloscLZ4:
		n, err := lz4.UncompressBlock(in, out)
		if err != nil {
			return fmt.Errorf("lz4: %w", err)
		}
		if n != len(out) {
			return fmt.Errorf("lz4: %d of %d bytes: %w", n, len(out), errBloscCorrupt)
		}
		return nil
	case bloscSnappy:
		dec, err = snappy.Decode(nil, in)
	case bloscZlib:
		dec, err = zlibDecode(in)
	case bloscZstd:
		dec, err = zstdDecode(in)
	case bloscLZ:
		return fmt.Errorf("blosc internal compressor blosclz: %w", ErrUnsupportedCodec)
	default:
		return fmt.Errorf("blosc compressor code %d: %w", code, ErrUnsupportedCodec)
	}
	if err != nil {
		return err
	}
	if len(dec) != len(out) {
		return fmt.Errorf("stream holds %d of %d bytes: %w", len(dec), len(out), errBloscCorrupt)
	}
	copy(out, dec)
	return nil
}

// byteUnshuffle regroups byte planes into elements; trailing bytes that do
// not form a whole element were stored as-is
func byteUnshuffle(dst, src []byte, typesize int) {
	n := len(src) / typesize
	for j := 0; j < typesize; j++ {
		plane := src[j*n : (j+1)*n]
		for i, b := range plane {
			dst[i*typesize+j] = b
		}
	}
	copy(dst[n*typesize:], src[n*typesize:])
}

// bitUnshuffle regroups bit planes, ordered by byte then bit within the
// element, into elements. Only a multiple of eight elements is shuffled.
func bitUnshuffle(dst, src []byte, typesize int) {
	n := len(src) / typesize
	n -= n % 8
	clear(dst[:n*typesize])
	rowBytes := n / 8
	for j := 0; j < typesize; j++ {
		for k := 0; k < 8; k++ {
			row := src[(j*8+k)*rowBytes : (j*8+k+1)*rowBytes]
			for i := 0; i < n; i++ {
				if row[i/8]>>(i%8)&1 != 0 {
					dst[i*typesize+j] |= 1 << k
				}
			}
		}
	}
	copy(dst[n*typesize:], src[n*typesize:])
}
