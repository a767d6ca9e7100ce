package zarr

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chrissnell/dsvalidate/pkg/cftime"
	"github.com/chrissnell/dsvalidate/pkg/grid"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
)

// testArray is an in-memory array written to disk by writeStore
type testArray struct {
	name       string
	dims       []string
	shape      []int
	chunks     []int
	dtype      string
	compressor string
	fill       any
	attrs      map[string]any
	values     []float64
}

func encode(t *testing.T, dt string, vals []float64) []byte {
	t.Helper()
	var buf bytes.Buffer
	for _, v := range vals {
		var err error
		switch dt {
		case "<f8":
			err = binary.Write(&buf, binary.LittleEndian, v)
		case ">f4":
			err = binary.Write(&buf, binary.BigEndian, float32(v))
		case "<i2":
			err = binary.Write(&buf, binary.LittleEndian, int16(v))
		case "<i8":
			err = binary.Write(&buf, binary.LittleEndian, int64(v))
		default:
			t.Fatalf("test encoder has no dtype %s", dt)
		}
		if err != nil {
			t.Fatal(err)
		}
	}
	return buf.Bytes()
}

func compress(t *testing.T, id string, raw []byte) []byte {
	t.Helper()
	switch id {
	case "":
		return raw
	case "zstd":
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			t.Fatal(err)
		}
		defer enc.Close()
		return enc.EncodeAll(raw, nil)
	case "blosc":
		// the compressed test arrays are all four byte floats
		return bloscEncode(t, raw, 4, len(raw), bloscShuffle, bloscLZ4)
	case "zlib":
		var buf bytes.Buffer
		w := zlib.NewWriter(&buf)
		if _, err := w.Write(raw); err != nil {
			t.Fatal(err)
		}
		if err := w.Close(); err != nil {
			t.Fatal(err)
		}
		return buf.Bytes()
	}
	// codecs the reader does not support are stored as-is
	return raw
}

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

// writeStore lays the arrays out as a zarr v2 directory. With consolidate,
// a .zmetadata document is written as well.
func writeStore(t *testing.T, consolidate bool, arrays ...testArray) string {
	t.Helper()
	root := t.TempDir()
	writeFile(t, filepath.Join(root, groupKey), []byte(`{"zarr_format": 2}`))
	meta := map[string]any{".zgroup": map[string]any{"zarr_format": 2}}

	for _, a := range arrays {
		var comp any
		if a.compressor != "" {
			comp = map[string]any{"id": a.compressor, "level": 1}
		}
		zarray := map[string]any{
			"zarr_format": 2,
			"shape":       a.shape,
			"chunks":      a.chunks,
			"dtype":       a.dtype,
			"compressor":  comp,
			"fill_value":  a.fill,
			"order":       "C",
			"filters":     nil,
		}
		attrs := map[string]any{dimsAttr: a.dims}
		for k, v := range a.attrs {
			attrs[k] = v
		}
		writeFile(t, filepath.Join(root, a.name, arrayKey), mustJSON(t, zarray))
		writeFile(t, filepath.Join(root, a.name, attrsKey), mustJSON(t, attrs))
		meta[a.name+"/"+arrayKey] = zarray
		meta[a.name+"/"+attrsKey] = attrs

		writeChunks(t, root, a)
	}

	if consolidate {
		writeFile(t, filepath.Join(root, consolidatedKey), mustJSON(t, map[string]any{
			"metadata":                 meta,
			"zarr_consolidated_format": 1,
		}))
	}
	return root
}

// writeChunks splits the array values into chunks. NaN-only chunks are
// skipped so the reader has to synthesize them.
func writeChunks(t *testing.T, root string, a testArray) {
	t.Helper()
	nd := len(a.shape)
	nchunks := make([]int, nd)
	for d := range nchunks {
		nchunks[d] = (a.shape[d] + a.chunks[d] - 1) / a.chunks[d]
	}
	arr := &array{meta: &arrayMeta{Shape: a.shape, Chunks: a.chunks}, name: a.name}

	idx := make([]int, nd)
	for {
		n := 1
		for _, c := range a.chunks {
			n *= c
		}
		vals := make([]float64, n)
		allNaN := true
		// walk every element of the chunk in C order
		pos := make([]int, nd)
		for k := 0; k < n; k++ {
			rem := k
			for d := nd - 1; d >= 0; d-- {
				pos[d] = rem % a.chunks[d]
				rem /= a.chunks[d]
			}
			flat, inside := 0, true
			for d := 0; d < nd; d++ {
				g := idx[d]*a.chunks[d] + pos[d]
				if g >= a.shape[d] {
					inside = false
					break
				}
				flat = flat*a.shape[d] + g
			}
			if inside {
				vals[k] = a.values[flat]
			}
			if !math.IsNaN(vals[k]) {
				allNaN = false
			}
		}
		if !allNaN {
			raw := compress(t, a.compressor, encode(t, a.dtype, vals))
			writeFile(t, filepath.Join(root, filepath.FromSlash(arr.chunkKey(idx))), raw)
		}

		d := nd - 1
		for ; d >= 0; d-- {
			idx[d]++
			if idx[d] < nchunks[d] {
				break
			}
			idx[d] = 0
		}
		if d < 0 {
			return
		}
	}
}

// climateArrays is a 4-day noleap tasmax cube on a 2x3 grid, value
// 100*step + cell, plus its coordinates
func climateArrays(compressor string) []testArray {
	const steps, cells = 4, 6
	tas := make([]float64, steps*cells)
	for i := range tas {
		tas[i] = float64(100*(i/cells) + i%cells)
	}
	return []testArray{
		{name: "time", dims: []string{"time"}, shape: []int{steps}, chunks: []int{steps}, dtype: "<i8",
			attrs:  map[string]any{"units": "days since 2000-02-27", "calendar": "noleap"},
			values: []float64{0, 1, 2, 3}},
		{name: "lat", dims: []string{"lat"}, shape: []int{2}, chunks: []int{2}, dtype: "<f8", fill: "NaN",
			values: []float64{-45, 45}},
		{name: "lon", dims: []string{"lon"}, shape: []int{3}, chunks: []int{3}, dtype: "<f8", fill: "NaN",
			values: []float64{0, 120, 240}},
		{name: "tasmax", dims: []string{"time", "lat", "lon"}, shape: []int{steps, 2, 3}, chunks: []int{3, 1, 2},
			dtype: ">f4", compressor: compressor, fill: "NaN",
			attrs: map[string]any{"units": "K"}, values: tas},
	}
}

func TestOpenAndRead(t *testing.T) {
	for _, tt := range []struct {
		name        string
		consolidate bool
		compressor  string
	}{
		{"consolidated zstd", true, "zstd"},
		{"unconsolidated zlib", false, "zlib"},
		{"raw chunks", true, ""},
		{"blosc lz4 shuffled", false, "blosc"},
	} {
		t.Run(tt.name, func(t *testing.T) {
			root := writeStore(t, tt.consolidate, climateArrays(tt.compressor)...)
			s, err := OpenDir(root)
			if err != nil {
				t.Fatal(err)
			}
			ds, err := Open(context.Background(), s, "bc")
			if err != nil {
				t.Fatalf("Open: %v", err)
			}
			if names := ds.Names(); len(names) != 1 || names[0] != "tasmax" {
				t.Fatalf("expected only the tasmax data variable, got %v", names)
			}

			v, err := ds.Variable("tasmax")
			if err != nil {
				t.Fatal(err)
			}
			meta := v.Info()
			if meta.Calendar != cftime.NoLeap || meta.Units != "K" {
				t.Errorf("unexpected metadata %+v", meta)
			}
			// noleap: Feb 28 is followed by Mar 1
			if !meta.Time[2].Equal(cftime.NewDate(2000, 3, 1)) {
				t.Errorf("time[2] = %v, expected 2000-03-01", meta.Time[2])
			}

			f, err := v.Read(context.Background(), 1, 4)
			if err != nil {
				t.Fatalf("Read: %v", err)
			}
			if len(f.Time) != 3 || len(f.Data) != 18 {
				t.Fatalf("expected 3 steps of 6 cells, got %d values", len(f.Data))
			}
			for s := 0; s < 3; s++ {
				for c := 0; c < 6; c++ {
					want := float64(100*(s+1) + c)
					if got := f.Data[s*6+c]; got != want {
						t.Errorf("step %d cell %d: expected %v, got %v", s+1, c, want, got)
					}
				}
			}
		})
	}
}

func TestSelectFromStore(t *testing.T) {
	root := writeStore(t, true, climateArrays("zstd")...)
	s, err := OpenDir(root)
	if err != nil {
		t.Fatal(err)
	}
	ds, err := Open(context.Background(), s, "bc")
	if err != nil {
		t.Fatal(err)
	}
	v, _ := ds.Variable("tasmax")

	f, err := grid.Select(context.Background(), v, "2000-02-28", "2000-03")
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if len(f.Time) != 3 || f.At(0, 0, 0) != 100 {
		t.Errorf("expected steps 1..3 starting at 100, got %d steps starting at %v", len(f.Time), f.At(0, 0, 0))
	}
}

func TestCFDecoding(t *testing.T) {
	arrays := climateArrays("")
	// packed int16: 0.5*raw + 200, -999 missing
	arrays = append(arrays, testArray{
		name: "pr", dims: []string{"lat", "lon"}, shape: []int{2, 3}, chunks: []int{2, 3},
		dtype: "<i2", fill: -999,
		attrs:  map[string]any{"scale_factor": 0.5, "add_offset": 200.0, "missing_value": 7},
		values: []float64{0, 2, -999, 4, 7, 10},
	})
	root := writeStore(t, false, arrays...)
	s, _ := OpenDir(root)
	ds, err := Open(context.Background(), s, "bc")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	v, err := ds.Variable("pr")
	if err != nil {
		t.Fatal(err)
	}
	if v.Info().HasTime() {
		t.Fatal("pr has no time dimension")
	}
	f, err := grid.Load(context.Background(), v)
	if err != nil {
		t.Fatal(err)
	}

	want := []float64{200, 201, math.NaN(), 202, math.NaN(), 205}
	for i, w := range want {
		got := f.Data[i]
		if math.IsNaN(w) != math.IsNaN(got) || (!math.IsNaN(w) && got != w) {
			t.Errorf("value %d: expected %v, got %v", i, w, got)
		}
	}
}

func TestFloat32FillValue(t *testing.T) {
	nan := math.NaN()
	arrays := append(climateArrays(""), testArray{
		// CMIP6 style float32 1e20 marker; the second row's chunk is absent
		name: "tos", dims: []string{"lat", "lon"}, shape: []int{2, 3}, chunks: []int{1, 3},
		dtype: ">f4", fill: 1e20,
		attrs:  map[string]any{"_FillValue": 1e20, "missing_value": 1e20},
		values: []float64{290, 1e20, 291, nan, nan, nan},
	})
	root := writeStore(t, true, arrays...)
	s, _ := OpenDir(root)
	ds, err := Open(context.Background(), s, "cmip6")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	v, err := ds.Variable("tos")
	if err != nil {
		t.Fatal(err)
	}
	f, err := grid.Load(context.Background(), v)
	if err != nil {
		t.Fatal(err)
	}

	want := []float64{290, nan, 291, nan, nan, nan}
	for i, w := range want {
		got := f.Data[i]
		if math.IsNaN(w) != math.IsNaN(got) || (!math.IsNaN(w) && got != w) {
			t.Errorf("cell %d: expected %v, got %v", i, w, got)
		}
	}
}

func TestCastToStorageType(t *testing.T) {
	tests := []struct {
		dtype string
		in    float64
		want  float64
	}{
		{">f4", 1e20, float64(float32(1e20))},
		{"<f8", 1e20, 1e20},
		{"<i2", -999.7, -999},
		{"|u1", 255, 255},
		{"<f4", math.Inf(1), math.Inf(1)},
	}
	for _, tt := range tests {
		d, err := parseDtype(tt.dtype)
		if err != nil {
			t.Fatal(err)
		}
		if got := d.cast(tt.in); got != tt.want {
			t.Errorf("%s cast(%v) = %v, expected %v", tt.dtype, tt.in, got, tt.want)
		}
	}
}

func TestMissingChunkIsNaN(t *testing.T) {
	arrays := climateArrays("zstd")
	tas := arrays[3].values
	// the whole first chunk (steps 0-2, lat 0, lon 0-1) is missing
	for s := 0; s < 3; s++ {
		tas[s*6], tas[s*6+1] = math.NaN(), math.NaN()
	}
	root := writeStore(t, true, arrays...)
	if _, err := os.Stat(filepath.Join(root, "tasmax", "0.0.0")); !os.IsNotExist(err) {
		t.Fatal("test store should not contain chunk 0.0.0")
	}

	s, _ := OpenDir(root)
	ds, err := Open(context.Background(), s, "bc")
	if err != nil {
		t.Fatal(err)
	}
	v, _ := ds.Variable("tasmax")
	f, err := grid.Load(context.Background(), v)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !math.IsNaN(f.At(0, 0, 0)) || !math.IsNaN(f.At(2, 0, 1)) {
		t.Error("cells of the missing chunk should be NaN")
	}
	if f.At(0, 0, 2) != 2 || f.At(3, 0, 0) != 300 {
		t.Errorf("neighbouring chunks misread: %v, %v", f.At(0, 0, 2), f.At(3, 0, 0))
	}
}

func TestUnsupportedCodec(t *testing.T) {
	root := writeStore(t, true, climateArrays("bz2")...)
	s, _ := OpenDir(root)
	ds, err := Open(context.Background(), s, "bc")
	if err != nil {
		t.Fatalf("metadata should open: %v", err)
	}
	v, _ := ds.Variable("tasmax")
	_, err = grid.Load(context.Background(), v)
	if !errors.Is(err, ErrUnsupportedCodec) {
		t.Fatalf("expected ErrUnsupportedCodec, got %v", err)
	}
	if !strings.Contains(err.Error(), "bz2") {
		t.Errorf("error should name the codec: %v", err)
	}
}

func TestParseDtype(t *testing.T) {
	for _, s := range []string{"<f4", "<f8", "<i2", "<i4", "<i8", ">f4", ">f8", "|u1", "|i1"} {
		if _, err := parseDtype(s); err != nil {
			t.Errorf("parseDtype(%s): %v", s, err)
		}
	}
	for _, s := range []string{"<c8", "<f2", "S10", "<U4", "f"} {
		if _, err := parseDtype(s); !errors.Is(err, ErrUnsupportedDtype) {
			t.Errorf("parseDtype(%s): expected ErrUnsupportedDtype, got %v", s, err)
		}
	}
}

func TestSplitURL(t *testing.T) {
	tests := []struct {
		url, bucket, prefix string
		fail                bool
	}{
		{url: "gs://impactlab-data/clean/tasmax.zarr", bucket: "impactlab-data", prefix: "clean/tasmax.zarr"},
		{url: "impactlab-data/clean/tasmax.zarr/", bucket: "impactlab-data", prefix: "clean/tasmax.zarr"},
		{url: "gs://bucket", bucket: "bucket"},
		{url: "gs://", fail: true},
	}
	for _, tt := range tests {
		b, p, err := splitURL(tt.url)
		if tt.fail {
			if err == nil {
				t.Errorf("splitURL(%q): expected error", tt.url)
			}
			continue
		}
		if err != nil || b != tt.bucket || p != tt.prefix {
			t.Errorf("splitURL(%q) = %q, %q, %v", tt.url, b, p, err)
		}
	}
}

func TestCheckRoot(t *testing.T) {
	root := writeStore(t, false, climateArrays("")...)
	s, _ := OpenDir(root)
	if err := checkRoot(context.Background(), s); err != nil {
		t.Errorf("store with .zgroup: %v", err)
	}

	empty, _ := OpenDir(t.TempDir())
	if err := checkRoot(context.Background(), empty); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for an empty directory, got %v", err)
	}
}
