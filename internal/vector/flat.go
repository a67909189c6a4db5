package vector

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
)

// Flat index file format, little-endian: magic "UVIX", version (4), dimension
// (4), count (4), then count*dimension float32 values in append order.
const (
	flatMagic   = "UVIX"
	flatVersion = uint32(1)
)

// FlatIndex is an exact brute-force inner-product index. Vectors are stored
// row-major in a single contiguous slice; the row number is the only identity
// a vector has.
type FlatIndex struct {
	dimensions int
	data       []float32
	count      int
}

// NewFlatIndex creates an empty flat index with the given dimension.
func NewFlatIndex(dimensions int) (*FlatIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive, got %d", dimensions)
	}
	return &FlatIndex{dimensions: dimensions}, nil
}

// Add appends vectors in order. Every vector must match the index dimension.
func (f *FlatIndex) Add(vectors [][]float32) error {
	for _, vec := range vectors {
		if len(vec) != f.dimensions {
			return fmt.Errorf("vector dimension mismatch: got %d, expected %d", len(vec), f.dimensions)
		}
	}
	for _, vec := range vectors {
		f.data = append(f.data, vec...)
	}
	f.count += len(vectors)
	return nil
}

// Search returns the top-k rows by inner product, ordered by descending score.
// Fewer than k matches are returned when the index holds fewer vectors.
func (f *FlatIndex) Search(query []float32, k int) ([]Match, error) {
	if len(query) != f.dimensions {
		return nil, fmt.Errorf("query dimension mismatch: got %d, expected %d", len(query), f.dimensions)
	}
	if k <= 0 || f.count == 0 {
		return nil, nil
	}

	scores := make([]Match, f.count)
	for row := 0; row < f.count; row++ {
		base := row * f.dimensions
		dot := InnerProduct(query, f.data[base:base+f.dimensions])
		scores[row] = Match{Row: row, Score: float32(dot)}
	}
	sort.Slice(scores, func(i, j int) bool { return scores[i].Score > scores[j].Score })
	if k > len(scores) {
		k = len(scores)
	}
	return scores[:k], nil
}

// Save writes the index to path. The parent directory is created if needed.
func (f *FlatIndex) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create index file: %w", err)
	}
	defer file.Close()

	w := bufio.NewWriter(file)
	if _, err := w.WriteString(flatMagic); err != nil {
		return fmt.Errorf("write magic: %w", err)
	}
	for _, v := range []uint32{flatVersion, uint32(f.dimensions), uint32(f.count)} {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}
	buf := make([]byte, 4)
	for _, v := range f.data {
		binary.LittleEndian.PutUint32(buf, math.Float32bits(v))
		if _, err := w.Write(buf); err != nil {
			return fmt.Errorf("write vectors: %w", err)
		}
	}
	return w.Flush()
}

// LoadFlatIndex reads a flat index written by Save. The header is validated
// and trailing bytes are rejected.
func LoadFlatIndex(path string) (*FlatIndex, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open index file: %w", err)
	}
	defer file.Close()

	r := bufio.NewReader(file)
	magic := make([]byte, len(flatMagic))
	if _, err := io.ReadFull(r, magic); err != nil {
		return nil, fmt.Errorf("read magic: %w", err)
	}
	if string(magic) != flatMagic {
		return nil, fmt.Errorf("not a flat index file: bad magic %q", magic)
	}
	var version, dim, count uint32
	for _, p := range []*uint32{&version, &dim, &count} {
		if err := binary.Read(r, binary.LittleEndian, p); err != nil {
			return nil, fmt.Errorf("read header: %w", err)
		}
	}
	if version != flatVersion {
		return nil, fmt.Errorf("unsupported flat index version %d", version)
	}
	if dim == 0 {
		return nil, fmt.Errorf("flat index header has zero dimension")
	}

	data := make([]float32, int(dim)*int(count))
	raw := make([]byte, 4)
	for i := range data {
		if _, err := io.ReadFull(r, raw); err != nil {
			return nil, fmt.Errorf("read vectors: %w", err)
		}
		data[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw))
	}
	if _, err := r.ReadByte(); err != io.EOF {
		return nil, fmt.Errorf("flat index file has trailing data")
	}

	return &FlatIndex{
		dimensions: int(dim),
		data:       data,
		count:      int(count),
	}, nil
}

// Size returns the number of vectors in the index.
func (f *FlatIndex) Size() int {
	return f.count
}

// Dimensions returns the vector dimension.
func (f *FlatIndex) Dimensions() int {
	return f.dimensions
}

// Kind returns the index kind tag.
func (f *FlatIndex) Kind() string {
	return KindFlat
}

// Close is a no-op for FlatIndex.
func (f *FlatIndex) Close() error {
	return nil
}
