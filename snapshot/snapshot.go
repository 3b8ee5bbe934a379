// Package snapshot exports committed simulation snapshots as compressed
// JSON files. It is a consumer of the engine's read-only views: Capture
// copies everything it needs, so a written snapshot never aliases live
// buffers.
package snapshot

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"github.com/verdantlab/thicket/field"
	"github.com/verdantlab/thicket/plant"
)

// Version identifies the snapshot schema.
const Version = 1

type Header struct {
	Version int   `json:"version"`
	Tick    int32 `json:"tick"`
	Seed    int64 `json:"seed"`
}

type NodeV1 struct {
	ID       int32      `json:"id"`
	Kind     string     `json:"kind"`
	Parent   int32      `json:"parent"`
	Children []int32    `json:"children,omitempty"`
	Pos      [3]float64 `json:"pos"`
	Dir      [3]float64 `json:"dir"`
	Length   float64    `json:"length"`
	AgeTicks int32      `json:"age_ticks"`
	Reserve  float64    `json:"reserve"`
}

type SnapshotV1 struct {
	Header Header `json:"header"`

	Minted int      `json:"minted"`
	Nodes  []NodeV1 `json:"nodes"`

	FieldW int `json:"field_w"`
	FieldH int `json:"field_h"`
	FieldD int `json:"field_d"`

	// Flattened z-major cell data.
	Materials   []uint8   `json:"materials"`
	Sunlight    []float64 `json:"sunlight"`
	Moisture    []float64 `json:"moisture"`
	Temperature []float64 `json:"temperature"`
	Density     []float64 `json:"density"`
}

// Capture copies the committed views into a serializable snapshot.
func Capture(tick int32, seed int64, g *plant.Graph, f *field.Field) *SnapshotV1 {
	s := &SnapshotV1{
		Header: Header{Version: Version, Tick: tick, Seed: seed},
		Minted: g.Minted(),
		FieldW: f.W, FieldH: f.H, FieldD: f.D,
	}

	g.EachLive(func(n *plant.Node) {
		nv := NodeV1{
			ID:       int32(n.ID),
			Kind:     n.Kind.String(),
			Parent:   int32(n.Parent),
			Pos:      [3]float64{n.Pos.X, n.Pos.Y, n.Pos.Z},
			Dir:      [3]float64{n.Dir.X, n.Dir.Y, n.Dir.Z},
			Length:   n.Length,
			AgeTicks: n.AgeTicks,
			Reserve:  n.Reserve,
		}
		for _, c := range n.Children {
			nv.Children = append(nv.Children, int32(c))
		}
		s.Nodes = append(s.Nodes, nv)
	})

	cells := f.W * f.H * f.D
	s.Materials = make([]uint8, 0, cells)
	s.Sunlight = make([]float64, 0, cells)
	s.Moisture = make([]float64, 0, cells)
	s.Temperature = make([]float64, 0, cells)
	s.Density = make([]float64, 0, cells)
	for z := 0; z < f.D; z++ {
		for y := 0; y < f.H; y++ {
			for x := 0; x < f.W; x++ {
				c := f.At(field.Key{X: x, Y: y, Z: z})
				s.Materials = append(s.Materials, uint8(c.Material))
				s.Sunlight = append(s.Sunlight, c.Sunlight)
				s.Moisture = append(s.Moisture, c.Moisture)
				s.Temperature = append(s.Temperature, c.Temperature)
				s.Density = append(s.Density, c.Density)
			}
		}
	}

	return s
}

// Write stores a snapshot as zstd-compressed JSON at path, creating
// parent directories as needed.
func Write(path string, s *SnapshotV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating snapshot directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating snapshot file: %w", err)
	}

	bw := bufio.NewWriter(f)
	zw, err := zstd.NewWriter(bw)
	if err != nil {
		f.Close()
		return fmt.Errorf("creating zstd writer: %w", err)
	}
	if err := json.NewEncoder(zw).Encode(s); err != nil {
		zw.Close()
		f.Close()
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	if err := zw.Close(); err != nil {
		f.Close()
		return fmt.Errorf("closing zstd writer: %w", err)
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("flushing snapshot: %w", err)
	}
	return f.Close()
}

// Read loads a snapshot written by Write.
func Read(path string) (*SnapshotV1, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening snapshot file: %w", err)
	}
	defer f.Close()

	zr, err := zstd.NewReader(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("creating zstd reader: %w", err)
	}
	defer zr.Close()

	var s SnapshotV1
	if err := json.NewDecoder(zr).Decode(&s); err != nil {
		return nil, fmt.Errorf("decoding snapshot: %w", err)
	}
	if s.Header.Version != Version {
		return nil, fmt.Errorf("unsupported snapshot version %d", s.Header.Version)
	}
	return &s, nil
}
