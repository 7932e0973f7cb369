package bih

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"io"
	"math"
	"os"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/utils"

	"go.viam.com/spatialindex/spatialmath"
)

// Serialized layout, all fields little-endian:
//
//	bounds      6 x float64   low x,y,z then high x,y,z
//	nodeCount   uint32
//	nodes       nodeCount x { header uint32, a uint64, b uint64 }
//	objectCount uint32
//	objects     objectCount x uint32
//
// header packs kind<<30 | emptySpace<<29 | offset. For internal nodes a and b hold the float64 bits
// of ClipLow and ClipHigh; for leaves a holds the object count and b is zero.
const (
	boundsSize = 6 * 8
	countSize  = 4
	nodeSize   = 4 + 8 + 8
	objectSize = 4

	kindShift  = 30
	emptyBit   = 1 << 29
	offsetMask = emptyBit - 1

	// readChunk caps preallocation so a corrupt count cannot force a huge allocation before the
	// short read is detected.
	readChunk = 4096
)

func encodeHeader(n Node) uint32 {
	h := uint32(n.Kind)<<kindShift | (n.Offset & offsetMask)
	if n.EmptySpace {
		h |= emptyBit
	}
	return h
}

func decodeHeader(h uint32) (NodeKind, bool, uint32) {
	return NodeKind(h >> kindShift), h&emptyBit != 0, h & offsetMask
}

// MarshalBinary encodes the tree in the serialized layout.
func (t *Tree) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	if _, err := t.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary replaces the tree with the one encoded in data. Trailing bytes are an error.
func (t *Tree) UnmarshalBinary(data []byte) error {
	r := bytes.NewReader(data)
	if _, err := t.ReadFrom(r); err != nil {
		return err
	}
	if r.Len() != 0 {
		return errors.Wrapf(ErrCorruptTree, "%d trailing bytes", r.Len())
	}
	return nil
}

// WriteTo writes the tree to w in the serialized layout.
func (t *Tree) WriteTo(w io.Writer) (int64, error) {
	nodes := t.nodes
	if len(nodes) == 0 {
		nodes = []Node{{Kind: NodeLeaf}}
	}
	if len(nodes) > maxOffset || len(t.objects) > maxOffset {
		return 0, errors.Errorf("tree too large to serialize: %d nodes, %d objects", len(nodes), len(t.objects))
	}

	bw := bufio.NewWriter(w)
	cw := &countingWriter{w: bw}
	buf := make([]byte, 0, boundsSize)
	for _, v := range []float64{
		t.bounds.Low.X, t.bounds.Low.Y, t.bounds.Low.Z,
		t.bounds.High.X, t.bounds.High.Y, t.bounds.High.Z,
	} {
		buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(v))
	}
	cw.Write(buf)

	cw.Write(binary.LittleEndian.AppendUint32(nil, uint32(len(nodes))))
	rec := make([]byte, 0, nodeSize)
	for _, n := range nodes {
		rec = rec[:0]
		rec = binary.LittleEndian.AppendUint32(rec, encodeHeader(n))
		if n.IsLeaf() {
			rec = binary.LittleEndian.AppendUint64(rec, uint64(n.Count))
			rec = binary.LittleEndian.AppendUint64(rec, 0)
		} else {
			rec = binary.LittleEndian.AppendUint64(rec, math.Float64bits(n.ClipLow))
			rec = binary.LittleEndian.AppendUint64(rec, math.Float64bits(n.ClipHigh))
		}
		cw.Write(rec)
	}

	cw.Write(binary.LittleEndian.AppendUint32(nil, uint32(len(t.objects))))
	obj := make([]byte, objectSize)
	for _, id := range t.objects {
		binary.LittleEndian.PutUint32(obj, id)
		cw.Write(obj)
	}

	if cw.err != nil {
		return cw.n, cw.err
	}
	return cw.n, bw.Flush()
}

// ReadFrom replaces the tree with one read from r. Short reads and structurally unsound trees return
// an error wrapping ErrCorruptTree and leave the receiver unchanged.
func (t *Tree) ReadFrom(r io.Reader) (int64, error) {
	cr := &countingReader{r: r}
	loaded, err := readTree(cr)
	if err != nil {
		return cr.n, err
	}
	*t = *loaded
	return cr.n, nil
}

func readTree(r io.Reader) (*Tree, error) {
	var bb [boundsSize]byte
	if _, err := io.ReadFull(r, bb[:]); err != nil {
		return nil, errors.Wrapf(ErrCorruptTree, "reading bounds: %v", err)
	}
	f := func(i int) float64 {
		return math.Float64frombits(binary.LittleEndian.Uint64(bb[i*8:]))
	}
	bounds := spatialmath.AABB{
		Low:  r3.Vector{X: f(0), Y: f(1), Z: f(2)},
		High: r3.Vector{X: f(3), Y: f(4), Z: f(5)},
	}

	nodeCount, err := readCount(r, "node")
	if err != nil {
		return nil, err
	}
	if nodeCount == 0 {
		return nil, errors.Wrap(ErrCorruptTree, "tree has no root node")
	}
	nodes := make([]Node, 0, min(nodeCount, readChunk))
	var rec [nodeSize]byte
	for i := 0; i < nodeCount; i++ {
		if _, err := io.ReadFull(r, rec[:]); err != nil {
			return nil, errors.Wrapf(ErrCorruptTree, "reading node %d of %d: %v", i, nodeCount, err)
		}
		kind, empty, offset := decodeHeader(binary.LittleEndian.Uint32(rec[0:]))
		a := binary.LittleEndian.Uint64(rec[4:])
		b := binary.LittleEndian.Uint64(rec[12:])
		n := Node{Kind: kind, EmptySpace: empty, Offset: offset}
		if kind == NodeLeaf {
			if empty || a > maxOffset || b != 0 {
				return nil, errors.Wrapf(ErrCorruptTree, "malformed leaf node %d", i)
			}
			n.Count = uint32(a)
		} else {
			n.ClipLow = math.Float64frombits(a)
			n.ClipHigh = math.Float64frombits(b)
		}
		nodes = append(nodes, n)
	}

	objectCount, err := readCount(r, "object")
	if err != nil {
		return nil, err
	}
	objects := make([]uint32, 0, min(objectCount, readChunk))
	var ob [objectSize]byte
	for i := 0; i < objectCount; i++ {
		if _, err := io.ReadFull(r, ob[:]); err != nil {
			return nil, errors.Wrapf(ErrCorruptTree, "reading object %d of %d: %v", i, objectCount, err)
		}
		objects = append(objects, binary.LittleEndian.Uint32(ob[:]))
	}

	t := &Tree{nodes: nodes, objects: objects, bounds: bounds}
	if err := t.validate(); err != nil {
		return nil, err
	}
	return t, nil
}

func readCount(r io.Reader, what string) (int, error) {
	var cb [countSize]byte
	if _, err := io.ReadFull(r, cb[:]); err != nil {
		return 0, errors.Wrapf(ErrCorruptTree, "reading %s count: %v", what, err)
	}
	c := binary.LittleEndian.Uint32(cb[:])
	if c > maxOffset {
		return 0, errors.Wrapf(ErrCorruptTree, "%s count %d exceeds %d", what, c, maxOffset)
	}
	return int(c), nil
}

// validate checks that every reachable node references in-range children and objects and that the
// tree is no deeper than MaxDepth.
func (t *Tree) validate() error {
	if len(t.objects) > 0 {
		if err := t.bounds.Validate(); err != nil {
			return errors.Wrapf(ErrCorruptTree, "bounds: %v", err)
		}
	}
	for i, n := range t.nodes {
		switch {
		case n.IsLeaf():
			if uint64(n.Offset)+uint64(n.Count) > uint64(len(t.objects)) {
				return errors.Wrapf(ErrCorruptTree, "leaf %d references objects [%d, %d) of %d",
					i, n.Offset, n.Offset+n.Count, len(t.objects))
			}
		case n.EmptySpace:
			if int(n.Offset) >= len(t.nodes) {
				return errors.Wrapf(ErrCorruptTree, "empty-space node %d child %d out of range", i, n.Offset)
			}
		}
	}
	var childErr error
	if err := t.walk(func(n Node, depth int) {
		if n.IsLeaf() || n.EmptySpace || childErr != nil {
			return
		}
		if !math.IsInf(n.ClipLow, -1) && int(n.Offset) >= len(t.nodes) {
			childErr = errors.Errorf("low child %d out of range", n.Offset)
		}
		if !math.IsInf(n.ClipHigh, 1) && int(n.Offset)+1 >= len(t.nodes) {
			childErr = errors.Errorf("high child %d out of range", n.Offset+1)
		}
	}); err != nil {
		return errors.Wrap(ErrCorruptTree, err.Error())
	}
	if childErr != nil {
		return errors.Wrap(ErrCorruptTree, childErr.Error())
	}
	return nil
}

// WriteToFile writes the tree to the named file, replacing it.
func (t *Tree) WriteToFile(fn string) (err error) {
	//nolint:gosec
	f, err := os.Create(fn)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()
	_, err = t.WriteTo(f)
	return err
}

// ReadFromFile loads a tree previously written with WriteToFile.
func ReadFromFile(fn string) (*Tree, error) {
	//nolint:gosec
	f, err := os.Open(fn)
	if err != nil {
		return nil, err
	}
	defer utils.UncheckedErrorFunc(f.Close)

	t := &Tree{}
	if _, err := t.ReadFrom(bufio.NewReader(f)); err != nil {
		return nil, errors.Wrapf(err, "loading %q", fn)
	}
	return t, nil
}

type countingWriter struct {
	w   io.Writer
	n   int64
	err error
}

func (cw *countingWriter) Write(p []byte) {
	if cw.err != nil {
		return
	}
	n, err := cw.w.Write(p)
	cw.n += int64(n)
	cw.err = err
}

type countingReader struct {
	r io.Reader
	n int64
}

func (cr *countingReader) Read(p []byte) (int, error) {
	n, err := cr.r.Read(p)
	cr.n += int64(n)
	return n, err
}
