package huffman

import (
	"container/heap"
	"errors"
	"fmt"

	"github.com/nspcc-dev/huffarc/pkg/bitio"
)

var (
	// ErrNoSymbols is returned by Build for all-zero frequencies.
	ErrNoSymbols = errors.New("no symbols to encode")

	// ErrCodeTooLong is returned by Build when the optimal code of some
	// symbol exceeds bitio.MaxCodeLen bits.
	ErrCodeTooLong = errors.New("code length limit exceeded")

	// ErrMalformedTree is returned by Read for broken tree encodings.
	ErrMalformedTree = errors.New("malformed code tree")
)

// Frequencies holds number of occurrences of each byte value.
type Frequencies [256]uint64

// Count returns byte frequencies of data.
func Count(data []byte) *Frequencies {
	var f Frequencies
	for _, b := range data {
		f[b]++
	}
	return &f
}

// Tree is a binary prefix code tree. Going left appends 0 to the code,
// going right appends 1.
type Tree struct {
	root  *node
	table *bitio.Table
}

type node struct {
	sym         byte
	weight      uint64
	left, right *node

	// order breaks weight ties so that equal inputs produce equal trees.
	order int
}

func (n *node) leaf() bool {
	return n.left == nil
}

// Build returns the Huffman tree of the given frequencies.
func Build(freq *Frequencies) (*Tree, error) {
	var q nodeQueue
	for sym, w := range freq {
		if w > 0 {
			q = append(q, &node{sym: byte(sym), weight: w, order: len(q)})
		}
	}

	if len(q) == 0 {
		return nil, ErrNoSymbols
	}

	heap.Init(&q)

	order := len(q)
	for q.Len() > 1 {
		l := heap.Pop(&q).(*node)
		r := heap.Pop(&q).(*node)

		heap.Push(&q, &node{
			weight: l.weight + r.weight,
			left:   l,
			right:  r,
			order:  order,
		})
		order++
	}

	return newTree(q[0])
}

func newTree(root *node) (*Tree, error) {
	codes := make(map[byte]bitio.Code)

	err := assignCodes(root, 0, 0, codes)
	if err != nil {
		return nil, err
	}

	tbl, err := bitio.NewTable(codes)
	if err != nil {
		return nil, err
	}

	return &Tree{root: root, table: tbl}, nil
}

func assignCodes(n *node, pattern uint64, depth uint8, codes map[byte]bitio.Code) error {
	if n.leaf() {
		// lone symbol still takes a bit
		c, err := bitio.NewCode(pattern, max(depth, 1))
		if err != nil {
			return err
		}

		codes[n.sym] = c
		return nil
	}

	if depth == bitio.MaxCodeLen {
		return ErrCodeTooLong
	}

	if err := assignCodes(n.left, pattern, depth+1, codes); err != nil {
		return err
	}

	return assignCodes(n.right, pattern|1<<depth, depth+1, codes)
}

// Table returns codes of the tree symbols.
func (t *Tree) Table() *bitio.Table {
	return t.table
}

// Write serializes the tree in pre-order: a leaf is bit 1 followed by 8 bits
// of the symbol, an internal node is bit 0 followed by its left and right
// subtrees.
func (t *Tree) Write(w *bitio.Writer) error {
	return writeNode(w, t.root)
}

func writeNode(w *bitio.Writer, n *node) error {
	if n.leaf() {
		if err := w.WriteBit(1); err != nil {
			return err
		}
		return w.WriteBits(n.sym, 8)
	}

	if err := w.WriteBit(0); err != nil {
		return err
	}

	if err := writeNode(w, n.left); err != nil {
		return err
	}

	return writeNode(w, n.right)
}

// Read deserializes the tree written by Tree.Write.
func Read(r *bitio.Reader) (*Tree, error) {
	var seen [256]bool

	root, err := readNode(r, 0, &seen)
	if err != nil {
		return nil, err
	}

	return newTree(root)
}

func readNode(r *bitio.Reader, depth uint8, seen *[256]bool) (*node, error) {
	bit, err := r.ReadBit()
	if err != nil {
		return nil, err
	}

	if bit == 1 {
		sym, err := r.ReadBits(8)
		if err != nil {
			return nil, err
		}

		if seen[sym] {
			return nil, fmt.Errorf("%w: duplicated symbol %d", ErrMalformedTree, sym)
		}
		seen[sym] = true

		return &node{sym: sym}, nil
	}

	if depth == bitio.MaxCodeLen {
		return nil, fmt.Errorf("%w: depth exceeds %d", ErrMalformedTree, bitio.MaxCodeLen)
	}

	left, err := readNode(r, depth+1, seen)
	if err != nil {
		return nil, err
	}

	right, err := readNode(r, depth+1, seen)
	if err != nil {
		return nil, err
	}

	return &node{left: left, right: right}, nil
}

// nodeQueue is a min-heap of nodes ordered by weight.
type nodeQueue []*node

func (q nodeQueue) Len() int { return len(q) }

func (q nodeQueue) Less(i, j int) bool {
	if q[i].weight != q[j].weight {
		return q[i].weight < q[j].weight
	}
	return q[i].order < q[j].order
}

func (q nodeQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *nodeQueue) Push(x any) { *q = append(*q, x.(*node)) }

func (q *nodeQueue) Pop() any {
	old := *q
	n := old[len(old)-1]
	*q = old[:len(old)-1]
	return n
}
