package huffman

import (
	"fmt"
	"io"

	"github.com/nspcc-dev/huffarc/pkg/bitio"
)

// Encoded describes data packed by Encode.
type Encoded struct {
	// TreeBits is an exact size of the serialized tree.
	TreeBits uint64
	// DataBits is an exact size of the encoded data.
	DataBits uint64
}

// Encode builds the tree of data and writes it to w followed by the encoded
// data. Both parts are padded to a byte boundary. Nothing is written for
// empty data.
func Encode(w *bitio.Writer, data []byte) (Encoded, error) {
	var res Encoded

	if len(data) == 0 {
		return res, nil
	}

	if !w.Aligned() {
		return res, bitio.ErrMisaligned
	}

	tree, err := Build(Count(data))
	if err != nil {
		return res, err
	}

	start := w.BitsWritten()
	if err = tree.Write(w); err != nil {
		return res, fmt.Errorf("write code tree: %w", err)
	}
	res.TreeBits = w.BitsWritten() - start
	w.AlignToByte()

	start = w.BitsWritten()
	if err = tree.Table().Encode(w, data); err != nil {
		return res, fmt.Errorf("write encoded data: %w", err)
	}
	res.DataBits = w.BitsWritten() - start
	w.AlignToByte()

	return res, nil
}

// Decode reads the tree and size symbols written by Encode from r and
// passes them to dst. The tree is not read for zero size. Returns exact
// sizes of both consumed parts.
func Decode(r *bitio.Reader, size uint64, dst io.ByteWriter) (Encoded, error) {
	var res Encoded

	if size == 0 {
		return res, nil
	}

	if !r.Aligned() {
		return res, bitio.ErrMisaligned
	}

	start := r.BitsRead()
	tree, err := Read(r)
	if err != nil {
		return res, fmt.Errorf("read code tree: %w", err)
	}
	res.TreeBits = r.BitsRead() - start
	r.AlignToByte()

	tbl := tree.Table()
	start = r.BitsRead()
	for i := uint64(0); i < size; i++ {
		sym, err := r.ReadSymbol(tbl)
		if err != nil {
			return res, fmt.Errorf("read symbol #%d: %w", i, err)
		}

		if err = dst.WriteByte(sym); err != nil {
			return res, err
		}
	}
	res.DataBits = r.BitsRead() - start
	r.AlignToByte()

	return res, nil
}
