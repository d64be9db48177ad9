package archive

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/nspcc-dev/huffarc/pkg/bitio"
	"github.com/nspcc-dev/huffarc/pkg/huffman"
)

// Scan reads headers of all container entries skipping their payloads.
// Each header is checked for consistency with its position, entry paths
// must be unique.
func Scan(src io.Reader) ([]bitio.Block, error) {
	var (
		res  []bitio.Block
		r    = bitio.NewReader(src)
		seen = make(map[string]struct{})
	)

	for {
		eof, err := r.AtEOF()
		if err != nil {
			return nil, err
		}

		if eof {
			return res, nil
		}

		pos := r.BitsRead() / 8

		b, err := r.ReadBlock()
		if err != nil {
			return nil, fmt.Errorf("read header #%d at %d: %w", len(res), pos, corrupt(err))
		}

		if err = checkBlock(b, pos); err != nil {
			return nil, fmt.Errorf("header #%d: %w", len(res), err)
		}

		if _, ok := seen[b.Path]; ok {
			return nil, corruptf("header #%d: duplicate entry path %s", len(res), b.Path)
		}
		seen[b.Path] = struct{}{}

		_, err = io.CopyN(io.Discard, r, int64(b.PayloadByteSize()))
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = bitio.ErrUnexpectedEOF
			}
			return nil, fmt.Errorf("skip payload of %s: %w", b.Path, corrupt(err))
		}

		res = append(res, b)
	}
}

// checkBlock checks whether b is a header of a possible entry located at
// pos.
func checkBlock(b bitio.Block, pos uint64) error {
	switch {
	case b.FileByteOffset != pos+b.HeaderSize():
		return corruptf("payload offset %d of %s mismatches header position %d", b.FileByteOffset, b.Path, pos)
	case b.OriginalByteSize == 0:
		if b.TreeBitSize != 0 || b.DataBitSize != 0 {
			return corruptf("non-empty payload of empty file %s", b.Path)
		}
	case b.TreeBitSize == 0:
		return corruptf("missing code tree of %s", b.Path)
	case b.DataBitSize < b.OriginalByteSize || b.DataBitSize/bitio.MaxCodeLen > b.OriginalByteSize:
		return corruptf("encoded size %d of %s is impossible for %d bytes", b.DataBitSize, b.Path, b.OriginalByteSize)
	case b.PayloadByteSize() > math.MaxInt64-b.FileByteOffset:
		return corruptf("payload of %s exceeds the container limits", b.Path)
	}

	return nil
}

// Extract decodes the entry described by b from the container src and
// writes original file contents to dst. b is usually obtained from Scan or
// from the container index.
func Extract(src io.ReaderAt, b bitio.Block, dst io.Writer) error {
	if b.FileByteOffset < b.HeaderSize() {
		return corruptf("payload offset %d of %s overlaps its header", b.FileByteOffset, b.Path)
	}

	if err := checkBlock(b, b.FileByteOffset-b.HeaderSize()); err != nil {
		return err
	}

	var (
		sec = io.NewSectionReader(src, int64(b.FileByteOffset), int64(b.PayloadByteSize()))
		r   = bitio.NewReader(sec)
		bw  = bufio.NewWriter(dst)
	)

	dec, err := huffman.Decode(r, b.OriginalByteSize, bw)
	if err != nil {
		return fmt.Errorf("decode %s: %w", b.Path, corrupt(err))
	}

	if dec.TreeBits != b.TreeBitSize || dec.DataBits != b.DataBitSize {
		return corruptf("decoded sizes of %s (tree %d, data %d) mismatch header (tree %d, data %d)",
			b.Path, dec.TreeBits, dec.DataBits, b.TreeBitSize, b.DataBitSize)
	}

	return bw.Flush()
}
