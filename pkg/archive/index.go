package archive

import (
	"fmt"
	"io"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/zstd"
	"github.com/nspcc-dev/huffarc/pkg/bitio"
	"github.com/pierrec/lz4/v4"
)

// IndexVersion is the current version of the index format.
const IndexVersion = 1

// maxIndexSize limits the decompressed index length.
const maxIndexSize = 1 << 30

// IndexEntry describes single archived file. In addition to the block header
// fields it carries BLAKE3 digest of the original contents.
type IndexEntry struct {
	Path             string   `cbor:"1,keyasint"`
	TreeBitSize      uint64   `cbor:"2,keyasint"`
	DataBitSize      uint64   `cbor:"3,keyasint"`
	FileByteOffset   uint64   `cbor:"4,keyasint"`
	OriginalByteSize uint64   `cbor:"5,keyasint"`
	Digest           [32]byte `cbor:"6,keyasint"`
}

func newIndexEntry(b bitio.Block, digest [32]byte) IndexEntry {
	return IndexEntry{
		Path:             b.Path,
		TreeBitSize:      b.TreeBitSize,
		DataBitSize:      b.DataBitSize,
		FileByteOffset:   b.FileByteOffset,
		OriginalByteSize: b.OriginalByteSize,
		Digest:           digest,
	}
}

// Block returns block header of the entry.
func (e IndexEntry) Block() bitio.Block {
	return bitio.Block{
		Path:             e.Path,
		TreeBitSize:      e.TreeBitSize,
		DataBitSize:      e.DataBitSize,
		FileByteOffset:   e.FileByteOffset,
		OriginalByteSize: e.OriginalByteSize,
	}
}

// Index is a sidecar listing of the container allowing random access to
// entries without scanning.
type Index struct {
	Version uint64       `cbor:"1,keyasint"`
	Entries []IndexEntry `cbor:"2,keyasint"`
}

// IndexCodec is a compression algorithm of the encoded index.
type IndexCodec byte

const (
	IndexCodecNone IndexCodec = iota
	IndexCodecZstd
	IndexCodecLZ4
)

func (c IndexCodec) String() string {
	switch c {
	case IndexCodecNone:
		return "none"
	case IndexCodecZstd:
		return "zstd"
	case IndexCodecLZ4:
		return "lz4"
	default:
		return fmt.Sprintf("IndexCodec(%d)", byte(c))
	}
}

// ParseIndexCodec parses codec name as returned by IndexCodec.String.
func ParseIndexCodec(s string) (IndexCodec, error) {
	switch strings.ToLower(s) {
	case "none", "":
		return IndexCodecNone, nil
	case "zstd":
		return IndexCodecZstd, nil
	case "lz4":
		return IndexCodecLZ4, nil
	default:
		return 0, fmt.Errorf("unknown index codec %q", s)
	}
}

var (
	indexEncMode cbor.EncMode
	indexDecMode cbor.DecMode
)

func init() {
	var err error

	indexEncMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(fmt.Errorf("index encoding mode: %w", err))
	}

	indexDecMode, err = cbor.DecOptions{
		MaxArrayElements: 1 << 24,
	}.DecMode()
	if err != nil {
		panic(fmt.Errorf("index decoding mode: %w", err))
	}
}

// WriteIndex encodes idx into w compressing it with the given codec. Output
// starts with the codec byte and 8-byte little-endian length of the
// uncompressed CBOR data.
func WriteIndex(w io.Writer, idx Index, codec IndexCodec) error {
	raw, err := indexEncMode.Marshal(idx)
	if err != nil {
		return fmt.Errorf("encode index: %w", err)
	}

	body := raw

	switch codec {
	case IndexCodecNone:
	case IndexCodecZstd:
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return fmt.Errorf("init zstd encoder: %w", err)
		}

		body = enc.EncodeAll(raw, nil)
		_ = enc.Close()
	case IndexCodecLZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(raw)))

		n, err := lz4.CompressBlock(raw, buf, nil)
		if err != nil {
			return fmt.Errorf("lz4 compression: %w", err)
		}

		if n == 0 {
			// incompressible
			codec = IndexCodecNone
		} else {
			body = buf[:n]
		}
	default:
		return fmt.Errorf("unknown index codec %d", codec)
	}

	bw := bitio.NewWriter(w)

	if err := bw.WriteByte(byte(codec)); err != nil {
		return err
	}

	if err := bw.WriteUint64(uint64(len(raw))); err != nil {
		return err
	}

	if _, err := bw.Write(body); err != nil {
		return err
	}

	return bw.Close()
}

// ReadIndex decodes index written by WriteIndex. Broken input results in
// ErrCorrupt.
func ReadIndex(r io.Reader) (Index, error) {
	var idx Index

	br := bitio.NewReader(r)

	tag, err := br.ReadByte()
	if err != nil {
		return idx, corrupt(err)
	}

	size, err := br.ReadUint64()
	if err != nil {
		return idx, corrupt(err)
	}

	if size > maxIndexSize {
		return idx, corruptf("index length %d exceeds limit", size)
	}

	body, err := io.ReadAll(io.LimitReader(br, 2*maxIndexSize))
	if err != nil {
		return idx, corrupt(err)
	}

	var raw []byte

	switch IndexCodec(tag) {
	case IndexCodecNone:
		raw = body
	case IndexCodecZstd:
		dec, err := zstd.NewReader(nil, zstd.WithDecoderMaxMemory(maxIndexSize))
		if err != nil {
			return idx, fmt.Errorf("init zstd decoder: %w", err)
		}

		raw, err = dec.DecodeAll(body, make([]byte, 0, size))
		dec.Close()
		if err != nil {
			return idx, fmt.Errorf("%w: zstd: %w", ErrCorrupt, err)
		}
	case IndexCodecLZ4:
		raw = make([]byte, size)

		n, err := lz4.UncompressBlock(body, raw)
		if err != nil {
			return idx, fmt.Errorf("%w: lz4: %w", ErrCorrupt, err)
		}

		raw = raw[:n]
	default:
		return idx, corruptf("unknown index codec %d", tag)
	}

	if uint64(len(raw)) != size {
		return idx, corruptf("index length mismatch: header %d, actual %d", size, len(raw))
	}

	if err := indexDecMode.Unmarshal(raw, &idx); err != nil {
		return idx, fmt.Errorf("%w: decode index: %w", ErrCorrupt, err)
	}

	if idx.Version != IndexVersion {
		return idx, corruptf("unsupported index version %d", idx.Version)
	}

	seen := make(map[string]struct{}, len(idx.Entries))
	for i := range idx.Entries {
		if err := idx.Entries[i].Block().Validate(); err != nil {
			return idx, fmt.Errorf("%w: entry #%d: %w", ErrCorrupt, i, err)
		}

		if _, ok := seen[idx.Entries[i].Path]; ok {
			return idx, corruptf("entry #%d: duplicate path %s", i, idx.Entries[i].Path)
		}
		seen[idx.Entries[i].Path] = struct{}{}
	}

	return idx, nil
}
