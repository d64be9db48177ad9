package bitio

import (
	"errors"
	"fmt"
)

// Table is a prefix-free mapping between byte symbols and their codes.
// Table is safe for concurrent reads.
type Table struct {
	codes   map[byte]Code
	symbols map[Code]byte
	maxLen  uint8
}

// NewTable returns Table built from the symbol-to-code mapping. Returns
// ErrInvalidCode if the mapping is empty, contains zero codes or a code
// that is a prefix of another one.
func NewTable(codes map[byte]Code) (*Table, error) {
	if len(codes) == 0 {
		return nil, fmt.Errorf("%w: empty table", ErrInvalidCode)
	}

	t := &Table{
		codes:   make(map[byte]Code, len(codes)),
		symbols: make(map[Code]byte, len(codes)),
	}

	for sym, c := range codes {
		if c.len == 0 {
			return nil, fmt.Errorf("%w: zero code for symbol %d", ErrInvalidCode, sym)
		}

		for other, oc := range t.codes {
			if c.IsPrefixOf(oc) || oc.IsPrefixOf(c) {
				return nil, fmt.Errorf("%w: codes of symbols %d and %d overlap", ErrInvalidCode, other, sym)
			}
		}

		t.codes[sym] = c
		t.symbols[c] = sym
		t.maxLen = max(t.maxLen, c.len)
	}

	return t, nil
}

// Lookup returns code of the symbol.
func (t *Table) Lookup(sym byte) (Code, bool) {
	c, ok := t.codes[sym]
	return c, ok
}

// Len returns number of symbols in the table.
func (t *Table) Len() int {
	return len(t.codes)
}

// MaxLen returns length of the longest code.
func (t *Table) MaxLen() uint8 {
	return t.maxLen
}

// errNoCode is returned by Encode for symbols missing in the table.
var errNoCode = errors.New("symbol has no code")

// Encode writes codes of all data bytes to w.
func (t *Table) Encode(w *Writer, data []byte) error {
	for i := range data {
		c, ok := t.codes[data[i]]
		if !ok {
			return fmt.Errorf("%w: %d", errNoCode, data[i])
		}

		if err := w.WriteSymbol(c); err != nil {
			return err
		}
	}

	return nil
}
