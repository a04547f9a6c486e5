package core

import (
	"encoding/binary"

	"github.com/zeebo/xxh3"
)

// Digest is a 128-bit fingerprint of a table's raw cells.
type Digest [16]byte

// ContentDigest hashes the header and every data row in order. Two tables
// with equal digests have identical raw content.
//
// Every row is written as its cell count followed by each cell's length and
// bytes, so no cell content can shift a row or cell boundary.
func ContentDigest(t *Table) Digest {
	h := xxh3.New()
	buf := make([]byte, 0, binary.MaxVarintLen64)

	if t.Header != nil {
		_, _ = h.Write([]byte{1})
		buf = digestRow(h, buf, t.Header)
	} else {
		_, _ = h.Write([]byte{0})
	}
	for _, row := range t.Rows {
		buf = digestRow(h, buf, row)
	}
	return Digest(h.Sum128().Bytes())
}

func digestRow(h *xxh3.Hasher, buf []byte, row []string) []byte {
	buf = binary.AppendUvarint(buf[:0], uint64(len(row)))
	_, _ = h.Write(buf)
	for _, cell := range row {
		buf = binary.AppendUvarint(buf[:0], uint64(len(cell)))
		_, _ = h.Write(buf)
		_, _ = h.WriteString(cell)
	}
	return buf
}
