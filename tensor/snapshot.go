package tensor

import (
	"bytes"
	"encoding/gob"
	"io"

	"github.com/pkg/errors"
)

// Magic is the fixed prefix of a persisted array snapshot. Its presence
// at the start of a byte payload means "decode as an array snapshot";
// its absence means the payload is raw bytes and interpretation is up
// to the caller.
var Magic = []byte{0x93, 'T', 'N', 'S', 'R', 0x00}

// IsSnapshot reports whether the payload starts with the snapshot magic.
func IsSnapshot(b []byte) bool {
	return bytes.HasPrefix(b, Magic)
}

type snapshot struct {
	Shape []int
	Data  []float64
}

// EncodeTo writes the snapshot form of the array: the magic prefix
// followed by a gob-encoded shape and data. Implements flu.EncoderTo.
func (a *Array) EncodeTo(w io.Writer) error {
	if _, err := w.Write(Magic); err != nil {
		return errors.Wrap(err, "write magic")
	}

	return gob.NewEncoder(w).Encode(snapshot{Shape: a.Shape, Data: a.Data})
}

// DecodeFrom reads a snapshot previously written with EncodeTo.
// Implements flu.DecoderFrom.
func (a *Array) DecodeFrom(r io.Reader) error {
	magic := make([]byte, len(Magic))
	if _, err := io.ReadFull(r, magic); err != nil {
		return errors.Wrap(err, "read magic")
	}

	if !bytes.Equal(magic, Magic) {
		return errors.New("payload is not an array snapshot")
	}

	var s snapshot
	if err := gob.NewDecoder(r).Decode(&s); err != nil {
		return errors.Wrap(err, "decode snapshot")
	}

	a.Shape, a.Data = s.Shape, s.Data
	return nil
}
