package media

import (
	"fmt"

	"github.com/pkg/errors"
)

const (
	b  Size = 1
	kb      = 1000
	mb      = 1000 * kb
	gb      = 1000 * mb
)

// Size is a content size in bytes. Unit conversions are decimal,
// so 2000 bytes is 2.0 kb.
type Size int64

// In converts the size to the given unit ("bytes", "kb", "mb" or "gb").
func (s Size) In(unit string) (float64, error) {
	switch unit {
	case "bytes":
		return float64(s), nil
	case "kb":
		return float64(s) / float64(kb), nil
	case "mb":
		return float64(s) / float64(mb), nil
	case "gb":
		return float64(s) / float64(gb), nil
	default:
		return 0, errors.Errorf("unknown size unit %q", unit)
	}
}

func (s Size) String() string {
	switch {
	case s >= gb:
		return fmt.Sprintf("%.2f gb", float64(s)/float64(gb))
	case s >= mb:
		return fmt.Sprintf("%.2f mb", float64(s)/float64(mb))
	case s >= kb:
		return fmt.Sprintf("%.2f kb", float64(s)/float64(kb))
	default:
		return fmt.Sprintf("%d bytes", int64(s))
	}
}
