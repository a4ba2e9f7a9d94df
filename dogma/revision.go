package dogma

import "github.com/cdogma/dogma-core/dogmaerr"

// Revision is a value type over a signed integer. Positive values are
// absolute revisions starting at 1; non-positive values are relative to
// head: 0 and -1 both mean head, -n means head minus (n-1).
type Revision int

// Normalize resolves r to an absolute revision given the current head.
// It returns dogmaerr.RevisionNotFound if the result falls outside
// [1, head] (including relative underflow).
func (r Revision) Normalize(head int) (int, error) {
	v := int(r)
	var abs int
	if v > 0 {
		abs = v
	} else {
		// 0 and -1 both mean head; -n means head-(n-1).
		if v == 0 {
			v = -1
		}
		abs = head + v + 1
	}
	if abs < 1 || abs > head {
		return 0, dogmaerr.Newf(dogmaerr.RevisionNotFound, "revision %d (head=%d) is out of range", v, head)
	}
	return abs, nil
}

// IsRelative reports whether r is expressed relative to head (i.e. is
// non-positive).
func (r Revision) IsRelative() bool { return r <= 0 }
