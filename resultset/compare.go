package resultset

import (
	"cmp"
	"strings"
)

// kindRank orders kinds for cross-kind comparison.
var kindRank = [...]int{
	KindNull:   0,
	KindBool:   1,
	KindNumber: 2,
	KindString: 3,
}

// Compare orders two cells for sorting and returns -1, 0 or +1.
//
// Values of different kinds never coerce: null sorts before booleans,
// booleans before numbers, numbers before strings. Within a kind booleans
// order false before true, numbers numerically (NaN first) and strings by
// byte order.
func Compare(a, b Value) int {
	if a.kind != b.kind {
		return cmp.Compare(kindRank[a.kind], kindRank[b.kind])
	}

	switch a.kind {
	case KindBool:
		switch {
		case a.b == b.b:
			return 0
		case !a.b:
			return -1
		default:
			return 1
		}
	case KindNumber:
		return cmp.Compare(a.n, b.n)
	case KindString:
		return strings.Compare(a.s, b.s)
	default:
		return 0
	}
}
