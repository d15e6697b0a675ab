package locate

import (
	"fmt"
	"sort"
	"strings"

	"github.com/devicelab-dev/checkbox-runner/pkg/core"
)

// Relation is the spatial predicate between an anchor and a candidate.
type Relation int

const (
	LeftOf Relation = iota
	RightOf
	Above
	Below
)

func (r Relation) String() string {
	switch r {
	case LeftOf:
		return "leftOf"
	case RightOf:
		return "rightOf"
	case Above:
		return "above"
	case Below:
		return "below"
	default:
		return fmt.Sprintf("Relation(%d)", int(r))
	}
}

// ParseRelation accepts leftOf, left_of, LEFT_OF, left-of and the like.
func ParseRelation(s string) (Relation, error) {
	norm := strings.ToLower(strings.NewReplacer("_", "", "-", "", " ", "").Replace(s))
	switch norm {
	case "leftof", "left":
		return LeftOf, nil
	case "rightof", "right":
		return RightOf, nil
	case "above":
		return Above, nil
	case "below":
		return Below, nil
	}
	return 0, fmt.Errorf("unknown relation %q (want leftOf, rightOf, above or below)", s)
}

// MarshalText implements encoding.TextMarshaler.
func (r Relation) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Relation) UnmarshalText(b []byte) error {
	v, err := ParseRelation(string(b))
	if err != nil {
		return err
	}
	*r = v
	return nil
}

// Displacement returns how far c lies from anchor along the relation's axis
// and whether c qualifies at all. Touching edges qualify with zero.
func (r Relation) Displacement(anchor, c core.Bounds) (int, bool) {
	var d int
	switch r {
	case LeftOf:
		d = anchor.X - c.Right()
	case RightOf:
		d = c.X - anchor.Right()
	case Above:
		d = anchor.Y - c.Bottom()
	case Below:
		d = c.Y - anchor.Bottom()
	default:
		return 0, false
	}
	return d, d >= 0
}

// CrossDistance is the centre offset on the other axis, used to pick the
// same row (or column) among candidates at equal displacement.
func (r Relation) CrossDistance(anchor, c core.Bounds) int {
	ax, ay := anchor.Center()
	cx, cy := c.Center()
	if r == LeftOf || r == RightOf {
		return abs(cy - ay)
	}
	return abs(cx - ax)
}

// Candidate is a located element with its bounds and DOM-order index.
type Candidate struct {
	Handle core.ElementHandle
	Bounds core.Bounds
	Index  int
}

// Filter keeps candidates satisfying rel, nearest first. Candidates with
// empty bounds never qualify. Ties on displacement are broken by cross-axis
// distance and then DOM order.
func (r Relation) Filter(candidates []Candidate, anchor core.Bounds) []Candidate {
	type scored struct {
		Candidate
		disp, cross int
	}
	var kept []scored
	for _, c := range candidates {
		if c.Bounds.IsEmpty() {
			continue
		}
		d, ok := r.Displacement(anchor, c.Bounds)
		if !ok {
			continue
		}
		kept = append(kept, scored{c, d, r.CrossDistance(anchor, c.Bounds)})
	}

	sort.SliceStable(kept, func(i, j int) bool {
		a, b := kept[i], kept[j]
		if a.disp != b.disp {
			return a.disp < b.disp
		}
		if a.cross != b.cross {
			return a.cross < b.cross
		}
		return a.Index < b.Index
	})

	result := make([]Candidate, len(kept))
	for i, s := range kept {
		result[i] = s.Candidate
	}
	return result
}

// FilterLeftOf returns candidates left of the anchor.
func FilterLeftOf(candidates []Candidate, anchor core.Bounds) []Candidate {
	return LeftOf.Filter(candidates, anchor)
}

// FilterRightOf returns candidates right of the anchor.
func FilterRightOf(candidates []Candidate, anchor core.Bounds) []Candidate {
	return RightOf.Filter(candidates, anchor)
}

// FilterAbove returns candidates above the anchor.
func FilterAbove(candidates []Candidate, anchor core.Bounds) []Candidate {
	return Above.Filter(candidates, anchor)
}

// FilterBelow returns candidates below the anchor.
func FilterBelow(candidates []Candidate, anchor core.Bounds) []Candidate {
	return Below.Filter(candidates, anchor)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
