package skiplist

const DEFAULT_MAXLEVEL = 10

// Hard ceiling on the levels a list may be configured with.
const SKIPLIST_MAXLEVEL = 32

// nilHandle marks an absent link.
const nilHandle = -1

// Rand is the source of random bits used to pick node heights.
// *rand.Rand satisfies it.
type Rand interface {
	Int63() int64
}

// element is a single record in the arena. Links are arena handles.
type element struct {
	key     uint64
	payload string
	next    []int
}

// newElement returns an element spanning height levels with no successors.
func newElement(height int, key uint64, payload string) element {
	next := make([]int, height)
	for i := range next {
		next[i] = nilHandle
	}

	return element{
		key:     key,
		payload: payload,
		next:    next,
	}
}

// randomLevel returns a level in [0, maxLevel], incremented once per
// successful fair coin flip.
func randomLevel(r Rand, maxLevel int) int {
	level := 0
	for level < maxLevel && r.Int63()&1 == 1 {
		level++
	}

	return level
}
