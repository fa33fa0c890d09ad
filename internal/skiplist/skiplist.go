package skiplist

import (
	"math/rand"
	"time"
)

// SkipList indexes payloads by non-decreasing uint64 keys. Nodes live in an
// append-only arena and are addressed by their position in it.
//
// Keys passed to Append must be greater than or equal to every key appended
// before. This is not checked; violating it silently breaks Find.
//
// A SkipList is not safe for concurrent use.
type SkipList struct {
	r        Rand
	nodes    []element
	head     int
	tails    []int
	maxLevel int
	length   int
}

// New returns an empty skiplist with the default max level and a clock seeded
// random source.
func New() *SkipList {
	return NewWithRand(DEFAULT_MAXLEVEL, rand.New(rand.NewSource(time.Now().UnixNano())))
}

// NewWithRand returns an empty skiplist using r to pick node heights. maxLevel
// is clamped to [0, SKIPLIST_MAXLEVEL].
func NewWithRand(maxLevel int, r Rand) *SkipList {
	if maxLevel < 0 {
		maxLevel = 0
	} else if maxLevel > SKIPLIST_MAXLEVEL {
		maxLevel = SKIPLIST_MAXLEVEL
	}

	tails := make([]int, maxLevel+1)
	for i := range tails {
		tails[i] = nilHandle
	}

	return &SkipList{
		r:        r,
		head:     nilHandle,
		tails:    tails,
		maxLevel: maxLevel,
	}
}

// Len returns the number of entries appended to sl.
func (sl *SkipList) Len() int {
	return sl.length
}

// MaxLevel returns the highest level index a node of sl may span.
func (sl *SkipList) MaxLevel() int {
	return sl.maxLevel
}

// LastKey returns the key of the most recently appended entry.
func (sl *SkipList) LastKey() (uint64, bool) {
	if sl.length == 0 {
		return 0, false
	}

	return sl.nodes[len(sl.nodes)-1].key, true
}

// Append adds payload under key at the end of sl.
func (sl *SkipList) Append(key uint64, payload string) {
	// The first node spans every level so each level chain has an entry point.
	level := sl.maxLevel
	if sl.head != nilHandle {
		level = randomLevel(sl.r, sl.maxLevel)
	}

	x := len(sl.nodes)
	sl.nodes = append(sl.nodes, newElement(level+1, key, payload))

	for i := 0; i <= level; i++ {
		if tail := sl.tails[i]; tail != nilHandle {
			sl.nodes[tail].next[i] = x
		}
		sl.tails[i] = x
	}

	if sl.head == nilHandle {
		sl.head = x
	}

	sl.length++
}

// Find returns the payload stored under key. When key was appended more than
// once the most recent payload wins.
func (sl *SkipList) Find(key uint64) (string, bool) {
	if sl.head == nilHandle {
		return "", false
	}

	x := sl.head
	head := &sl.nodes[x]

	// Upper levels stay empty until some later node reaches them.
	level := sl.maxLevel
	for level > 0 && head.next[level] == nilHandle {
		level--
	}

	for ; level >= 0; level-- {
		for {
			next := sl.nodes[x].next[level]
			if next == nilHandle || sl.nodes[next].key > key {
				break
			}
			x = next
		}
	}

	if n := &sl.nodes[x]; n.key == key {
		return n.payload, true
	}

	return "", false
}
