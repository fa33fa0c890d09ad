package skiplist

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func randCommand(t *testing.T, rnd *rand.Rand) string {
	b := make([]byte, 16)
	_, err := rnd.Read(b)
	require.NoError(t, err)

	return fmt.Sprintf("%X-%X-%X-%X-%X", b[0:4], b[4:6], b[6:8], b[8:10], b[10:])
}

func TestSkiplistChaos(t *testing.T) {
	rnd := rand.New(rand.NewSource(0))
	iterations := 20

	for i := 0; i < iterations; i++ {
		numOps := rnd.Intn(20_000) + 100
		maxLevel := rnd.Intn(SKIPLIST_MAXLEVEL) + 1

		sl := NewWithRand(maxLevel, rand.New(rand.NewSource(int64(i))))
		expected := make(map[uint64]string, numOps)
		keys := make([]uint64, 0, numOps)

		t.Logf("** iteration=%v, ops=%v, maxLevel=%v", i, numOps, maxLevel)

		// Keys advance by 0..3 so duplicates and gaps both occur.
		key := uint64(rnd.Intn(1000) + 1)
		for j := 0; j < numOps; j++ {
			key += uint64(rnd.Intn(4))
			payload := randCommand(t, rnd)
			sl.Append(key, payload)
			expected[key] = payload
			keys = append(keys, key)
		}

		require.Equal(t, numOps, sl.Len())

		for k, payload := range expected {
			found, ok := sl.Find(k)
			require.True(t, ok, "iteration %d, key %d", i, k)
			require.Equal(t, payload, found, "iteration %d, key %d", i, k)
		}

		// Look up the gaps and both ends.
		for k := keys[0] - 1; k <= keys[len(keys)-1]+1; k++ {
			if _, ok := expected[k]; ok {
				continue
			}
			_, ok := sl.Find(k)
			require.False(t, ok, "iteration %d, key %d", i, k)
		}
	}
}
