package safety

import (
	"fmt"
	"math"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var hexID = regexp.MustCompile(`^[0-9a-f]+$`)

func TestGenerate_Deterministic(t *testing.T) {
	p := map[string]any{"symbol": "AAA", "tf": "D", "close": "10", "volume": "100"}

	a := Generate("voicecoach", p)
	b := Generate("voicecoach", p)

	assert.Equal(t, a, b)
	assert.Len(t, a, IDLength)
	assert.Regexp(t, hexID, a)
}

func TestGenerate_KeyOrderIndependent(t *testing.T) {
	a := map[string]any{"symbol": "AAA", "tf": "D", "nested": map[string]any{"x": 1, "y": 2}}
	b := map[string]any{"nested": map[string]any{"y": 2, "x": 1}, "tf": "D", "symbol": "AAA"}

	assert.Equal(t, Generate("ns", a), Generate("ns", b))
	assert.Equal(t, `{"nested":{"x":1,"y":2},"symbol":"AAA","tf":"D"}`, Canonical(a))
}

func TestGenerate_NamespaceMatters(t *testing.T) {
	p := map[string]any{"symbol": "AAA"}
	assert.NotEqual(t, Generate("one", p), Generate("two", p))
}

func TestGenerate_NoCollisionsAcrossDistinctPayloads(t *testing.T) {
	seen := make(map[string]string, 2000)
	for i := 0; i < 2000; i++ {
		p := map[string]any{"symbol": "SYM", "close": fmt.Sprint(i), "volume": fmt.Sprint(i % 7)}
		id := Generate("ns", p)
		canon := Canonical(p)
		if prev, ok := seen[id]; ok {
			require.Equal(t, prev, canon, "collision between distinct payloads")
		}
		seen[id] = canon
	}
	assert.Len(t, seen, 2000)
}

func TestGenerate_TotalForUnencodableValues(t *testing.T) {
	p := map[string]any{"close": math.NaN(), "ch": make(chan int)}
	assert.NotPanics(t, func() {
		id := Generate("ns", p)
		assert.Len(t, id, IDLength)
	})
}
