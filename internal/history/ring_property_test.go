package history

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// Property: for any sequence of pushed lines, the ring never exceeds its
// capacity and index 0 always holds the most recent non-duplicate push.
func TestRingBoundingProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	nonEmptyLine := gen.AlphaString().SuchThat(func(s string) bool {
		return len(s) > 0 && len(s) <= 64
	})

	properties.Property("count never exceeds capacity", prop.ForAll(
		func(lines []string, capacity int) bool {
			if capacity < 1 || capacity > 32 {
				capacity = 16
			}
			r := NewRing(capacity)
			for _, l := range lines {
				r.Push(l)
			}
			return r.Len() <= r.Cap()
		},
		gen.SliceOf(nonEmptyLine),
		gen.IntRange(1, 32),
	))

	properties.Property("index 0 is the last distinct push", prop.ForAll(
		func(lines []string) bool {
			r := NewRing(16)
			var last string
			for _, l := range lines {
				r.Push(l)
				last = l
			}
			if len(lines) == 0 {
				_, ok := r.Get(0)
				return !ok
			}
			got, ok := r.Get(0)
			return ok && got == last
		},
		gen.SliceOf(nonEmptyLine),
	))

	properties.Property("entries are retrievable newest-first without gaps", prop.ForAll(
		func(n int) bool {
			r := NewRing(16)
			for i := 0; i < n; i++ {
				// Distinct lines so nothing is deduplicated.
				r.Push(string(rune('a'+i%26)) + string(rune('0'+i%10)) + string(rune('A'+i%26)))
			}
			for i := 0; i < r.Len(); i++ {
				if _, ok := r.Get(i); !ok {
					return false
				}
			}
			_, ok := r.Get(r.Len())
			return !ok
		},
		gen.IntRange(0, 64),
	))

	properties.TestingRun(t)
}
