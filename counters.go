package roadusage

import (
	"sync/atomic"

	"github.com/pkg/errors"
)

// Built-in counter names
const (
	COUNTER_WORK = "work"
	COUNTER_FREE = "free"
	COUNTER_LIME = "lime"
	COUNTER_LYFT = "lyft"
	COUNTER_LINK = "link"
)

// CounterFieldPrefix is prefix of counter column in exported network
const CounterFieldPrefix = "count_"

// DefaultCounterNames is minimal set of counters every network carries
var DefaultCounterNames = []string{COUNTER_WORK, COUNTER_FREE, COUNTER_LYFT, COUNTER_LIME, COUNTER_LINK}

// CounterSet is ordered registry of counter names. Each segment keeps one value per registered name
type CounterSet struct {
	names []string
	index map[string]int
}

// NewCounterSet returns registry for given names. Duplicates are ignored
func NewCounterSet(names ...string) *CounterSet {
	set := &CounterSet{
		names: make([]string, 0, len(names)),
		index: make(map[string]int, len(names)),
	}
	for _, name := range names {
		if _, ok := set.index[name]; ok {
			continue
		}
		set.index[name] = len(set.names)
		set.names = append(set.names, name)
	}
	return set
}

// Names returns registered counter names in registration order
func (set *CounterSet) Names() []string {
	names := make([]string, len(set.names))
	copy(names, set.names)
	return names
}

// Index returns position of counter
func (set *CounterSet) Index(name string) (int, bool) {
	idx, ok := set.index[name]
	return idx, ok
}

// Len returns number of registered counters
func (set *CounterSet) Len() int {
	return len(set.names)
}

// FieldName returns exported column name for counter
func FieldName(counter string) string {
	return CounterFieldPrefix + counter
}

// counterRow holds counter values of single segment.
// Values are only incremented, so atomics are enough to avoid lost updates between workers
type counterRow []atomic.Int64

func newCounterRow(n int) counterRow {
	return make(counterRow, n)
}

func (row counterRow) add(idx int, delta int64) error {
	if delta < 0 {
		return errors.Errorf("Counters can't be decremented (delta = %d)", delta)
	}
	row[idx].Add(delta)
	return nil
}

func (row counterRow) get(idx int) int64 {
	return row[idx].Load()
}
