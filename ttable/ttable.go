// Package ttable is a fixed-size transposition table shared by search
// workers. Entries are keyed by the full 64-bit position fingerprint and
// carry a value, the depth it was searched to, the kind of bound the value
// represents and the best move found.
package ttable

import (
	"math"
	"math/bits"
	"sync"
	"sync/atomic"

	"github.com/pbnjay/memory"
	"github.com/rs/zerolog/log"

	"github.com/domino14/morris/move"
)

type Bound uint8

const (
	BoundNone Bound = iota
	BoundExact
	// BoundLower means the true value is at least the stored value (the
	// search failed high).
	BoundLower
	// BoundUpper means the true value is at most the stored value (the
	// search failed low).
	BoundUpper
)

func (b Bound) String() string {
	switch b {
	case BoundExact:
		return "exact"
	case BoundLower:
		return "lower"
	case BoundUpper:
		return "upper"
	}
	return "none"
}

// ValueUnknown is returned by Probe when no usable value is stored. It is
// outside the range of values the table can hold.
const ValueUnknown = math.MinInt16

const (
	// MaxValue bounds the magnitude of stored values.
	MaxValue = math.MaxInt16
	// MaxDepth is the deepest depth a record can hold. Save and Probe
	// both treat deeper depths as MaxDepth.
	MaxDepth = math.MaxInt8

	entrySize  = 16
	bucketSize = 2
	maxShards  = 256

	MinCapacity = 1 << 10
	MaxCapacity = 1 << 30
)

// Entry is one table record. 16 bytes (entrySize).
type Entry struct {
	Key        uint64
	Value      int16
	Best       move.Move
	Depth      int8
	Bound      Bound
	Generation uint8
}

type Stats struct {
	Lookups  uint64
	Hits     uint64
	Stores   uint64
	Rejected uint64
	// Collisions counts probes that found other live positions in the
	// key's bucket but not the key itself.
	Collisions uint64
}

type TranspositionTable struct {
	table      []Entry
	bucketMask uint64
	shards     []sync.RWMutex
	shardMask  uint64
	// generation is written only while every shard lock is held.
	generation uint8

	lookups    atomic.Uint64
	hits       atomic.Uint64
	stores     atomic.Uint64
	rejected   atomic.Uint64
	collisions atomic.Uint64
}

// New creates a table holding about capacity entries. The capacity is
// rounded down to a power of two and clamped to [MinCapacity, MaxCapacity].
func New(capacity int) *TranspositionTable {
	if capacity < MinCapacity {
		capacity = MinCapacity
	}
	if capacity > MaxCapacity {
		capacity = MaxCapacity
	}
	numEntries := 1 << (bits.Len(uint(capacity)) - 1)
	numBuckets := numEntries / bucketSize
	numShards := min(maxShards, numBuckets)

	t := &TranspositionTable{
		table:      make([]Entry, numEntries),
		bucketMask: uint64(numBuckets - 1),
		shards:     make([]sync.RWMutex, numShards),
		shardMask:  uint64(numShards - 1),
	}
	return t
}

// NewFromMemoryFraction sizes the table to use about fractionOfMemory of
// the machine's total memory.
func NewFromMemoryFraction(fractionOfMemory float64) *TranspositionTable {
	totalMem := memory.TotalMemory()
	desired := fractionOfMemory * float64(totalMem) / entrySize
	capacity := MinCapacity
	if desired > float64(MaxCapacity) {
		capacity = MaxCapacity
	} else if desired > MinCapacity {
		capacity = int(desired)
	}
	t := New(capacity)
	log.Info().Int("num-elems", len(t.table)).
		Float64("desired-num-elems", desired).
		Int("estimated-total-memory-bytes", len(t.table)*entrySize).
		Uint64("total-system-memory-bytes", totalMem).
		Int("shards", len(t.shards)).
		Msg("transposition-table-size")
	return t
}

// Capacity is the number of entries the table holds.
func (t *TranspositionTable) Capacity() int {
	return len(t.table)
}

func (t *TranspositionTable) bucket(key uint64) (idx int, lock *sync.RWMutex) {
	b := key & t.bucketMask
	return int(b) * bucketSize, &t.shards[b&t.shardMask]
}

func (t *TranspositionTable) live(e *Entry) bool {
	return e.Bound != BoundNone && e.Generation == t.generation
}

// Probe looks up key. It returns a usable value and its bound when the
// stored record is live, at least depth deep and its bound decides the
// (alpha, beta) window:
//
//   - an exact value is always usable;
//   - an upper bound only when it is <= alpha;
//   - a lower bound only when it is >= beta.
//
// Otherwise value is ValueUnknown and bound is BoundNone. The best move of
// a live record is returned either way, as an ordering hint.
func (t *TranspositionTable) Probe(key uint64, depth, alpha, beta int) (int, Bound, move.Move) {
	t.lookups.Add(1)
	depth = min(depth, MaxDepth)
	idx, lock := t.bucket(key)
	lock.RLock()
	defer lock.RUnlock()

	var e *Entry
	others := false
	for i := idx; i < idx+bucketSize; i++ {
		if !t.live(&t.table[i]) {
			continue
		}
		if t.table[i].Key == key {
			e = &t.table[i]
			break
		}
		others = true
	}
	if e == nil {
		if others {
			t.collisions.Add(1)
		}
		return ValueUnknown, BoundNone, move.None
	}
	if int(e.Depth) < depth {
		return ValueUnknown, BoundNone, e.Best
	}
	v := int(e.Value)
	switch {
	case e.Bound == BoundExact,
		e.Bound == BoundUpper && v <= alpha,
		e.Bound == BoundLower && v >= beta:
		t.hits.Add(1)
		return v, e.Bound, e.Best
	}
	return ValueUnknown, BoundNone, e.Best
}

// Hint returns the best move of a live record for key, or move.None.
func (t *TranspositionTable) Hint(key uint64) move.Move {
	idx, lock := t.bucket(key)
	lock.RLock()
	defer lock.RUnlock()
	for i := idx; i < idx+bucketSize; i++ {
		if t.live(&t.table[i]) && t.table[i].Key == key {
			return t.table[i].Best
		}
	}
	return move.None
}

// Save stores a search result for key and reports whether it was written.
// A record for the same key is only replaced when it is stale, carries no
// bound, or was searched no deeper than depth. Records of other keys are
// evicted silently when the bucket is full: stale ones first, then the
// shallowest. Depths are clamped to [0, MaxDepth].
func (t *TranspositionTable) Save(key uint64, value, depth int, bound Bound, best move.Move) bool {
	value = max(min(value, MaxValue), -MaxValue)
	depth = max(min(depth, MaxDepth), 0)

	idx, lock := t.bucket(key)
	lock.Lock()
	defer lock.Unlock()

	slot := -1
	for i := idx; i < idx+bucketSize; i++ {
		e := &t.table[i]
		if e.Key != key || !t.live(e) {
			continue
		}
		if int(e.Depth) > depth {
			t.rejected.Add(1)
			return false
		}
		slot = i
		break
	}
	if slot < 0 {
		slot = t.victim(idx)
	}
	t.table[slot] = Entry{
		Key:        key,
		Value:      int16(value),
		Best:       best,
		Depth:      int8(depth),
		Bound:      bound,
		Generation: t.generation,
	}
	t.stores.Add(1)
	return true
}

func (t *TranspositionTable) victim(idx int) int {
	v := idx
	for i := idx; i < idx+bucketSize; i++ {
		if !t.live(&t.table[i]) {
			return i
		}
		if t.table[i].Depth < t.table[v].Depth {
			v = i
		}
	}
	return v
}

func (t *TranspositionTable) lockAll() {
	for i := range t.shards {
		t.shards[i].Lock()
	}
}

func (t *TranspositionTable) unlockAll() {
	for i := range t.shards {
		t.shards[i].Unlock()
	}
}

// Clear logically empties the table by starting a new generation; records
// from older generations are ignored from then on. When the generation
// counter wraps, the table is physically wiped instead.
func (t *TranspositionTable) Clear() {
	t.lockAll()
	defer t.unlockAll()
	if t.generation == math.MaxUint8 {
		clear(t.table)
		t.generation = 0
		log.Debug().Msg("transposition-table-wiped")
		return
	}
	t.generation++
}

// Wipe zeroes every record and resets the generation.
func (t *TranspositionTable) Wipe() {
	t.lockAll()
	defer t.unlockAll()
	clear(t.table)
	t.generation = 0
}

func (t *TranspositionTable) Generation() uint8 {
	t.shards[0].RLock()
	defer t.shards[0].RUnlock()
	return t.generation
}

func (t *TranspositionTable) Stats() Stats {
	return Stats{
		Lookups:    t.lookups.Load(),
		Hits:       t.hits.Load(),
		Stores:     t.stores.Load(),
		Rejected:   t.rejected.Load(),
		Collisions: t.collisions.Load(),
	}
}

func (t *TranspositionTable) ResetStats() {
	t.lookups.Store(0)
	t.hits.Store(0)
	t.stores.Store(0)
	t.rejected.Store(0)
	t.collisions.Store(0)
}
