// Package multidb implements the multi-database fan-out of §4.5: N
// sub-backends presented as one, with doc-ids remapped to a stable,
// collision-free interleaving. Grounded on the reference platform's
// shard.Router (internal/indexer/shard), generalized from "N
// indexer.Engine shards queried then merged ad hoc" into "N backend.Backend
// instances behind a single backend.Backend implementation" per the
// Design Notes addition in DESIGN.md/SPEC_FULL.md §9.
package multidb

import (
	"context"
	"log/slog"
	"sync"

	"github.com/vikram-desai/retrieva/internal/retrieval/backend"
)

// MultiDB fans out over N sub-backends, each addressed 0-based.
type MultiDB struct {
	subs   []backend.Backend
	mu     sync.RWMutex
	logger *slog.Logger
}

// New wraps an ordered slice of sub-backends. The slice's order defines
// each sub's stride index used by the doc-id remap.
func New(subs []backend.Backend) *MultiDB {
	return &MultiDB{subs: subs, logger: slog.Default().With("component", "multidb")}
}

// stride is the number of sub-backends, used in the remap formula.
func (m *MultiDB) stride() int { return len(m.subs) }

// Remap converts a sub-backend's local doc-id to the global id: sub i
// (0-based) with local id l maps to (l-1)*N + i + 1.
func (m *MultiDB) Remap(sub int, local uint64) uint64 {
	n := uint64(m.stride())
	return (local-1)*n + uint64(sub) + 1
}

// Unmap recovers (sub index, local id) from a global id.
func (m *MultiDB) Unmap(global uint64) (sub int, local uint64) {
	n := uint64(m.stride())
	g := global - 1
	sub = int(g % n)
	local = g/n + 1
	return sub, local
}

func (m *MultiDB) DocCount(ctx context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var total int64
	for _, s := range m.subs {
		c, err := s.DocCount(ctx)
		if err != nil {
			return 0, err
		}
		total += c
	}
	return total, nil
}

// AvgLength is the weighted average: sum(subcount*subavlen)/doccount.
func (m *MultiDB) AvgLength(ctx context.Context) (float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var totalDocs int64
	var totalLen float64
	for _, s := range m.subs {
		c, err := s.DocCount(ctx)
		if err != nil {
			return 0, err
		}
		avg, err := s.AvgLength(ctx)
		if err != nil {
			return 0, err
		}
		totalDocs += c
		totalLen += avg * float64(c)
	}
	if totalDocs == 0 {
		return 0, nil
	}
	return totalLen / float64(totalDocs), nil
}

// TermFreq sums each sub's document frequency for term.
func (m *MultiDB) TermFreq(ctx context.Context, term string) (int64, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var total int64
	var found bool
	for _, s := range m.subs {
		tf, ok, err := s.TermFreq(ctx, term)
		if err != nil {
			return 0, false, err
		}
		if ok {
			found = true
			total += tf
		}
	}
	return total, found, nil
}

func (m *MultiDB) DocLength(ctx context.Context, docID uint64) (uint32, error) {
	sub, local := m.Unmap(docID)
	return m.subs[sub].DocLength(ctx, local)
}

// PostingList opens a fan-out iterator across every sub-backend, merging
// by remapped doc-id.
func (m *MultiDB) PostingList(ctx context.Context, term string, withPositions bool) (backend.PostingIterator, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	its := make([]backend.PostingIterator, 0, len(m.subs))
	for _, s := range m.subs {
		it, err := s.PostingList(ctx, term, withPositions)
		if err != nil {
			return nil, err
		}
		its = append(its, it)
	}
	return newFanOutIterator(m, its), nil
}

func (m *MultiDB) TermList(ctx context.Context, docID uint64) (backend.TermIterator, error) {
	sub, local := m.Unmap(docID)
	return m.subs[sub].TermList(ctx, local)
}

func (m *MultiDB) Document(ctx context.Context, docID uint64) (backend.Document, error) {
	sub, local := m.Unmap(docID)
	doc, err := m.subs[sub].Document(ctx, local)
	if err != nil {
		return backend.Document{}, err
	}
	doc.ID = docID
	return doc, nil
}

func (m *MultiDB) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var firstErr error
	for i, s := range m.subs {
		if err := s.Close(); err != nil {
			m.logger.Error("sub-backend close failed", "sub", i, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// ExactTermFreq looks up a term's full cross-shard document frequency,
// querying every sub — used when expand.Options.UseExactTermfreq is set
// (§4.5's exact_termfreq override).
func (m *MultiDB) ExactTermFreq(ctx context.Context, term string) (int64, error) {
	tf, _, err := m.TermFreq(ctx, term)
	return tf, err
}

// ApproxTermFreq sums TermFreq over only the given sub indices, a cheaper
// stand-in for ExactTermFreq's full fan-out: the relevance-feedback
// expansion's default mode queries just the subs its RSet documents
// actually live in, trading precision for skipping subs the feedback
// never touched (§4.5/§4.6's approximate term-frequency mode).
func (m *MultiDB) ApproxTermFreq(ctx context.Context, term string, subs map[int]struct{}) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var total int64
	for i := range subs {
		if i < 0 || i >= len(m.subs) {
			continue
		}
		tf, ok, err := m.subs[i].TermFreq(ctx, term)
		if err != nil {
			return 0, err
		}
		if ok {
			total += tf
		}
	}
	return total, nil
}

// fanOutIterator merges N sub-backend posting iterators, remapping each
// posting's doc-id through the owning MultiDB.
type fanOutIterator struct {
	owner *MultiDB
	its   []backend.PostingIterator
	cur   []backend.Posting
	valid []bool
	pos   int
	done  bool
}

func newFanOutIterator(owner *MultiDB, its []backend.PostingIterator) *fanOutIterator {
	return &fanOutIterator{
		owner: owner,
		its:   its,
		cur:   make([]backend.Posting, len(its)),
		valid: make([]bool, len(its)),
	}
}

func (f *fanOutIterator) Next() bool {
	// Advance the sub at f.pos (the one that last emitted) once, then
	// find the global-minimum remapped doc-id among all subs.
	if !f.primed() {
		for i := range f.its {
			f.advance(i)
		}
	} else {
		f.advance(f.pos)
	}
	return f.selectMin()
}

func (f *fanOutIterator) primed() bool {
	for _, v := range f.valid {
		if v {
			return true
		}
	}
	return false
}

func (f *fanOutIterator) advance(i int) {
	if f.its[i].Next() {
		f.cur[i] = f.its[i].Posting()
		f.valid[i] = true
	} else {
		f.valid[i] = false
	}
}

func (f *fanOutIterator) selectMin() bool {
	best := -1
	var bestGlobal uint64
	for i, v := range f.valid {
		if !v {
			continue
		}
		global := f.owner.Remap(i, f.cur[i].DocID)
		if best == -1 || global < bestGlobal {
			best = i
			bestGlobal = global
		}
	}
	if best == -1 {
		f.done = true
		return false
	}
	f.pos = best
	return true
}

// SkipTo advances every sub whose current remapped position is behind
// target, then selects the global minimum. Each sub must be checked and
// advanced independently: a mixed-position fan-out (one sub already at or
// past target, another still behind it) cannot be collapsed into a single
// "all behind" decision, since selectMin would otherwise return a behind
// sub's stale doc-id and break the SkipTo contract.
func (f *fanOutIterator) SkipTo(target uint64) bool {
	if f.done {
		return false
	}
	if !f.primed() {
		if !f.advanceAllToward(target) {
			f.done = true
			return false
		}
		return f.selectMin()
	}
	for i, v := range f.valid {
		if !v || f.owner.Remap(i, f.cur[i].DocID) >= target {
			continue
		}
		localTarget := f.localTargetFor(i, target)
		if f.its[i].SkipTo(localTarget) {
			f.cur[i] = f.its[i].Posting()
		} else {
			f.valid[i] = false
		}
	}
	return f.selectMin()
}

// localTargetFor inverts the remap formula per-sub: the smallest local id
// l such that Remap(sub, l) >= target.
func (f *fanOutIterator) localTargetFor(sub int, target uint64) uint64 {
	n := uint64(f.owner.stride())
	offset := uint64(sub) + 1
	if target <= offset {
		return 1
	}
	rem := target - offset
	l := (rem + n - 1) / n
	return l + 1
}

func (f *fanOutIterator) advanceAllToward(target uint64) bool {
	any := false
	for i := range f.its {
		localTarget := f.localTargetFor(i, target)
		if f.its[i].SkipTo(localTarget) {
			f.cur[i] = f.its[i].Posting()
			f.valid[i] = true
			any = true
		} else {
			f.valid[i] = false
		}
	}
	return any
}

func (f *fanOutIterator) Posting() backend.Posting {
	p := f.cur[f.pos]
	p.DocID = f.owner.Remap(f.pos, p.DocID)
	return p
}

func (f *fanOutIterator) TermFreq() int64 {
	var total int64
	for _, it := range f.its {
		total += it.TermFreq()
	}
	return total
}

func (f *fanOutIterator) Close() error {
	var firstErr error
	for _, it := range f.its {
		if err := it.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
