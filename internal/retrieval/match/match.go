// Package match implements the bounded top-k collector of §4.4, grounded
// on the reference platform's merger.Merge container/heap idiom
// (internal/searcher/merger), generalized from merging pre-computed
// []ScoredDoc slices into a collector that drives a postlist.Node tree
// directly so pruning thresholds flow back into Next/SkipTo.
package match

import (
	"container/heap"
	"context"
	"sort"

	"github.com/vikram-desai/retrieva/internal/retrieval/postlist"
	rerr "github.com/vikram-desai/retrieva/pkg/errors"
)

// Options resolves the match_* config keys of §6 into one typed struct,
// per the Design Notes' "config objects" guidance.
type Options struct {
	CollapseKey   int  // 0 = none
	PercentCutoff int  // 0..100
	SortForward   bool // default true
	MaxOrTerms    int  // 0 = unlimited; consulted by the query planner, not here
	First         int
	MaxItems      int
}

// Decider is the caller-supplied match-decider predicate of §4.4. A panic
// inside Decider is recovered at the collector boundary and converted to
// ErrInternal, per §7's decider-must-not-throw propagation policy.
type Decider func(docID uint64) bool

// KeyFetcher resolves a document's collapse-key field, used only when
// Options.CollapseKey != 0.
type KeyFetcher func(ctx context.Context, docID uint64, key int) ([]byte, error)

// Item is one ranked result row.
type Item struct {
	DocID      uint64
	Weight     float64
	CollapseKey []byte
}

// MSet is the result batch returned to callers.
type MSet struct {
	Items       []Item
	First       int
	MBound      int64
	MaxAttained float64
	MaxPossible float64
}

// Collector drives a postlist.Node root through the algorithm of §4.4.
type Collector struct {
	opts    Options
	decider Decider
	keyFn   KeyFetcher
}

// New builds a Collector. decider and keyFn may be nil when unused.
func New(opts Options, decider Decider, keyFn KeyFetcher) *Collector {
	if opts.MaxItems <= 0 {
		opts.MaxItems = 10
	}
	return &Collector{opts: opts, decider: decider, keyFn: keyFn}
}

// heapItem is the pointer-backed heap entry, carrying its own heap index
// so collapse-key eviction can heap.Fix/heap.Remove it in O(log n), the
// way the reference platform's merger tracks ranker.ScoredDoc by value
// but this collector must track entries by identity to support eviction.
type heapItem struct {
	Item
	idx int
}

// Run evaluates root and produces an MSet. ctx cancellation is observed
// between postings for cooperative cancellation of a long-running scan.
func (c *Collector) Run(ctx context.Context, root postlist.Node) (res *MSet, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = rerr.Newf(rerr.ErrInternal, 500, "match decider panicked: %v", r)
		}
	}()

	capacity := c.opts.First + c.opts.MaxItems
	if capacity <= 0 {
		capacity = c.opts.MaxItems
	}
	h := newDocHeap(capacity, c.opts.SortForward)
	collapseIdx := map[string]*heapItem{}

	maxPossible := root.MaxWeight()
	var maxAttained float64
	var mbound int64

	cur := root
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		minWeight := 0.0
		if h.Len() >= capacity && capacity > 0 {
			minWeight = h.items[0].Weight
		}
		next, ok := cur.Next(minWeight)
		cur = next
		if !ok {
			break
		}
		docID := cur.DocID()

		if c.decider != nil && !c.decider(docID) {
			continue
		}
		mbound++

		w := cur.Weight()
		if w > maxAttained {
			maxAttained = w
		}

		var key []byte
		if c.opts.CollapseKey != 0 && c.keyFn != nil {
			key, err = c.keyFn(ctx, docID, c.opts.CollapseKey)
			if err != nil {
				return nil, err
			}
		}

		it := Item{DocID: docID, Weight: w, CollapseKey: key}
		c.offer(h, collapseIdx, it, capacity)
	}

	items := h.sortedDescending()

	first := c.opts.First
	if first > len(items) {
		first = len(items)
	}
	items = items[first:]

	if maxPossible > 0 && c.opts.PercentCutoff > 0 {
		items = applyCutoff(items, maxPossible, c.opts.PercentCutoff)
	}
	if len(items) > c.opts.MaxItems {
		items = items[:c.opts.MaxItems]
	}

	return &MSet{
		Items:       items,
		First:       c.opts.First,
		MBound:      mbound,
		MaxAttained: maxAttained,
		MaxPossible: maxPossible,
	}, nil
}

// offer inserts or replaces a candidate item, honoring collapse-key
// eviction (replace-if-stronger, keep-on-tie per DESIGN.md) and the
// capacity bound.
func (c *Collector) offer(h *docHeap, collapseIdx map[string]*heapItem, it Item, capacity int) {
	if len(it.CollapseKey) > 0 {
		key := string(it.CollapseKey)
		if existing, ok := collapseIdx[key]; ok {
			if it.Weight <= existing.Weight {
				return
			}
			existing.Item = it
			heap.Fix(h, existing.idx)
			return
		}
	}

	entry := &heapItem{Item: it}
	heap.Push(h, entry)
	if len(it.CollapseKey) > 0 {
		collapseIdx[string(it.CollapseKey)] = entry
	}

	if capacity > 0 && h.Len() > capacity {
		weakest := heap.Pop(h).(*heapItem)
		if len(weakest.Item.CollapseKey) > 0 {
			delete(collapseIdx, string(weakest.Item.CollapseKey))
		}
	}
}

func applyCutoff(items []Item, maxPossible float64, percent int) []Item {
	threshold := maxPossible * float64(percent) / 100
	out := items[:0:0]
	for _, it := range items {
		if it.Weight >= threshold {
			out = append(out, it)
		}
	}
	return out
}

// docHeap is a min-heap over heapItem by (weight asc, doc-id tie-break),
// so the weakest candidate sits at index 0 and is the first evicted.
type docHeap struct {
	items       []*heapItem
	sortForward bool
}

func newDocHeap(capacityHint int, sortForward bool) *docHeap {
	return &docHeap{items: make([]*heapItem, 0, capacityHint), sortForward: sortForward}
}

func (h *docHeap) Len() int { return len(h.items) }

func (h *docHeap) Less(i, j int) bool {
	a, b := h.items[i], h.items[j]
	if a.Weight != b.Weight {
		return a.Weight < b.Weight
	}
	if h.sortForward {
		return a.DocID > b.DocID
	}
	return a.DocID < b.DocID
}

func (h *docHeap) Swap(i, j int) {
	h.items[i], h.items[j] = h.items[j], h.items[i]
	h.items[i].idx = i
	h.items[j].idx = j
}

func (h *docHeap) Push(x any) {
	it := x.(*heapItem)
	it.idx = len(h.items)
	h.items = append(h.items, it)
}

func (h *docHeap) Pop() any {
	old := h.items
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	h.items = old[:n-1]
	return it
}

// sortedDescending drains the heap into a strongest-first slice: descending
// weight, ties broken by ascending doc-id when sortForward, else
// descending (§4.4 step 6).
func (h *docHeap) sortedDescending() []Item {
	out := make([]Item, len(h.items))
	for i, it := range h.items {
		out[i] = it.Item
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Weight != out[j].Weight {
			return out[i].Weight > out[j].Weight
		}
		if h.sortForward {
			return out[i].DocID < out[j].DocID
		}
		return out[i].DocID > out[j].DocID
	})
	return out
}
