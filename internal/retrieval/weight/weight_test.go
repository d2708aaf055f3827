package weight

import (
	"math"
	"testing"
)

func TestBoolModelAlwaysZero(t *testing.T) {
	m := NewModel(Stats{CollectionSize: 1000, TermFreq: 10, AvgLength: 100}, 3, 3, true)
	if w := m.Weight(5, 50); w != 0 {
		t.Fatalf("bool model Weight = %v, want 0", w)
	}
	if mw := m.MaxWeight(); mw != 0 {
		t.Fatalf("bool model MaxWeight = %v, want 0", mw)
	}
}

func TestWeightIsMonotoneInWDF(t *testing.T) {
	m := NewModel(Stats{CollectionSize: 1000, TermFreq: 10, AvgLength: 100}, 1, 1, false)
	low := m.Weight(1, 100)
	high := m.Weight(5, 100)
	if !(high > low) {
		t.Fatalf("Weight(5,100)=%v should exceed Weight(1,100)=%v", high, low)
	}
}

func TestWeightDecreasesWithLongerDocuments(t *testing.T) {
	m := NewModel(Stats{CollectionSize: 1000, TermFreq: 10, AvgLength: 100}, 1, 1, false)
	short := m.Weight(3, 50)
	long := m.Weight(3, 500)
	if !(short > long) {
		t.Fatalf("Weight at doc len 50 (%v) should exceed doc len 500 (%v)", short, long)
	}
}

func TestWeightNeverExceedsMaxWeight(t *testing.T) {
	m := NewModel(Stats{CollectionSize: 1000, TermFreq: 10, AvgLength: 100}, 2, 2, false)
	max := m.MaxWeight()
	for _, wdf := range []uint32{1, 2, 5, 50, 1000} {
		for _, dl := range []uint32{1, 10, 100, 1000} {
			if w := m.Weight(wdf, dl); w > max+1e-9 {
				t.Fatalf("Weight(%d,%d)=%v exceeds MaxWeight=%v", wdf, dl, w, max)
			}
		}
	}
}

func TestZeroTermFreqGivesZeroIDF(t *testing.T) {
	m := NewModel(Stats{CollectionSize: 1000, TermFreq: 0, AvgLength: 100}, 1, 1, false)
	if w := m.Weight(5, 100); w != 0 {
		t.Fatalf("Weight with termFreq=0 = %v, want 0 (idf=0)", w)
	}
}

func TestZeroAvgLengthGivesZeroWeight(t *testing.T) {
	m := NewModel(Stats{CollectionSize: 1000, TermFreq: 10, AvgLength: 0}, 1, 1, false)
	if w := m.Weight(5, 100); w != 0 {
		t.Fatalf("Weight with avgLength=0 = %v, want 0", w)
	}
}

func TestHigherWithinQueryFrequencyIncreasesWeight(t *testing.T) {
	low := NewModel(Stats{CollectionSize: 1000, TermFreq: 10, AvgLength: 100}, 1, 1, false)
	high := NewModel(Stats{CollectionSize: 1000, TermFreq: 10, AvgLength: 100}, 4, 4, false)
	if !(high.Weight(3, 100) > low.Weight(3, 100)) {
		t.Fatal("higher wqf should yield higher weight for the same posting")
	}
}

func TestIDFDecreasesAsTermBecomesMoreCommon(t *testing.T) {
	rare := idf(1000, 5)
	common := idf(1000, 500)
	if !(rare > common) {
		t.Fatalf("idf(rare)=%v should exceed idf(common)=%v", rare, common)
	}
	if common < 0 {
		t.Fatalf("idf should stay non-negative for termFreq < collectionSize, got %v", common)
	}
}

func TestTfNormSaturatesTowardK1Plus1(t *testing.T) {
	got := tfNorm(1e9, 1, 100)
	want := k1 + 1
	if math.Abs(got-want) > 1e-6 {
		t.Fatalf("tfNorm with huge wdf and tiny doc length = %v, want close to %v", got, want)
	}
}
