package query

import (
	"context"
	"testing"

	"github.com/vikram-desai/retrieva/internal/retrieval/backend"
	"github.com/vikram-desai/retrieva/internal/retrieval/backend/memory"
)

func TestCanonicalizeFlattensAssociativeOr(t *testing.T) {
	root := NewCompound(OpOr,
		NewCompound(OpOr, NewTerm("a"), NewTerm("b")),
		NewTerm("c"),
	)
	plan, err := Canonicalize(root, false, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(plan.Root.Children) != 3 {
		t.Fatalf("flattened OR should have 3 children, got %d", len(plan.Root.Children))
	}
}

func TestCanonicalizeFlattensAssociativeAnd(t *testing.T) {
	root := NewCompound(OpAnd,
		NewTerm("a"),
		NewCompound(OpAnd, NewTerm("b"), NewTerm("c")),
	)
	plan, err := Canonicalize(root, false, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(plan.Root.Children) != 3 {
		t.Fatalf("flattened AND should have 3 children, got %d", len(plan.Root.Children))
	}
}

func TestCanonicalizeDoesNotFlattenPhrase(t *testing.T) {
	root := NewCompound(OpPhrase,
		NewCompound(OpPhrase, NewTerm("a"), NewTerm("b")),
		NewTerm("c"),
	)
	plan, err := Canonicalize(root, false, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(plan.Root.Children) != 2 {
		t.Fatalf("PHRASE should never flatten, got %d children", len(plan.Root.Children))
	}
}

func TestCanonicalizeCollapsesDuplicateOrPositions(t *testing.T) {
	a1 := NewTerm("a")
	a1.Position = 1
	a2 := NewTerm("a")
	a2.Position = 1
	root := NewCompound(OpOr, a1, a2)
	plan, err := Canonicalize(root, false, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(plan.Root.Children) != 1 {
		t.Fatalf("identical-position duplicates should collapse to 1, got %d", len(plan.Root.Children))
	}
	if plan.Root.Children[0].WQF != 2 {
		t.Fatalf("collapsed wqf = %d, want 2 (summed)", plan.Root.Children[0].WQF)
	}
}

func TestCanonicalizeRejectsEmptyOperandOfAnd(t *testing.T) {
	root := NewCompound(OpAnd, NewTerm("a"), NewEmpty())
	_, err := Canonicalize(root, false, 0)
	if err == nil {
		t.Fatal("expected error for Empty operand of AND")
	}
}

func TestCanonicalizeAllowsEmptyOperandOfOr(t *testing.T) {
	root := NewCompound(OpOr, NewTerm("a"), NewEmpty())
	if _, err := Canonicalize(root, false, 0); err != nil {
		t.Fatalf("an Empty operand of OR should not be rejected: %v", err)
	}
}

func TestCanonicalizeRejectsEmptyTermName(t *testing.T) {
	_, err := Canonicalize(NewTerm(""), false, 0)
	if err == nil {
		t.Fatal("expected error for empty term name")
	}
}

func TestCanonicalizeBooleanFlagPropagatesToLeaves(t *testing.T) {
	plan, err := Canonicalize(NewTerm("a"), true, 0)
	if err != nil {
		t.Fatal(err)
	}
	if !plan.Root.Boolean {
		t.Fatal("a boolQuery=true Canonicalize should mark its leaf Boolean")
	}
}

func TestCanonicalizeFilterAllowsBooleanChildren(t *testing.T) {
	root := NewCompound(OpFilter, NewTerm("a"), NewTerm("b"))
	if _, err := Canonicalize(root, true, 0); err != nil {
		t.Fatalf("FILTER's own children should not trip the non-FILTER nesting check: %v", err)
	}
}

// TestCanonicalizeWholeQueryBooleanOrIsNotNestedBoolean guards against
// treating the ambient boolQuery flag as if every descendant were an
// independently-marked nested boolean sub-query: a whole-query
// set_bool(true) over OR(...) must canonicalize cleanly (S3/S9), not trip
// the "boolean sub-query nested under a non-FILTER compound" rule, since
// nothing here is independently boolean relative to its enclosing query.
func TestCanonicalizeWholeQueryBooleanOrIsNotNestedBoolean(t *testing.T) {
	root := NewCompound(OpOr, NewTerm("inmemory"), NewTerm("word"))
	plan, err := Canonicalize(root, true, 0)
	if err != nil {
		t.Fatalf("a whole-query boolean OR should canonicalize without error: %v", err)
	}
	if !plan.Boolean {
		t.Fatal("expected Plan.Boolean to be true")
	}
	for _, c := range plan.Root.Children {
		if !c.Boolean {
			t.Fatal("every leaf under a whole-query boolQuery=true should itself be Boolean")
		}
	}
}

// TestCanonicalizeRejectsIndependentlyMarkedBooleanSubQuery is the
// converse: a sub-query marked boolean on its own, nested under a
// non-FILTER compound whose enclosing query is NOT boolean, is the actual
// ill-formed composition the rule exists to catch.
func TestCanonicalizeRejectsIndependentlyMarkedBooleanSubQuery(t *testing.T) {
	nestedBoolean := NewCompound(OpOr, NewTerm("a"), NewTerm("b"))
	nestedBoolean.Boolean = true
	root := NewCompound(OpAnd, nestedBoolean, NewTerm("c"))
	if _, err := Canonicalize(root, false, 0); err == nil {
		t.Fatal("expected error: independently-boolean sub-query nested under non-FILTER AND in a non-boolean query")
	}
}

func TestCanonicalizeQueryLengthSumsLeafWQFs(t *testing.T) {
	root := NewCompound(OpOr, NewTerm("a"), NewTerm("b"), NewTerm("c"))
	plan, err := Canonicalize(root, false, 0)
	if err != nil {
		t.Fatal(err)
	}
	if plan.Length != 3 {
		t.Fatalf("Length = %v, want 3", plan.Length)
	}
}

func TestApplyOrCapDropsWeakestChildren(t *testing.T) {
	strong := NewTerm("strong")
	strong.WQF = 10
	weak := NewTerm("weak")
	weak.WQF = 1
	root := NewCompound(OpOr, strong, weak, NewTerm("mid"))
	plan, err := Canonicalize(root, false, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(plan.Root.Children) != 2 {
		t.Fatalf("OR cap should keep 2 children, got %d", len(plan.Root.Children))
	}
	if plan.Root.Children[0].Term != "strong" {
		t.Fatalf("the highest-wqf term should survive the cap, got %q", plan.Root.Children[0].Term)
	}
}

func seedQueryBackend(t *testing.T) *memory.Backend {
	t.Helper()
	b := memory.New()
	ctx := context.Background()
	b.BeginSession(ctx)
	defer b.EndSession(ctx)
	docs := []struct {
		id    uint64
		terms map[string][]uint32
	}{
		{1, map[string][]uint32{"search": {0}, "engine": {1}}},
		{2, map[string][]uint32{"search": {0}}},
		{3, map[string][]uint32{"engine": {0}}},
	}
	for _, d := range docs {
		if err := b.AddDocument(ctx, backend.Document{ID: d.id, Length: 5}, d.terms); err != nil {
			t.Fatal(err)
		}
	}
	return b
}

func TestBuildCompilesAndMatchesCorrectDocs(t *testing.T) {
	b := seedQueryBackend(t)
	root := NewCompound(OpAnd, NewTerm("search"), NewTerm("engine"))
	plan, err := Canonicalize(root, false, 0)
	if err != nil {
		t.Fatal(err)
	}
	node, err := Build(context.Background(), b, plan)
	if err != nil {
		t.Fatal(err)
	}
	var got []uint64
	cur := node
	for {
		next, ok := cur.Next(0)
		cur = next
		if !ok {
			break
		}
		got = append(got, cur.DocID())
	}
	if len(got) != 1 || got[0] != 1 {
		t.Fatalf("AND(search,engine) should match only doc 1, got %v", got)
	}
}

func TestBuildUnknownTermYieldsEmpty(t *testing.T) {
	b := seedQueryBackend(t)
	plan, err := Canonicalize(NewTerm("nonexistent"), false, 0)
	if err != nil {
		t.Fatal(err)
	}
	node, err := Build(context.Background(), b, plan)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := node.Next(0); ok {
		t.Fatal("unknown term should compile to an Empty node")
	}
}
