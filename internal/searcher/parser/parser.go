// Package parser turns a raw query string into a query.Node tree ready
// for query.Canonicalize/Build. Syntax follows the reference platform's
// original space-separated AND/OR/NOT scanner (internal/searcher/parser),
// extended with double-quoted phrases ("a b c") and NEAR/n proximity
// clauses (a NEAR/5 b) to reach §4.2's PHRASE/NEAR operators.
package parser

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/vikram-desai/retrieva/internal/indexer/tokenizer"
	"github.com/vikram-desai/retrieva/internal/retrieval/query"
)

// QueryType records the boolean connective last seen at the top level of
// the query (AND is the default, same as the reference platform).
type QueryType int

const (
	QueryAND QueryType = iota
	QueryOR
)

// QueryPlan is the parsed form of a raw query string. Terms/ExcludeTerms
// remain a flat list for logging, caching keys, and analytics events;
// Root is the query.Node tree that is actually canonicalised and built.
type QueryPlan struct {
	Terms        []string
	Type         QueryType
	ExcludeTerms []string
	RawQuery     string
	Root         *query.Node
}

const defaultNearWindow = 10

// Parse tokenizes a raw query string into a QueryPlan.
func Parse(raw string) *QueryPlan {
	plan := &QueryPlan{
		Terms:        make([]string, 0),
		ExcludeTerms: make([]string, 0),
		Type:         QueryAND,
		RawQuery:     raw,
	}
	fields := splitRespectingQuotes(raw)
	if len(fields) == 0 {
		plan.Root = query.NewEmpty()
		return plan
	}

	var clauses []*query.Node
	excludeNext := false
	for i := 0; i < len(fields); {
		word := fields[i]
		switch strings.ToUpper(word) {
		case "AND":
			plan.Type = QueryAND
			i++
			continue
		case "OR":
			plan.Type = QueryOR
			i++
			continue
		case "NOT":
			excludeNext = true
			i++
			continue
		}

		if strings.HasPrefix(word, `"`) {
			words, consumed := collectPhrase(fields[i:])
			i += consumed
			node, terms := buildPhrase(words)
			if node == nil {
				continue
			}
			if excludeNext {
				plan.ExcludeTerms = append(plan.ExcludeTerms, terms...)
				excludeNext = false
				continue
			}
			plan.Terms = append(plan.Terms, terms...)
			clauses = append(clauses, node)
			continue
		}

		if i+2 < len(fields) && strings.HasPrefix(strings.ToUpper(fields[i+1]), "NEAR") {
			left := tokenizeTerm(word)
			right := tokenizeTerm(fields[i+2])
			window := nearWindow(fields[i+1])
			i += 3
			if left == "" || right == "" {
				continue
			}
			plan.Terms = append(plan.Terms, left, right)
			clauses = append(clauses, &query.Node{
				Kind:   query.KindCompound,
				Op:     query.OpNear,
				Window: window,
				Children: []*query.Node{
					{Kind: query.KindTerm, Term: left, WQF: 1, Position: 1},
					{Kind: query.KindTerm, Term: right, WQF: 1, Position: 2},
				},
			})
			continue
		}

		term := tokenizeTerm(word)
		i++
		if term == "" {
			continue
		}
		if excludeNext {
			plan.ExcludeTerms = append(plan.ExcludeTerms, term)
			excludeNext = false
			continue
		}
		plan.Terms = append(plan.Terms, term)
		clauses = append(clauses, query.NewTerm(term))
	}

	plan.Root = combine(clauses, plan.Type, plan.ExcludeTerms)
	return plan
}

// splitRespectingQuotes is strings.Fields, except a double-quoted run of
// words (including its interior spaces) is kept together as one field.
func splitRespectingQuotes(s string) []string {
	var fields []string
	var cur strings.Builder
	inQuotes := false
	flush := func() {
		if cur.Len() > 0 {
			fields = append(fields, cur.String())
			cur.Reset()
		}
	}
	for _, r := range s {
		switch {
		case r == '"':
			inQuotes = !inQuotes
			cur.WriteRune(r)
		case unicode.IsSpace(r) && !inQuotes:
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return fields
}

// collectPhrase strips the quotes from fields[0] and splits its interior
// into words. The phrase was already kept as a single field by
// splitRespectingQuotes, so it always consumes exactly one field.
func collectPhrase(fields []string) ([]string, int) {
	if len(fields) == 0 {
		return nil, 0
	}
	return strings.Fields(strings.Trim(fields[0], `"`)), 1
}

// buildPhrase tokenizes each word of a phrase into a positional term node.
// A phrase reducing to a single surviving term (stop-words removed the
// rest) degrades to a plain term leaf rather than a one-child PHRASE.
func buildPhrase(words []string) (*query.Node, []string) {
	var kids []*query.Node
	var terms []string
	pos := uint32(1)
	for _, w := range words {
		t := tokenizeTerm(w)
		if t == "" {
			continue
		}
		kids = append(kids, &query.Node{Kind: query.KindTerm, Term: t, WQF: 1, Position: pos})
		terms = append(terms, t)
		pos++
	}
	switch len(kids) {
	case 0:
		return nil, nil
	case 1:
		return kids[0], terms
	default:
		return &query.Node{Kind: query.KindCompound, Op: query.OpPhrase, Children: kids, Window: uint32(len(kids))}, terms
	}
}

// nearWindow parses the window size out of a "NEAR" or "NEAR/n" token,
// defaulting to defaultNearWindow when no /n suffix is given.
func nearWindow(tok string) uint32 {
	idx := strings.Index(tok, "/")
	if idx < 0 || idx+1 >= len(tok) {
		return defaultNearWindow
	}
	n, err := strconv.Atoi(tok[idx+1:])
	if err != nil || n <= 0 {
		return defaultNearWindow
	}
	return uint32(n)
}

func tokenizeTerm(word string) string {
	tokens := tokenizer.Tokenize(word)
	if len(tokens) == 0 {
		return ""
	}
	return tokens[0].Term
}

// combine joins the top-level clauses with the query's AND/OR connective
// and wraps the result in an AND-NOT over any excluded terms.
func combine(clauses []*query.Node, qtype QueryType, excludeTerms []string) *query.Node {
	if len(clauses) == 0 {
		return query.NewEmpty()
	}
	op := query.OpAnd
	if qtype == QueryOR {
		op = query.OpOr
	}
	root := clauses[0]
	if len(clauses) > 1 {
		root = query.NewCompound(op, clauses...)
	}
	if len(excludeTerms) == 0 {
		return root
	}
	exKids := make([]*query.Node, len(excludeTerms))
	for i, t := range excludeTerms {
		exKids[i] = query.NewTerm(t)
	}
	excl := exKids[0]
	if len(exKids) > 1 {
		excl = query.NewCompound(query.OpOr, exKids...)
	}
	return query.NewCompound(query.OpAndNot, root, excl)
}
