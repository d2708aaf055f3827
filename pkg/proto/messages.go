// Package proto defines the shared message types used for internal RPC
// communication between services in the Distributed Search & Analytics Platform.
//
// These types are hand-written for zero-dependency usage; the repository
// has no .proto sources and no generated code for them.
//
// The hand-written types use JSON struct tags for serialization over the
// platform's lightweight JSON-over-TCP RPC layer (see pkg/grpc).
package proto

// ---------- Common ----------

// Document represents a document across all services.
type Document struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Body        string `json:"body"`
	ContentHash string `json:"content_hash"`
	ContentSize int32  `json:"content_size"`
	ShardID     int32  `json:"shard_id"`
	Status      string `json:"status"`
	CreatedAt   int64  `json:"created_at"`
	IndexedAt   int64  `json:"indexed_at,omitempty"`
}

// Pagination controls limit/offset for list endpoints.
type Pagination struct {
	Limit  int32 `json:"limit"`
	Offset int32 `json:"offset"`
}

// HealthCheckResponse mirrors the gRPC health check spec.
type HealthCheckResponse struct {
	Status string `json:"status"` // SERVING, NOT_SERVING, UNKNOWN
}

// ---------- Search ----------

// SearchRequest is the input to the Search RPC.
type SearchRequest struct {
	Query string `json:"query"`
	Limit int32  `json:"limit"`
}

// SearchResponse is the output of the Search RPC.
type SearchResponse struct {
	Query     string         `json:"query"`
	TotalHits int32          `json:"total_hits"`
	Results   []SearchResult `json:"results"`
	LatencyMs int64          `json:"latency_ms"`
}

// SearchResult is a single scored document in the result set.
type SearchResult struct {
	DocID string  `json:"doc_id"`
	Title string  `json:"title"`
	Score float32 `json:"score"`
}

// SuggestRequest is the input to the Suggest RPC.
type SuggestRequest struct {
	Prefix   string `json:"prefix"`
	MaxItems int32  `json:"max_items"`
}

// SuggestResponse is the output of the Suggest RPC.
type SuggestResponse struct {
	Suggestions []string `json:"suggestions"`
}

// ---------- Index ----------

// IndexRequest is the input to the IndexDocument RPC.
type IndexRequest struct {
	DocumentID string `json:"document_id"`
	Title      string `json:"title"`
	Body       string `json:"body"`
	ShardID    int32  `json:"shard_id"`
}

// IndexResponse is the output of the IndexDocument RPC.
type IndexResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// StatsRequest optionally filters by shard (0 = all).
type StatsRequest struct {
	ShardID int32 `json:"shard_id"`
}

// StatsResponse contains index-level statistics.
type StatsResponse struct {
	TotalDocs      int64       `json:"total_docs"`
	TotalSegments  int64       `json:"total_segments"`
	TotalSizeBytes int64       `json:"total_size_bytes"`
	Shards         []ShardStat `json:"shards,omitempty"`
}

// ShardStat holds per-shard statistics.
type ShardStat struct {
	ShardID      int32 `json:"shard_id"`
	DocCount     int64 `json:"doc_count"`
	SegmentCount int64 `json:"segment_count"`
	SizeBytes    int64 `json:"size_bytes"`
}

// FlushRequest triggers a segment flush.
type FlushRequest struct {
	ShardID int32 `json:"shard_id"`
}

// FlushResponse confirms the flush.
type FlushResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// ---------- Expand ----------

// ExpandRequest is the input to the Expand RPC: pseudo-relevance feedback
// over a set of relevant doc-ids.
type ExpandRequest struct {
	RelevantDocIDs   []uint64 `json:"relevant_doc_ids"`
	MaxItems         int32    `json:"max_items"`
	UseQueryTerms    bool     `json:"use_query_terms"`
	UseExactTermfreq bool     `json:"use_exact_termfreq"`
	QueryTerms       []string `json:"query_terms,omitempty"`
}

// ExpandResponse is the output of the Expand RPC.
type ExpandResponse struct {
	Items []ExpandItem `json:"items"`
}

// ExpandItem is one expansion candidate term.
type ExpandItem struct {
	Term   string  `json:"term"`
	Weight float64 `json:"weight"`
}

// ---------- Backend (remote retrieval backend RPC) ----------

// BackendStatsRequest asks for collection-wide statistics.
type BackendStatsRequest struct{}

// BackendStatsResponse carries collection-wide statistics.
type BackendStatsResponse struct {
	DocCount  int64   `json:"doc_count"`
	AvgLength float64 `json:"avg_length"`
}

// PostingListRequest asks for a term's full posting list.
type PostingListRequest struct {
	Term          string `json:"term"`
	WithPositions bool   `json:"with_positions"`
}

// PostingListResponse carries a term's postings and document frequency.
type PostingListResponse struct {
	Exists   bool             `json:"exists"`
	TermFreq int64            `json:"term_freq"`
	Postings []RemotePosting  `json:"postings"`
}

// RemotePosting is the wire form of backend.Posting.
type RemotePosting struct {
	DocID     uint64   `json:"doc_id"`
	WDF       uint32   `json:"wdf"`
	Positions []uint32 `json:"positions,omitempty"`
}

// TermListRequest asks for one document's distinct terms.
type TermListRequest struct {
	DocID uint64 `json:"doc_id"`
}

// TermListResponse carries a document's distinct terms and their wdf.
type TermListResponse struct {
	Entries []RemoteTermEntry `json:"entries"`
}

// RemoteTermEntry is one term occurring in a TermListRequest's document.
type RemoteTermEntry struct {
	Term string `json:"term"`
	WDF  uint32 `json:"wdf"`
}

// DocFetchRequest asks for a document's blob and key fields.
type DocFetchRequest struct {
	DocID uint64 `json:"doc_id"`
}

// DocFetchResponse carries a fetched document.
type DocFetchResponse struct {
	Found  bool           `json:"found"`
	Length uint32         `json:"length"`
	Data   []byte         `json:"data,omitempty"`
	Keys   map[int][]byte `json:"keys,omitempty"`
}
