// Package segment implements a read-only backend.Backend over the
// reference platform's .spdx binary segment format
// (internal/indexer/segment/reader.go, writer.go), kept byte-layout
// compatible (magic bytes, fixed header, JSON dictionary + postings
// blocks, CRC32 footer) and generalized to serve backend.Backend directly
// instead of being consumed only by indexer.Engine.
package segment

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/vikram-desai/retrieva/internal/retrieval/backend"
	rerr "github.com/vikram-desai/retrieva/pkg/errors"
)

const (
	magicBytes    uint32 = 0x53504458
	formatVersion uint32 = 1
	headerSize    int    = 80
	footerSize    int    = 32
)

type header struct {
	magic      uint32
	version    uint32
	termCount  uint32
	docCount   uint32
	avgLength  float64
	dictOffset int64
	dictSize   int64
	postOffset int64
	postSize   int64
}

// posting is the on-disk representation of backend.Posting.
type posting struct {
	DocID     uint64   `json:"d"`
	WDF       uint32   `json:"w"`
	Positions []uint32 `json:"p,omitempty"`
}

// docRecord is the on-disk representation of a document's length/blob/keys.
type docRecord struct {
	DocID  uint64         `json:"id"`
	Length uint32         `json:"len"`
	Data   []byte         `json:"data,omitempty"`
	Keys   map[int][]byte `json:"keys,omitempty"`
}

type dictEntry struct {
	Term       string `json:"t"`
	PostOffset int64  `json:"o"`
	PostLen    int    `json:"l"`
	DocFreq    int    `json:"d"`
}

func init() {
	ctor := func(ctx context.Context, cfg backend.Config) (backend.Backend, error) {
		return Open(cfg.Path)
	}
	backend.Register(ctor, "segment", "quartz", "da", "db")
}

// Backend is a read-only segment-file backend.
type Backend struct {
	path     string
	file     *os.File
	header   header
	dict     []dictEntry
	postBase int64
	docs     map[uint64]docRecord
}

// Path returns the filesystem path this segment was opened from.
func (b *Backend) Path() string { return b.path }

// Open reads and indexes a .spdx segment file at path.
func Open(path string) (*Backend, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, rerr.Newf(rerr.ErrOpeningError, 500, "opening segment file: %v", err)
	}
	hdrBytes := make([]byte, headerSize)
	if _, err := f.ReadAt(hdrBytes, 0); err != nil {
		f.Close()
		return nil, rerr.Newf(rerr.ErrOpeningError, 500, "reading segment header: %v", err)
	}
	magic := binary.LittleEndian.Uint32(hdrBytes[0:4])
	if magic != magicBytes {
		f.Close()
		return nil, rerr.Newf(rerr.ErrOpeningError, 500, "invalid segment file: bad magic bytes %x", magic)
	}
	h := header{
		magic:      magic,
		version:    binary.LittleEndian.Uint32(hdrBytes[4:8]),
		termCount:  binary.LittleEndian.Uint32(hdrBytes[8:12]),
		docCount:   binary.LittleEndian.Uint32(hdrBytes[12:16]),
		dictOffset: int64(binary.LittleEndian.Uint64(hdrBytes[16:24])),
		dictSize:   int64(binary.LittleEndian.Uint64(hdrBytes[24:32])),
		postOffset: int64(binary.LittleEndian.Uint64(hdrBytes[32:40])),
		postSize:   int64(binary.LittleEndian.Uint64(hdrBytes[40:48])),
	}
	h.avgLength = math.Float64frombits(binary.LittleEndian.Uint64(hdrBytes[48:56]))
	docsOffset := int64(binary.LittleEndian.Uint64(hdrBytes[56:64]))
	docsSize := int64(binary.LittleEndian.Uint64(hdrBytes[64:72]))

	dictBytes := make([]byte, h.dictSize)
	if _, err := f.ReadAt(dictBytes, h.dictOffset); err != nil {
		f.Close()
		return nil, rerr.Newf(rerr.ErrOpeningError, 500, "reading dictionary: %v", err)
	}
	var dict []dictEntry
	if err := json.Unmarshal(dictBytes, &dict); err != nil {
		f.Close()
		return nil, rerr.Newf(rerr.ErrOpeningError, 500, "parsing dictionary: %v", err)
	}

	docsBytes := make([]byte, docsSize)
	if _, err := f.ReadAt(docsBytes, docsOffset); err != nil {
		f.Close()
		return nil, rerr.Newf(rerr.ErrOpeningError, 500, "reading document records: %v", err)
	}
	var docList []docRecord
	if docsSize > 0 {
		if err := json.Unmarshal(docsBytes, &docList); err != nil {
			f.Close()
			return nil, rerr.Newf(rerr.ErrOpeningError, 500, "parsing document records: %v", err)
		}
	}
	docs := make(map[uint64]docRecord, len(docList))
	for _, d := range docList {
		docs[d.DocID] = d
	}

	return &Backend{path: path, file: f, header: h, dict: dict, postBase: h.postOffset, docs: docs}, nil
}

func (b *Backend) DocCount(ctx context.Context) (int64, error) {
	return int64(b.header.docCount), nil
}

func (b *Backend) AvgLength(ctx context.Context) (float64, error) {
	return b.header.avgLength, nil
}

func (b *Backend) find(term string) (dictEntry, bool) {
	idx := sort.Search(len(b.dict), func(i int) bool { return b.dict[i].Term >= term })
	if idx >= len(b.dict) || b.dict[idx].Term != term {
		return dictEntry{}, false
	}
	return b.dict[idx], true
}

func (b *Backend) TermFreq(ctx context.Context, term string) (int64, bool, error) {
	e, ok := b.find(term)
	if !ok {
		return 0, false, nil
	}
	return int64(e.DocFreq), true, nil
}

func (b *Backend) DocLength(ctx context.Context, docID uint64) (uint32, error) {
	d, ok := b.docs[docID]
	if !ok {
		return 0, rerr.Newf(rerr.ErrInvalidArgument, 404, "document %d not found", docID)
	}
	return d.Length, nil
}

func (b *Backend) readPostings(e dictEntry) ([]posting, error) {
	raw := make([]byte, e.PostLen)
	if _, err := b.file.ReadAt(raw, b.postBase+e.PostOffset); err != nil {
		return nil, rerr.Newf(rerr.ErrInternal, 500, "reading postings: %v", err)
	}
	var postings []posting
	if err := json.Unmarshal(raw, &postings); err != nil {
		return nil, rerr.Newf(rerr.ErrInternal, 500, "parsing postings: %v", err)
	}
	return postings, nil
}

func (b *Backend) PostingList(ctx context.Context, term string, withPositions bool) (backend.PostingIterator, error) {
	e, ok := b.find(term)
	if !ok {
		return &iterator{}, nil
	}
	raw, err := b.readPostings(e)
	if err != nil {
		return nil, err
	}
	postings := make([]backend.Posting, len(raw))
	for i, p := range raw {
		bp := backend.Posting{DocID: p.DocID, WDF: p.WDF}
		if withPositions {
			bp.Positions = p.Positions
		}
		postings[i] = bp
	}
	return &iterator{postings: postings, pos: -1}, nil
}

func (b *Backend) TermList(ctx context.Context, docID uint64) (backend.TermIterator, error) {
	var entries []backend.TermIteratorEntry
	for _, e := range b.dict {
		postings, err := b.readPostings(e)
		if err != nil {
			return nil, err
		}
		for _, p := range postings {
			if p.DocID == docID {
				entries = append(entries, backend.TermIteratorEntry{Term: e.Term, WDF: p.WDF})
				break
			}
		}
	}
	return &termIterator{entries: entries, pos: -1}, nil
}

func (b *Backend) Document(ctx context.Context, docID uint64) (backend.Document, error) {
	d, ok := b.docs[docID]
	if !ok {
		return backend.Document{}, rerr.Newf(rerr.ErrInvalidArgument, 404, "document %d not found", docID)
	}
	return backend.Document{ID: d.DocID, Length: d.Length, Data: d.Data, Keys: d.Keys}, nil
}

func (b *Backend) Close() error {
	return b.file.Close()
}

type iterator struct {
	postings []backend.Posting
	pos      int
}

func (it *iterator) Next() bool {
	it.pos++
	return it.pos < len(it.postings)
}

func (it *iterator) SkipTo(target uint64) bool {
	if it.pos >= 0 && it.pos < len(it.postings) && it.postings[it.pos].DocID >= target {
		return true
	}
	for it.pos+1 < len(it.postings) {
		it.pos++
		if it.postings[it.pos].DocID >= target {
			return true
		}
	}
	it.pos = len(it.postings)
	return false
}

func (it *iterator) Posting() backend.Posting { return it.postings[it.pos] }
func (it *iterator) TermFreq() int64          { return int64(len(it.postings)) }
func (it *iterator) Close() error             { return nil }

type termIterator struct {
	entries []backend.TermIteratorEntry
	pos     int
}

func (t *termIterator) Next() bool {
	t.pos++
	return t.pos < len(t.entries)
}
func (t *termIterator) Entry() backend.TermIteratorEntry { return t.entries[t.pos] }
func (t *termIterator) Close() error                     { return nil }

// Writer serialises a set of terms/postings/documents into a new .spdx
// segment file, atomically (temp file + rename), grounded on
// internal/indexer/segment/writer.go.
type Writer struct {
	dataDir string
}

// NewWriter builds a Writer rooted at dataDir.
func NewWriter(dataDir string) *Writer {
	return &Writer{dataDir: dataDir}
}

// TermPostings is one term's full posting list, as supplied to Write.
type TermPostings struct {
	Term     string
	Postings []backend.Posting
}

// Write atomically creates a new segment file.
func (w *Writer) Write(terms []TermPostings, docs []backend.Document, avgLength float64) (string, error) {
	if len(terms) == 0 {
		return "", fmt.Errorf("cannot write empty segment")
	}
	name := fmt.Sprintf("seg_%d.spdx", time.Now().UnixNano())
	finalPath := filepath.Join(w.dataDir, name)
	tmpPath := finalPath + ".tmp"

	if err := os.MkdirAll(w.dataDir, 0755); err != nil {
		return "", fmt.Errorf("creating segment directory: %w", err)
	}
	f, err := os.Create(tmpPath)
	if err != nil {
		return "", fmt.Errorf("creating temp segment file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(make([]byte, headerSize)); err != nil {
		return "", fmt.Errorf("reserving header: %w", err)
	}

	postingsStart, _ := f.Seek(0, 1)
	dict := make([]dictEntry, 0, len(terms))
	docIDSet := map[uint64]struct{}{}
	for _, t := range terms {
		offset, _ := f.Seek(0, 1)
		onDisk := make([]posting, len(t.Postings))
		for i, p := range t.Postings {
			onDisk[i] = posting{DocID: p.DocID, WDF: p.WDF, Positions: p.Positions}
			docIDSet[p.DocID] = struct{}{}
		}
		data, err := json.Marshal(onDisk)
		if err != nil {
			return "", fmt.Errorf("marshaling postings for term %q: %w", t.Term, err)
		}
		if _, err := f.Write(data); err != nil {
			return "", fmt.Errorf("writing postings for term %q: %w", t.Term, err)
		}
		dict = append(dict, dictEntry{Term: t.Term, PostOffset: offset - postingsStart, PostLen: len(data), DocFreq: len(t.Postings)})
	}
	sort.Slice(dict, func(i, j int) bool { return dict[i].Term < dict[j].Term })
	postingsEnd, _ := f.Seek(0, 1)

	docRecords := make([]docRecord, len(docs))
	for i, d := range docs {
		docRecords[i] = docRecord{DocID: d.ID, Length: d.Length, Data: d.Data, Keys: d.Keys}
	}
	docsData, err := json.Marshal(docRecords)
	if err != nil {
		return "", fmt.Errorf("marshaling document records: %w", err)
	}
	docsStart := postingsEnd
	if _, err := f.Write(docsData); err != nil {
		return "", fmt.Errorf("writing document records: %w", err)
	}
	docsEnd, _ := f.Seek(0, 1)

	dictData, err := json.Marshal(dict)
	if err != nil {
		return "", fmt.Errorf("marshaling dictionary: %w", err)
	}
	dictStart := docsEnd
	if _, err := f.Write(dictData); err != nil {
		return "", fmt.Errorf("writing dictionary: %w", err)
	}
	dictEnd, _ := f.Seek(0, 1)

	checksum := crc32.ChecksumIEEE(dictData)
	footer := make([]byte, footerSize)
	binary.LittleEndian.PutUint32(footer[0:4], checksum)
	if _, err := f.Write(footer); err != nil {
		return "", fmt.Errorf("writing footer: %w", err)
	}
	_ = dictEnd

	hdr := make([]byte, headerSize)
	binary.LittleEndian.PutUint32(hdr[0:4], magicBytes)
	binary.LittleEndian.PutUint32(hdr[4:8], formatVersion)
	binary.LittleEndian.PutUint32(hdr[8:12], uint32(len(terms)))
	binary.LittleEndian.PutUint32(hdr[12:16], uint32(len(docIDSet)))
	binary.LittleEndian.PutUint64(hdr[16:24], uint64(dictStart))
	binary.LittleEndian.PutUint64(hdr[24:32], uint64(len(dictData)))
	binary.LittleEndian.PutUint64(hdr[32:40], uint64(postingsStart))
	binary.LittleEndian.PutUint64(hdr[40:48], uint64(postingsEnd-postingsStart))
	binary.LittleEndian.PutUint64(hdr[48:56], math.Float64bits(avgLength))
	binary.LittleEndian.PutUint64(hdr[56:64], uint64(docsStart))
	binary.LittleEndian.PutUint64(hdr[64:72], uint64(len(docsData)))
	if _, err := f.WriteAt(hdr, 0); err != nil {
		return "", fmt.Errorf("updating header: %w", err)
	}
	if err := f.Sync(); err != nil {
		return "", fmt.Errorf("syncing segment file: %w", err)
	}
	f.Close()
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return "", fmt.Errorf("renaming segment file: %w", err)
	}
	return name, nil
}
