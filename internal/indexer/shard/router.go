// Package shard provides hash-based shard routing for index engines. Each
// shard owns an independent indexer.Engine instance backed by its own data
// directory, and the Router dispatches documents by shard ID.
package shard

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/vikram-desai/retrieva/internal/indexer"
	"github.com/vikram-desai/retrieva/internal/retrieval/backend"
	"github.com/vikram-desai/retrieva/internal/retrieval/docstore"
	"github.com/vikram-desai/retrieva/internal/retrieval/multidb"
	"github.com/vikram-desai/retrieva/pkg/config"
)

// Router maps shard IDs to dedicated indexer.Engine instances. Each
// shard's Engine independently numbers its own documents starting at 1,
// so — unlike an Engine's own hot-store/segment union — combining them
// requires multidb's collision-avoiding remap, not a flat id union (see
// DESIGN.md).
type Router struct {
	engines   map[int]*indexer.Engine
	mu        sync.RWMutex
	baseCfg   config.IndexerConfig
	numShards int
	store     *docstore.Store
	logger    *slog.Logger
}

// NewRouter creates numShards engines, each in its own sub-directory under
// baseCfg.DataDir. store is optional durable document backup shared by
// every shard engine; nil disables it.
func NewRouter(baseCfg config.IndexerConfig, numShards int, store *docstore.Store) (*Router, error) {
	r := &Router{
		engines:   make(map[int]*indexer.Engine, numShards),
		baseCfg:   baseCfg,
		numShards: numShards,
		store:     store,
		logger:    slog.Default().With("component", "shard-router"),
	}
	for i := 0; i < numShards; i++ {
		shardCfg := baseCfg
		shardCfg.DataDir = filepath.Join(baseCfg.DataDir, fmt.Sprintf("shard-%d", i))
		engine, err := indexer.NewEngine(shardCfg, store)
		if err != nil {
			r.closeAll()
			return nil, fmt.Errorf("creating engine for shard %d: %w", i, err)
		}
		r.engines[i] = engine
		r.logger.Info("shard engine initialized",
			"shard_id", i,
			"data_dir", shardCfg.DataDir,
		)
	}
	r.logger.Info("shard router ready", "num_shards", numShards)
	return r, nil
}

// CombinedBackend presents every shard engine as one backend.Backend via
// multidb's id-remapping fan-out, in ascending shard-id order so the
// remap's stride assignment is stable across calls. The concrete
// *multidb.MultiDB is returned (not the backend.Backend interface) so a
// caller can Unmap a result doc-id back to its owning shard.
func (r *Router) CombinedBackend() *multidb.MultiDB {
	r.mu.RLock()
	defer r.mu.RUnlock()
	subs := make([]backend.Backend, r.numShards)
	for i := 0; i < r.numShards; i++ {
		subs[i] = r.engines[i].Backend()
	}
	return multidb.New(subs)
}

// Store returns the docstore backing shared by every shard engine, or nil
// if none was configured.
func (r *Router) Store() *docstore.Store {
	return r.store
}

// ExternalID resolves a CombinedBackend doc-id back to the shard engine
// it came from and the caller-facing string id it was indexed under.
func (r *Router) ExternalID(mdb *multidb.MultiDB, docID uint64) (string, bool) {
	sub, local := mdb.Unmap(docID)
	r.mu.RLock()
	engine, ok := r.engines[sub]
	r.mu.RUnlock()
	if !ok {
		return "", false
	}
	return engine.ExternalID(local)
}

// Route returns the Engine responsible for the given shard ID.
func (r *Router) Route(shardID int) (*indexer.Engine, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	engine, ok := r.engines[shardID]
	if !ok {
		return nil, fmt.Errorf("unknown shard ID %d (valid range: 0-%d)", shardID, r.numShards-1)
	}
	return engine, nil
}

// GetAllEngines returns a snapshot map of all shard engines.
func (r *Router) GetAllEngines() map[int]*indexer.Engine {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make(map[int]*indexer.Engine, len(r.engines))
	for id, engine := range r.engines {
		result[id] = engine
	}
	return result
}

// NumShards returns the number of shards managed by this router.
func (r *Router) NumShards() int {
	return r.numShards
}

// FlushAll flushes every shard engine to disk.
func (r *Router) FlushAll() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var firstErr error
	for id, engine := range r.engines {
		if err := engine.Flush(); err != nil {
			r.logger.Error("flush failed", "shard_id", id, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// ReloadAll tells every shard engine to re-scan for newly flushed segments.
// Returns the total number of new segments loaded across all shards.
func (r *Router) ReloadAll() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	total := 0
	for _, engine := range r.engines {
		total += engine.ReloadSegments()
	}
	return total
}

// Close flushes and closes every shard engine.
func (r *Router) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closeAll()
}

// closeAll closes every shard engine, collecting the first error encountered.
func (r *Router) closeAll() error {
	var firstErr error
	for id, engine := range r.engines {
		if err := engine.Close(); err != nil {
			r.logger.Error("close failed", "shard_id", id, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
