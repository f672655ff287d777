// Package vecindex keeps one approximate nearest neighbour graph per user
// over the stored note embeddings. Graphs are rebuilt lazily whenever the
// user's embedding revision moves and can be snapshotted to a filesystem so
// a restart does not pay for a rebuild.
package vecindex

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"io/fs"
	"sync"

	"github.com/fogfish/hnsw"
	"github.com/fogfish/hnsw/vector"
	"github.com/hack-pad/hackpadfs"
	kvector "github.com/kshard/vector"
	"github.com/rs/zerolog"

	"github.com/wagnerlima/memory-cloud/canvas-mcp/internal/metrics"
	"github.com/wagnerlima/memory-cloud/canvas-mcp/internal/storage"
)

// Source provides the embeddings an index is built from.
type Source interface {
	EmbeddingRev(ctx context.Context, userID string) (int64, error)
	UserEmbeddings(ctx context.Context, userID string) (*storage.EmbeddingSet, error)
}

// ErrDimension is returned when a query vector does not match the index or
// has a length the distance function cannot handle.
var ErrDimension = errors.New("vector dimension mismatch")

// usable reports whether the cosine surface accepts vectors of length n. It
// works on blocks of four values.
func usable(n int) bool { return n > 0 && n%4 == 0 }

// index is an immutable graph over one user's vectors at one revision.
type index struct {
	rev   int64
	dim   int
	ids   []string
	graph *hnsw.HNSW[vector.VF32]
}

func newGraph() *hnsw.HNSW[vector.VF32] {
	return hnsw.New[vector.VF32](vector.SurfaceVF32(kvector.Cosine()))
}

func (ix *index) search(q []float32, k int) ([]string, error) {
	if !usable(len(q)) {
		return nil, fmt.Errorf("%w: query has %d values, want a multiple of 4", ErrDimension, len(q))
	}
	if ix.graph == nil || ix.graph.Size() == 0 || k <= 0 {
		return []string{}, nil
	}
	if len(q) != ix.dim {
		return nil, fmt.Errorf("%w: index has %d, query has %d", ErrDimension, ix.dim, len(q))
	}
	ef := k * 2
	if ef < 100 {
		ef = 100
	}
	results := ix.graph.Search(vector.VF32{Vec: q}, k, ef)
	out := make([]string, 0, len(results))
	for _, r := range results {
		if int(r.Key) < len(ix.ids) {
			out = append(out, ix.ids[r.Key])
		}
	}
	return out, nil
}

// snapshot is the persisted form of an index.
type snapshot struct {
	Rev   int64
	Dim   int
	IDs   []string
	Nodes hnsw.Nodes[vector.VF32]
}

// Options configures a Manager.
type Options struct {
	// FS receives index snapshots. Nil disables persistence.
	FS      hackpadfs.FS
	Logger  zerolog.Logger
	Metrics *metrics.Metrics
}

// Manager hands out up-to-date per-user indexes.
type Manager struct {
	src  Source
	opts Options
	log  zerolog.Logger

	mu    sync.Mutex
	users map[string]*index
}

// NewManager creates a manager reading from src.
func NewManager(src Source, opts Options) *Manager {
	return &Manager{
		src:   src,
		opts:  opts,
		log:   opts.Logger,
		users: make(map[string]*index),
	}
}

// Search returns up to k note ids of userID nearest to q, nearest first.
func (m *Manager) Search(ctx context.Context, userID string, q []float32, k int) ([]string, error) {
	ix, err := m.current(ctx, userID)
	if err != nil {
		return nil, err
	}
	return ix.search(q, k)
}

// Size reports how many vectors the user's current index holds.
func (m *Manager) Size(ctx context.Context, userID string) (int, error) {
	ix, err := m.current(ctx, userID)
	if err != nil {
		return 0, err
	}
	return len(ix.ids), nil
}

func (m *Manager) current(ctx context.Context, userID string) (*index, error) {
	rev, err := m.src.EmbeddingRev(ctx, userID)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if ix, ok := m.users[userID]; ok && ix.rev == rev {
		return ix, nil
	}
	if ix := m.load(userID, rev); ix != nil {
		m.users[userID] = ix
		return ix, nil
	}

	set, err := m.src.UserEmbeddings(ctx, userID)
	if err != nil {
		return nil, err
	}
	ix := m.build(set)
	m.users[userID] = ix
	m.opts.Metrics.RecordIndexRebuild()
	m.log.Debug().Str("user_id", userID).Int64("rev", ix.rev).Int("vectors", len(ix.ids)).Msg("vector index rebuilt")
	m.save(userID, ix)
	return ix, nil
}

func (m *Manager) build(set *storage.EmbeddingSet) *index {
	ix := &index{rev: set.Rev, graph: newGraph()}
	for i, v := range set.Vectors {
		if !usable(len(v)) {
			m.log.Warn().Str("note_id", set.NoteIDs[i]).Int("dim", len(v)).Msg("skipping embedding with unusable dimension")
			continue
		}
		if ix.dim == 0 {
			ix.dim = len(v)
		}
		if len(v) != ix.dim {
			m.log.Warn().Str("note_id", set.NoteIDs[i]).Int("dim", len(v)).Int("expected", ix.dim).Msg("skipping embedding with foreign dimension")
			continue
		}
		ix.graph.Insert(vector.VF32{Key: uint32(len(ix.ids)), Vec: v})
		ix.ids = append(ix.ids, set.NoteIDs[i])
	}
	return ix
}

func snapshotPath(userID string) string {
	return userID + ".hnsw"
}

func (m *Manager) save(userID string, ix *index) {
	if m.opts.FS == nil {
		return
	}
	snap := snapshot{Rev: ix.rev, Dim: ix.dim, IDs: ix.ids}
	if len(ix.ids) > 0 {
		snap.Nodes = ix.graph.Nodes()
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(snap); err != nil {
		m.log.Warn().Err(err).Str("user_id", userID).Msg("encode vector index snapshot")
		return
	}
	if err := hackpadfs.WriteFullFile(m.opts.FS, snapshotPath(userID), buf.Bytes(), 0644); err != nil {
		m.log.Warn().Err(err).Str("user_id", userID).Msg("write vector index snapshot")
	}
}

// load returns the snapshot for userID if it was taken at rev.
func (m *Manager) load(userID string, rev int64) *index {
	if m.opts.FS == nil {
		return nil
	}
	content, err := hackpadfs.ReadFile(m.opts.FS, snapshotPath(userID))
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			m.log.Warn().Err(err).Str("user_id", userID).Msg("read vector index snapshot")
		}
		return nil
	}
	var snap snapshot
	if err := gob.NewDecoder(bytes.NewReader(content)).Decode(&snap); err != nil {
		m.log.Warn().Err(err).Str("user_id", userID).Msg("decode vector index snapshot")
		return nil
	}
	if snap.Rev != rev {
		return nil
	}
	ix := &index{rev: snap.Rev, dim: snap.Dim, ids: snap.IDs}
	if len(snap.IDs) > 0 {
		ix.graph = hnsw.FromNodes[vector.VF32](vector.SurfaceVF32(kvector.Cosine()), snap.Nodes)
	}
	return ix
}
