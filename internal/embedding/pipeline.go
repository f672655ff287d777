package embedding

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/wagnerlima/memory-cloud/canvas-mcp/internal/metrics"
	"github.com/wagnerlima/memory-cloud/canvas-mcp/internal/models"
	"github.com/wagnerlima/memory-cloud/canvas-mcp/internal/storage"
)

// DefaultBatchSize is how many notes one batch selects.
const DefaultBatchSize = 100

// ErrDimension is returned when the embedder hands back vectors of an
// unexpected length.
var ErrDimension = errors.New("embedding dimension mismatch")

// Store is the slice of the note store the pipeline needs.
type Store interface {
	NotesNeedingEmbedding(ctx context.Context, limit int) ([]string, error)
	NoteForEmbedding(ctx context.Context, noteID string) (*models.Note, error)
	Lineage(ctx context.Context, noteID string) ([]models.Note, error)
	StoreEmbedding(ctx context.Context, noteID string, vec []float32) error
	ClearEmbeddings(ctx context.Context) (int64, error)
}

// FailurePolicy decides what the worker does when a batch fails.
type FailurePolicy string

const (
	// Halt stops the worker until the next explicit trigger.
	Halt FailurePolicy = "halt"
	// Backoff retries the failed work with exponential delays and halts
	// after MaxRetries consecutive failures.
	Backoff FailurePolicy = "backoff"
)

// ParseFailurePolicy validates a configured policy name. Empty means Halt.
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch FailurePolicy(s) {
	case "", Halt:
		return Halt, nil
	case Backoff:
		return Backoff, nil
	}
	return "", fmt.Errorf("unknown failure policy %q (use halt or backoff)", s)
}

// State is the worker's lifecycle state.
type State int

const (
	Idle State = iota
	Running
	Halted
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Halted:
		return "halted"
	}
	panic(fmt.Sprintf("embedding: unknown state %d", int(s)))
}

// Status is a point-in-time view of the worker.
type Status struct {
	State     string `json:"state"`
	LastError string `json:"last_error,omitempty"`
	Embedded  int64  `json:"embedded"`
	Queued    int    `json:"queued"`
}

// Options configures a Pipeline. Zero values pick defaults.
type Options struct {
	BatchSize int
	// Dimensions is the vector length every embedding must have. Zero means
	// Dimensions of DefaultModel.
	Dimensions int
	Policy     FailurePolicy
	MaxRetries int
	MinBackoff time.Duration
	MaxBackoff time.Duration
	Logger     zerolog.Logger
	Metrics    *metrics.Metrics
	// OnEmbedded is called after vectors for noteIDs were stored.
	OnEmbedded func(noteIDs []string)
}

// Pipeline keeps note embeddings up to date. A single worker goroutine
// started with Run pulls bounded batches of notes lacking an embedding and
// keeps pulling until a batch comes back empty, then idles until the next
// trigger. Only one batch is ever in flight.
type Pipeline struct {
	store    Store
	embedder Embedder
	opts     Options
	log      zerolog.Logger

	wake chan struct{}

	mu       sync.Mutex
	queue    []string
	queued   map[string]bool
	state    State
	lastErr  error
	embedded int64
}

// New creates a pipeline. Call Run to start its worker.
func New(store Store, embedder Embedder, opts Options) *Pipeline {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Dimensions <= 0 {
		opts.Dimensions = Dimensions
	}
	if opts.Policy == "" {
		opts.Policy = Halt
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 5
	}
	if opts.MinBackoff <= 0 {
		opts.MinBackoff = time.Second
	}
	if opts.MaxBackoff < opts.MinBackoff {
		opts.MaxBackoff = 5 * time.Minute
	}
	return &Pipeline{
		store:    store,
		embedder: embedder,
		opts:     opts,
		log:      opts.Logger,
		wake:     make(chan struct{}, 1),
		queued:   make(map[string]bool),
	}
}

// EmbedAll asks the worker to drain the backlog. It never blocks.
func (p *Pipeline) EmbedAll() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// EmbedNote asks the worker to embed noteID ahead of the backlog. It never
// blocks.
func (p *Pipeline) EmbedNote(noteID string) {
	p.mu.Lock()
	if !p.queued[noteID] {
		p.queued[noteID] = true
		p.queue = append(p.queue, noteID)
	}
	p.mu.Unlock()
	p.EmbedAll()
}

// Status reports the worker state.
func (p *Pipeline) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	st := Status{State: p.state.String(), Embedded: p.embedded, Queued: len(p.queue)}
	if p.lastErr != nil {
		st.LastError = p.lastErr.Error()
	}
	return st
}

func (p *Pipeline) setState(s State, err error) {
	p.mu.Lock()
	p.state = s
	if s != Running {
		p.lastErr = err
	}
	p.mu.Unlock()
	p.opts.Metrics.SetHalted(s == Halted)
}

// Run is the worker loop. It returns when ctx is cancelled.
func (p *Pipeline) Run(ctx context.Context) error {
	p.log.Info().Str("policy", string(p.opts.Policy)).Int("batch_size", p.opts.BatchSize).Msg("embedding worker started")
	delay := p.opts.MinBackoff
	retries := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.wake:
		}

		for {
			p.setState(Running, nil)
			n, err := p.work(ctx)
			if ctx.Err() != nil {
				p.setState(Idle, nil)
				return ctx.Err()
			}
			if err == nil {
				if n > 0 {
					p.log.Info().Int("notes", n).Msg("embedding backlog drained")
				}
				p.setState(Idle, nil)
				delay, retries = p.opts.MinBackoff, 0
				break
			}
			if p.opts.Policy == Halt || retries >= p.opts.MaxRetries {
				p.log.Error().Err(err).Int("retries", retries).Msg("embedding batch failed, worker halted until next trigger")
				p.setState(Halted, err)
				delay, retries = p.opts.MinBackoff, 0
				break
			}

			retries++
			p.log.Warn().Err(err).Int("attempt", retries).Dur("retry_in", delay).Msg("embedding batch failed, backing off")
			p.setState(Halted, err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay = min(delay*2, p.opts.MaxBackoff)
		}
	}
}

// work embeds queued notes, then drains the backlog.
func (p *Pipeline) work(ctx context.Context) (int, error) {
	p.mu.Lock()
	queue := p.queue
	p.queue = nil
	clear(p.queued)
	p.mu.Unlock()

	total := 0
	if len(queue) > 0 {
		n, err := p.EmbedNotes(ctx, queue)
		total += n
		if err != nil {
			return total, err
		}
	}
	n, err := p.Drain(ctx)
	return total + n, err
}

// Drain runs batches until one selects nothing and returns how many notes
// were embedded.
func (p *Pipeline) Drain(ctx context.Context) (int, error) {
	total := 0
	for {
		selected, embedded, err := p.RunBatch(ctx)
		total += embedded
		if err != nil {
			return total, err
		}
		if selected == 0 {
			return total, nil
		}
	}
}

// RunBatch selects one batch of notes needing an embedding and embeds them.
// It reports how many notes were selected and how many were embedded.
func (p *Pipeline) RunBatch(ctx context.Context) (selected, embedded int, err error) {
	ids, err := p.store.NotesNeedingEmbedding(ctx, p.opts.BatchSize)
	if err != nil {
		return 0, 0, fmt.Errorf("select batch: %w", err)
	}
	if len(ids) == 0 {
		return 0, 0, nil
	}
	embedded, err = p.EmbedNotes(ctx, ids)
	return len(ids), embedded, err
}

// EmbedNoteNow embeds a single note synchronously.
func (p *Pipeline) EmbedNoteNow(ctx context.Context, noteID string) error {
	_, err := p.EmbedNotes(ctx, []string{noteID})
	return err
}

// EmbedNotes builds the text of each note, submits all non-empty texts in
// one request and stores the returned vectors. Notes that no longer exist
// or have no text are skipped.
func (p *Pipeline) EmbedNotes(ctx context.Context, noteIDs []string) (int, error) {
	var ids []string
	var texts []string
	for _, id := range noteIDs {
		note, err := p.store.NoteForEmbedding(ctx, id)
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("load note %s: %w", id, err)
		}
		lineage, err := p.store.Lineage(ctx, id)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return 0, fmt.Errorf("load lineage of %s: %w", id, err)
		}
		text := BuildText(lineage, *note)
		if text == "" {
			continue
		}
		ids = append(ids, id)
		texts = append(texts, text)
	}
	if len(texts) == 0 {
		return 0, nil
	}

	start := time.Now()
	vectors, err := p.embedder.Embed(ctx, texts)
	if err == nil && len(vectors) != len(texts) {
		err = fmt.Errorf("embedder returned %d vectors for %d texts", len(vectors), len(texts))
	}
	if err == nil {
		err = p.checkDimensions(vectors)
	}
	p.opts.Metrics.RecordBatch(len(texts), err)
	if err != nil {
		return 0, fmt.Errorf("embed %d notes: %w", len(texts), err)
	}
	p.log.Debug().Int("notes", len(texts)).Dur("duration_ms", time.Since(start)).Msg("embedding batch computed")

	for i, id := range ids {
		if err := p.store.StoreEmbedding(ctx, id, vectors[i]); err != nil {
			return i, fmt.Errorf("store embedding of %s: %w", id, err)
		}
	}

	p.mu.Lock()
	p.embedded += int64(len(ids))
	p.mu.Unlock()
	if p.opts.OnEmbedded != nil {
		p.opts.OnEmbedded(ids)
	}
	return len(ids), nil
}

// checkDimensions rejects the whole batch if any vector has the wrong length,
// so nothing from it is stored.
func (p *Pipeline) checkDimensions(vectors [][]float32) error {
	for i, v := range vectors {
		if len(v) != p.opts.Dimensions {
			return fmt.Errorf("%w: vector %d has %d values, want %d", ErrDimension, i, len(v), p.opts.Dimensions)
		}
	}
	return nil
}

// RemoveAll clears every stored embedding so the next drain recomputes
// them all.
func (p *Pipeline) RemoveAll(ctx context.Context) (int64, error) {
	n, err := p.store.ClearEmbeddings(ctx)
	if err != nil {
		return 0, err
	}
	p.log.Info().Int64("cleared", n).Msg("embeddings removed")
	return n, nil
}
