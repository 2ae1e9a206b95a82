package storage

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/gsoldatov/site-frontend/editor-mcp/internal/models"
)

// Persister mirrors draft changes into a DraftStore. It implements
// drafts.Observer. Changes are buffered and written together once no new
// change has arrived for the debounce interval; a later change to the same
// draft replaces the buffered one.
type Persister struct {
	store    *DraftStore
	apply    func(map[models.ObjectID]*models.EditedObject) error
	debounce time.Duration
	log      zerolog.Logger

	// flushMu keeps batches committing in the order they were taken.
	flushMu sync.Mutex

	mu      sync.Mutex
	pending map[models.ObjectID]*models.EditedObject
	timer   *time.Timer
	closed  bool
}

// NewPersister returns a persister writing to store. A zero debounce writes
// every change immediately.
func NewPersister(store *DraftStore, debounce time.Duration, log zerolog.Logger) *Persister {
	return &Persister{
		store:    store,
		apply:    store.Apply,
		debounce: debounce,
		log:      log.With().Str("component", "persister").Logger(),
		pending:  make(map[models.ObjectID]*models.EditedObject),
	}
}

// EditedObjectChanged buffers obj. Drafts are never mutated after they are
// stored, so obj is kept by reference.
func (p *Persister) EditedObjectChanged(id models.ObjectID, obj *models.EditedObject) {
	p.enqueue(id, obj)
}

// EditedObjectRemoved buffers the removal of id.
func (p *Persister) EditedObjectRemoved(id models.ObjectID) {
	p.enqueue(id, nil)
}

func (p *Persister) enqueue(id models.ObjectID, obj *models.EditedObject) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.pending[id] = obj
	if p.debounce <= 0 {
		p.mu.Unlock()
		p.Flush()
		return
	}
	if p.timer == nil {
		p.timer = time.AfterFunc(p.debounce, func() { p.Flush() })
	} else {
		p.timer.Reset(p.debounce)
	}
	p.mu.Unlock()
}

// arm schedules a flush unless one is already scheduled. p.mu must be held.
func (p *Persister) arm() {
	if p.closed || p.debounce <= 0 || p.timer != nil {
		return
	}
	p.timer = time.AfterFunc(p.debounce, func() { p.Flush() })
}

// Pending returns the number of buffered changes.
func (p *Persister) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}

// Flush writes buffered changes now. On failure the changes are put back
// unless a newer change for the same draft arrived meanwhile, and another
// flush is scheduled.
func (p *Persister) Flush() error {
	p.flushMu.Lock()
	defer p.flushMu.Unlock()

	p.mu.Lock()
	batch := p.pending
	p.pending = make(map[models.ObjectID]*models.EditedObject)
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	p.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}
	if err := p.apply(batch); err != nil {
		p.log.Error().Err(err).Int("changes", len(batch)).Msg("failed to persist drafts")
		p.mu.Lock()
		for id, obj := range batch {
			if _, newer := p.pending[id]; !newer {
				p.pending[id] = obj
			}
		}
		p.arm()
		p.mu.Unlock()
		return err
	}
	p.log.Debug().Int("changes", len(batch)).Msg("persisted drafts")
	return nil
}

// Close flushes buffered changes and stops accepting new ones.
func (p *Persister) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return p.Flush()
}
