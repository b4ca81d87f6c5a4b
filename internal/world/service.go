package world

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync/atomic"
)

// Store is the Change-Log Store the service is built on: durable, keyed storage
// of one record per world with atomic append. Implementations must concatenate
// appended batches whole; two concurrent appends on the same id may commit in
// either order but never interleave their entries.
type Store interface {
	Create(ctx context.Context, seed string) (int64, error)
	Get(ctx context.Context, id int64) (World, error)
	AppendChanges(ctx context.Context, id int64, changes []BlockChange) (World, error)
}

// Journal receives every committed append. Journal failures must not fail the
// request; the store remains the source of truth.
type Journal interface {
	Record(worldID int64, changes []BlockChange) error
}

// ServiceStats are process-lifetime counters, exposed on /metrics.
type ServiceStats struct {
	WorldsCreated    uint64
	AppendsCommitted uint64
	ChangesAppended  uint64
	BatchesRejected  uint64
}

// Service is the caller-facing world contract. It validates input, delegates
// durability to the injected Store, and fans committed appends out to the
// optional journal and live feed.
type Service struct {
	store Store
	log   *log.Logger

	journal Journal
	feed    *Feed

	worldsCreated    atomic.Uint64
	appendsCommitted atomic.Uint64
	changesAppended  atomic.Uint64
	batchesRejected  atomic.Uint64
}

func NewService(store Store, logger *log.Logger) *Service {
	return &Service{store: store, log: logger}
}

// SetJournal attaches a journal for committed appends. Call before serving.
func (s *Service) SetJournal(j Journal) { s.journal = j }

// SetFeed attaches a live feed for committed appends. Call before serving.
func (s *Service) SetFeed(f *Feed) { s.feed = f }

// CreateWorld persists a fresh world for the given generation seed. The seed is
// opaque here; it only needs to be non-empty.
func (s *Service) CreateWorld(ctx context.Context, seed string) (World, error) {
	if strings.TrimSpace(seed) == "" {
		return World{}, &ValidationError{Field: "seed", Reason: "must not be empty"}
	}
	id, err := s.store.Create(ctx, seed)
	if err != nil {
		return World{}, err
	}
	w, err := s.store.Get(ctx, id)
	if err != nil {
		return World{}, err
	}
	s.worldsCreated.Add(1)
	return w, nil
}

// GetWorld returns the full current record, including the entire change log.
func (s *Service) GetWorld(ctx context.Context, id int64) (World, error) {
	return s.store.Get(ctx, id)
}

// ApplyChanges validates the batch and appends it to the world's change log.
// The batch is all-or-nothing: one invalid entry rejects the whole batch and
// nothing is persisted. A valid empty batch still advances last_updated.
func (s *Service) ApplyChanges(ctx context.Context, id int64, changes []BlockChange) (World, error) {
	if err := ValidateChanges(changes); err != nil {
		s.batchesRejected.Add(1)
		return World{}, err
	}
	w, err := s.store.AppendChanges(ctx, id, changes)
	if err != nil {
		return World{}, err
	}
	s.appendsCommitted.Add(1)
	s.changesAppended.Add(uint64(len(changes)))

	if s.journal != nil {
		if err := s.journal.Record(w.ID, changes); err != nil {
			s.log.Printf("journal: world %d: %v", w.ID, err)
		}
	}
	if s.feed != nil {
		s.feed.Publish(w.ID, changes, w.LastUpdated)
	}
	return w, nil
}

// Stats returns a snapshot of the service counters.
func (s *Service) Stats() ServiceStats {
	return ServiceStats{
		WorldsCreated:    s.worldsCreated.Load(),
		AppendsCommitted: s.appendsCommitted.Load(),
		ChangesAppended:  s.changesAppended.Load(),
		BatchesRejected:  s.batchesRejected.Load(),
	}
}

// ValidateChanges checks every entry of a batch: the action must be place or
// remove, and a place must carry a block type. A remove may leave the type
// empty.
func ValidateChanges(changes []BlockChange) error {
	for i, c := range changes {
		switch c.Action {
		case ActionPlace:
			if c.Type == "" {
				return &ValidationError{
					Field:  fmt.Sprintf("changes[%d].type", i),
					Reason: "must not be empty when action is place",
				}
			}
		case ActionRemove:
		default:
			return &ValidationError{
				Field:  fmt.Sprintf("changes[%d].action", i),
				Reason: fmt.Sprintf("must be %q or %q", ActionPlace, ActionRemove),
			}
		}
	}
	return nil
}
