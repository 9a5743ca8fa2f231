// Package store owns the ordered collection of events and persists it to a
// key-value backend after every mutation.
package store

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/google/uuid"

	"github.com/Kaelzs/ThreeW/internal/kv"
	"github.com/Kaelzs/ThreeW/internal/logger"
	"github.com/Kaelzs/ThreeW/pkg/models"
)

const (
	defaultName = "Action"
	// Past this index the default name falls back to a random suffix.
	maxDefaultNameIndex = 100000
	randomSuffixLen     = 10
)

// Store is the single owner of the event collection. It is safe for
// concurrent use.
type Store struct {
	mu     sync.RWMutex
	kv     kv.Store
	events []models.Event
	newID  func() string
	// maxNameIndex bounds the "Action N" search.
	maxNameIndex int
}

// Open loads the collection from backend. A missing or malformed value
// yields an empty collection; only backend read errors are returned.
func Open(ctx context.Context, backend kv.Store) (*Store, error) {
	s := &Store{kv: backend, newID: uuid.NewString, maxNameIndex: maxDefaultNameIndex}

	data, ok, err := backend.Get(ctx, models.EventsKey)
	if err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}
	if !ok || len(data) == 0 {
		logger.L().Info("No stored events, starting empty")
		s.events = []models.Event{}
		return s, nil
	}

	events, err := models.DecodeEvents(data)
	if err != nil {
		logger.L().Warn("Stored events are malformed, starting empty", "error", err)
		s.events = []models.Event{}
		return s, nil
	}
	if events == nil {
		events = []models.Event{}
	}
	s.events = events
	logger.L().Info("Loaded events", "count", len(events))
	return s, nil
}

// Create appends a default event with a fresh id and the first free default
// name, persists, and returns the new event.
func (s *Store) Create(ctx context.Context) (models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := models.DefaultEvent(s.newID())
	e.Name = s.nextDefaultName()
	s.events = append(s.events, e)

	logger.L().Info("Event created", "event_id", e.ID, "name", e.Name)
	return e.Clone(), s.persist(ctx)
}

// nextDefaultName must be called with mu held.
func (s *Store) nextDefaultName() string {
	if !s.nameTaken(defaultName, "") {
		return defaultName
	}
	for i := 2; i <= s.maxNameIndex; i++ {
		name := defaultName + " " + strconv.Itoa(i)
		if !s.nameTaken(name, "") {
			return name
		}
	}
	// Every numbered name up to maxNameIndex is in use.
	for {
		name := defaultName + " " + s.newID()[:randomSuffixLen]
		if !s.nameTaken(name, "") {
			return name
		}
	}
}

// nameTaken reports whether an event other than exceptID has name.
func (s *Store) nameTaken(name, exceptID string) bool {
	for _, e := range s.events {
		if e.Name == name && e.ID != exceptID {
			return true
		}
	}
	return false
}

func (s *Store) index(id string) int {
	for i, e := range s.events {
		if e.ID == id {
			return i
		}
	}
	return -1
}

// Rename changes the name of event id. It fails with ErrRenameConflict when
// a different event already has name; renaming to the current name is a
// no-op that still persists.
func (s *Store) Rename(ctx context.Context, id, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.index(id)
	if i < 0 {
		return fmt.Errorf("rename %s: %w", id, models.ErrEventNotFound)
	}
	if s.nameTaken(name, id) {
		return fmt.Errorf("rename %s to %q: %w", id, name, models.ErrRenameConflict)
	}
	s.events[i].Name = name

	logger.L().Info("Event renamed", "event_id", id, "name", name)
	return s.persist(ctx)
}

// Delete removes event id. Any scheduled run for it is left untouched.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.index(id)
	if i < 0 {
		return fmt.Errorf("delete %s: %w", id, models.ErrEventNotFound)
	}
	s.events = append(s.events[:i], s.events[i+1:]...)

	logger.L().Info("Event deleted", "event_id", id)
	return s.persist(ctx)
}

// Update applies mutate to a copy of event id and stores the result. The id
// cannot be changed and the name must stay unique.
func (s *Store) Update(ctx context.Context, id string, mutate func(*models.Event)) (models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.index(id)
	if i < 0 {
		return models.Event{}, fmt.Errorf("update %s: %w", id, models.ErrEventNotFound)
	}

	next := s.events[i].Clone()
	mutate(&next)
	next.ID = id // immutable
	// Reject variants the codec cannot write before they reach storage.
	if _, err := next.MarshalJSON(); err != nil {
		return models.Event{}, fmt.Errorf("update %s: %w", id, err)
	}
	if next.What.Actions == nil {
		next.What.Actions = []models.Action{}
	}
	if s.nameTaken(next.Name, id) {
		return models.Event{}, fmt.Errorf("update %s to %q: %w", id, next.Name, models.ErrRenameConflict)
	}
	s.events[i] = next.Clone()

	logger.L().Debug("Event updated", "event_id", id)
	return next, s.persist(ctx)
}

// Get returns a copy of event id.
func (s *Store) Get(id string) (models.Event, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.index(id)
	if i < 0 {
		return models.Event{}, false
	}
	return s.events[i].Clone(), true
}

// FindByName returns a copy of the event called name.
func (s *Store) FindByName(name string) (models.Event, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.events {
		if e.Name == name {
			return e.Clone(), true
		}
	}
	return models.Event{}, false
}

// List returns a copy of the collection in insertion order.
func (s *Store) List() []models.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Event, len(s.events))
	for i, e := range s.events {
		out[i] = e.Clone()
	}
	return out
}

// persist writes the whole collection. The in-memory change is kept when the
// write fails. Must be called with mu held.
func (s *Store) persist(ctx context.Context) error {
	data, err := models.EncodeEvents(s.events)
	if err != nil {
		return fmt.Errorf("encode events: %w", err)
	}
	if err := s.kv.Set(ctx, models.EventsKey, data); err != nil {
		logger.L().Error("Failed to persist events", "error", err)
		return fmt.Errorf("persist events: %w", err)
	}
	return nil
}
