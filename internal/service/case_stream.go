package service

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ethicsline/ethicsline-api/internal/models"
)

// CaseEventType classifies dashboard change notifications.
type CaseEventType string

const (
	EventCaseCreated   CaseEventType = "case_created"
	EventStatusChanged CaseEventType = "status_changed"
	EventNoteAdded     CaseEventType = "note_added"
	EventCaseDeleted   CaseEventType = "case_deleted"
)

// CaseEvent is one change broadcast to dashboard subscribers. Deleted events
// carry every removed protocol so views can prune their selections.
type CaseEvent struct {
	Type      CaseEventType `json:"type"`
	Protocols []string      `json:"protocols"`
	Case      *models.Case  `json:"case,omitempty"`
	At        time.Time     `json:"at"`
}

// CaseStream fans change events out to live dashboard subscribers. Slow
// subscribers drop events rather than blocking publishers; the dashboard
// reloads its list on every event anyway.
type CaseStream struct {
	mu     sync.Mutex
	subs   map[uint64]chan CaseEvent
	nextID uint64
	buffer int
	logger *zap.Logger
}

// NewCaseStream constructs the hub with the given per-subscriber buffer.
func NewCaseStream(buffer int, logger *zap.Logger) *CaseStream {
	if buffer <= 0 {
		buffer = 16
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CaseStream{
		subs:   make(map[uint64]chan CaseEvent),
		buffer: buffer,
		logger: logger,
	}
}

// Subscribe registers a listener and returns its ID plus the event channel.
func (s *CaseStream) Subscribe() (uint64, <-chan CaseEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := s.nextID
	ch := make(chan CaseEvent, s.buffer)
	s.subs[id] = ch
	return id, ch
}

// Unsubscribe removes a listener and closes its channel.
func (s *CaseStream) Unsubscribe(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ch, ok := s.subs[id]; ok {
		delete(s.subs, id)
		close(ch)
	}
}

// Publish delivers the event to every subscriber without blocking.
func (s *CaseStream) Publish(event CaseEvent) {
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, ch := range s.subs {
		select {
		case ch <- event:
		default:
			s.logger.Debug("dropping case event for slow subscriber", zap.Uint64("subscriber", id), zap.String("type", string(event.Type)))
		}
	}
}

// Subscribers reports the current listener count.
func (s *CaseStream) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}
