package events

import (
	"sync"
	"time"
)

// Mesh bus subjects emitted by the orchestrator.
const (
	SubjectModelLoaded   = "model.loaded"
	SubjectModelUnloaded = "model.unloaded"
	SubjectVRAMAlert     = "vram.alert"
)

// Event is the payload carried on every subject.
type Event struct {
	Provider  string    `json:"provider" msgpack:"provider"`
	ModelID   string    `json:"model_id" msgpack:"model_id"`
	VRAMMB    int       `json:"vram_mb" msgpack:"vram_mb"`
	Timestamp time.Time `json:"timestamp" msgpack:"timestamp"`
}

// Publisher receives events from the orchestrator. Implementations must be
// lightweight and non-blocking; Publish must not panic. Delivery is
// best-effort: orchestrator correctness never depends on it.
type Publisher interface {
	Publish(subject string, ev Event)
}

// NoopPublisher drops events; used when no bus endpoint is configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(string, Event) {}

// MemoryPublisher stores events in-memory for tests.
type MemoryPublisher struct {
	mu     sync.Mutex
	events []PublishedEvent
}

// PublishedEvent pairs a subject with its payload.
type PublishedEvent struct {
	Subject string
	Event   Event
}

func NewMemoryPublisher() *MemoryPublisher { return &MemoryPublisher{} }

func (p *MemoryPublisher) Publish(subject string, ev Event) {
	p.mu.Lock()
	p.events = append(p.events, PublishedEvent{Subject: subject, Event: ev})
	p.mu.Unlock()
}

func (p *MemoryPublisher) Events() []PublishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]PublishedEvent, len(p.events))
	copy(out, p.events)
	return out
}

// BySubject returns the captured events for one subject.
func (p *MemoryPublisher) BySubject(subject string) []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []Event
	for _, pe := range p.events {
		if pe.Subject == subject {
			out = append(out, pe.Event)
		}
	}
	return out
}
