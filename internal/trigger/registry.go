package trigger

import (
	"errors"
	"sync"

	"github.com/rs/zerolog/log"
)

// ErrRegistryFrozen is returned when registering after setup has completed.
var ErrRegistryFrozen = errors.New("trigger registry is frozen")

// Registry holds normalized event keys per event class.
// It is written during setup and read-only once frozen.
type Registry struct {
	mu     sync.RWMutex
	frozen bool

	scenes      map[string]ID
	streamStart []ID
	streamStop  []ID
	messages    map[string]ID
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		scenes:   make(map[string]ID),
		messages: make(map[string]ID),
	}
}

// Register adds a trigger. args is the tail of the trigger line after the
// event class token. Unknown classes are ignored.
func (r *Registry) Register(class EventClass, args []string, id ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return ErrRegistryFrozen
	}

	switch class {
	case ClassSceneSwitch:
		r.put(r.scenes, class, Join(args), id)
	case ClassStreamStarted:
		r.streamStart = append(r.streamStart, id)
	case ClassStreamStopped:
		r.streamStop = append(r.streamStop, id)
	case ClassCustomMessage:
		r.put(r.messages, class, Join(args), id)
	default:
		log.Debug().Str("class", string(class)).Int("trigger_id", int(id)).Msg("Ignoring trigger for unknown event class")
	}
	return nil
}

// put inserts a key; a duplicate key is overwritten (last registration wins).
func (r *Registry) put(m map[string]ID, class EventClass, key string, id ID) {
	if prev, exists := m[key]; exists {
		log.Warn().
			Str("class", string(class)).
			Str("key", key).
			Int("previous_id", int(prev)).
			Int("trigger_id", int(id)).
			Msg("Duplicate trigger key, last registration wins")
	}
	m[key] = id
}

// Freeze ends the registration phase.
func (r *Registry) Freeze() {
	r.mu.Lock()
	r.frozen = true
	r.mu.Unlock()
}

// Scene returns the trigger registered for a scene name.
func (r *Registry) Scene(name string) (ID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.scenes[name]
	return id, ok
}

// Message returns the trigger registered for a custom message body.
func (r *Registry) Message(body string) (ID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.messages[body]
	return id, ok
}

// StreamStarted returns the stream-start triggers in registration order.
func (r *Registry) StreamStarted() []ID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]ID(nil), r.streamStart...)
}

// StreamStopped returns the stream-stop triggers in registration order.
func (r *Registry) StreamStopped() []ID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]ID(nil), r.streamStop...)
}

// Stats summarizes how many triggers each class holds.
type Stats struct {
	Scenes        int
	StreamStarted int
	StreamStopped int
	Messages      int
}

// Stats returns per-class trigger counts.
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return Stats{
		Scenes:        len(r.scenes),
		StreamStarted: len(r.streamStart),
		StreamStopped: len(r.streamStop),
		Messages:      len(r.messages),
	}
}
