package trigger

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/obstrigger/internal/obs"
)

// Matcher checks session events against a Registry and reports matches.
type Matcher struct {
	registry   *Registry
	session    Session
	dispatcher Dispatcher
}

// NewMatcher creates a matcher. The session is used to confirm scene changes.
func NewMatcher(registry *Registry, session Session, dispatcher Dispatcher) *Matcher {
	return &Matcher{
		registry:   registry,
		session:    session,
		dispatcher: dispatcher,
	}
}

// Run consumes events one at a time until the channel closes or ctx is cancelled.
func (m *Matcher) Run(ctx context.Context, events <-chan obs.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				log.Debug().Msg("Event channel closed, matcher stopping")
				return
			}
			m.Handle(ctx, ev)
		}
	}
}

// Handle routes a single event to its class handler.
func (m *Matcher) Handle(ctx context.Context, ev obs.Event) {
	switch e := ev.(type) {
	case obs.SceneChanged:
		m.OnSceneChanged(ctx, e)
	case obs.StreamStarted:
		m.OnStreamStarted(ctx)
	case obs.StreamStopped:
		m.OnStreamStopped(ctx)
	case obs.CustomMessage:
		m.OnCustomMessage(ctx, e)
	}
}

// OnSceneChanged dispatches the scene trigger only when OBS still reports the
// event's scene as current, so stale notifications from rapid switches are dropped.
func (m *Matcher) OnSceneChanged(ctx context.Context, ev obs.SceneChanged) {
	current, err := m.session.CurrentScene(ctx)
	if err != nil {
		log.Warn().Err(err).Str("scene", ev.SceneName).Msg("Failed to query current scene")
		return
	}

	if current != ev.SceneName {
		log.Debug().
			Str("scene", ev.SceneName).
			Str("current", current).
			Msg("Scene change superseded, skipping")
		return
	}

	id, ok := m.registry.Scene(current)
	if !ok {
		log.Trace().Str("scene", current).Msg("No trigger for scene")
		return
	}

	log.Debug().Str("scene", current).Int("trigger_id", int(id)).Msg("Scene change matched trigger")
	m.dispatcher.Handle(id)
}

// OnStreamStarted dispatches all stream-start triggers in registration order.
func (m *Matcher) OnStreamStarted(ctx context.Context) {
	m.dispatchAll("stream_started", m.registry.StreamStarted())
}

// OnStreamStopped dispatches all stream-stop triggers in registration order.
func (m *Matcher) OnStreamStopped(ctx context.Context) {
	m.dispatchAll("stream_stopped", m.registry.StreamStopped())
}

func (m *Matcher) dispatchAll(event string, ids []ID) {
	for _, id := range ids {
		log.Debug().Str("event", event).Int("trigger_id", int(id)).Msg("Stream event matched trigger")
		m.dispatcher.Handle(id)
	}
}

// OnCustomMessage dispatches the message trigger for broadcasts in our realm.
func (m *Matcher) OnCustomMessage(ctx context.Context, ev obs.CustomMessage) {
	if ev.Realm != obs.Realm {
		log.Trace().Str("realm", ev.Realm).Msg("Ignoring custom message from foreign realm")
		return
	}

	id, ok := m.registry.Message(ev.Message)
	if !ok {
		log.Trace().Str("message", ev.Message).Msg("No trigger for custom message")
		return
	}

	log.Debug().Str("message", ev.Message).Int("trigger_id", int(id)).Msg("Custom message matched trigger")
	m.dispatcher.Handle(id)
}
