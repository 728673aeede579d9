package obs

import (
	"fmt"

	"github.com/andreykaipov/goobs/api/events"
	"github.com/andreykaipov/goobs/api/events/subscriptions"
	"github.com/rs/zerolog/log"
)

// Realm is the namespace tag obstrigger puts on (and expects from) custom broadcasts.
const Realm = "kruiz-control"

// Output states reported by StreamStateChanged.
const (
	OutputStarted = "OBS_WEBSOCKET_OUTPUT_STARTED"
	OutputStopped = "OBS_WEBSOCKET_OUTPUT_STOPPED"
)

// Subscriptions is the event subscription mask sent when identifying.
const Subscriptions = subscriptions.General | subscriptions.Scenes | subscriptions.Outputs

// Event is one of SceneChanged, StreamStarted, StreamStopped or CustomMessage.
type Event interface {
	eventName() string
}

// SceneChanged is emitted when OBS switches its program scene.
type SceneChanged struct {
	SceneName string
}

// StreamStarted is emitted once the stream output is fully started.
type StreamStarted struct{}

// StreamStopped is emitted once the stream output is fully stopped.
type StreamStopped struct{}

// CustomMessage is a broadcast custom event carrying a realm and a message body.
type CustomMessage struct {
	Realm   string
	Message string
}

func (SceneChanged) eventName() string  { return "scene_changed" }
func (StreamStarted) eventName() string { return "stream_started" }
func (StreamStopped) eventName() string { return "stream_stopped" }
func (CustomMessage) eventName() string { return "custom_message" }

// EventName returns a short name for logging.
func EventName(e Event) string {
	return e.eventName()
}

// decodeEvent converts a goobs event into an Event.
// Returns false for events obstrigger does not consume.
func decodeEvent(raw any) (Event, bool) {
	switch e := raw.(type) {
	case *events.CurrentProgramSceneChanged:
		return SceneChanged{SceneName: e.SceneName}, true

	case *events.StreamStateChanged:
		switch e.OutputState {
		case OutputStarted:
			return StreamStarted{}, true
		case OutputStopped:
			return StreamStopped{}, true
		}
		// Intermediate states (starting, stopping, reconnecting)
		return nil, false

	case *events.CustomEvent:
		return decodeCustom(e.EventData), true

	default:
		log.Trace().Str("event_type", fmt.Sprintf("%T", raw)).Msg("Unhandled event type")
		return nil, false
	}
}

// decodeCustom reads {realm, data: {message}}. Missing fields decode as empty.
// A payload still nested under its eventData key is unwrapped first.
func decodeCustom(data map[string]any) CustomMessage {
	if _, ok := data["realm"]; !ok {
		if nested, ok := data["eventData"].(map[string]any); ok {
			data = nested
		}
	}

	var msg CustomMessage
	msg.Realm, _ = data["realm"].(string)
	if inner, ok := data["data"].(map[string]any); ok {
		msg.Message, _ = inner["message"].(string)
	}
	return msg
}
