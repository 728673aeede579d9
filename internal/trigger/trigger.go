// Package trigger maps OBS events to trigger ids and action lines to OBS commands.
//
// A Registry holds the trigger keys declared by the user, a Matcher consumes
// session events and reports matched ids to a Dispatcher, and a Translator
// turns action lines ("OBS scene Main Scene", "OBS source Cam filter Blur on")
// into Session calls. OBSHandler bundles them behind the Handler capability
// interface the controller routes through.
package trigger

import (
	"context"
	"strings"
)

// ID is an opaque trigger identifier assigned by the owning controller.
type ID int

// EventClass is the lower-cased event class token of a trigger line.
type EventClass string

const (
	ClassSceneSwitch   EventClass = "onobsswitchscenes"
	ClassStreamStarted EventClass = "onobsstreamstarted"
	ClassStreamStopped EventClass = "onobsstreamstopped"
	ClassCustomMessage EventClass = "onobscustommessage"
)

// ParseClass normalizes a user-written event class token.
func ParseClass(token string) EventClass {
	return EventClass(strings.ToLower(token))
}

// ActionLine is one tokenized action: [handler, kind, args...].
type ActionLine []string

// Dispatcher receives matched trigger ids.
type Dispatcher interface {
	Handle(id ID)
}

// DispatcherFunc adapts a function to the Dispatcher interface.
type DispatcherFunc func(id ID)

func (f DispatcherFunc) Handle(id ID) { f(id) }

// Session is the subset of the OBS control session the core needs.
type Session interface {
	CurrentScene(ctx context.Context) (string, error)
	SetCurrentScene(ctx context.Context, name string) error
	SetSourceVisibility(ctx context.Context, source string, visible bool) error
	SetFilterVisibility(ctx context.Context, source, filter string, visible bool) error
	BroadcastCustomMessage(ctx context.Context, msg string) error
}

// Handler is the capability interface one integration exposes to the controller.
type Handler interface {
	// Name is the token action lines use to address this handler (token 0).
	Name() string
	// Classes lists the event classes this handler accepts triggers for.
	Classes() []EventClass
	RegisterTrigger(class EventClass, args []string, id ID) error
	Execute(ctx context.Context, line ActionLine) error
}
