package trigger

import (
	"context"
)

// OBSHandlerName is the handler token used in trigger and action lines.
const OBSHandlerName = "OBS"

// OBSHandler implements Handler for OBS: it owns the trigger registry and
// translates action lines into session commands.
type OBSHandler struct {
	registry   *Registry
	session    Session
	translator *Translator
}

// NewOBSHandler creates an OBS handler bound to a session.
func NewOBSHandler(session Session) *OBSHandler {
	return &OBSHandler{
		registry:   NewRegistry(),
		session:    session,
		translator: NewTranslator(session),
	}
}

func (h *OBSHandler) Name() string { return OBSHandlerName }

func (h *OBSHandler) Classes() []EventClass {
	return []EventClass{ClassSceneSwitch, ClassStreamStarted, ClassStreamStopped, ClassCustomMessage}
}

func (h *OBSHandler) RegisterTrigger(class EventClass, args []string, id ID) error {
	return h.registry.Register(class, args, id)
}

func (h *OBSHandler) Execute(ctx context.Context, line ActionLine) error {
	return h.translator.Execute(ctx, line)
}

// Freeze ends trigger registration.
func (h *OBSHandler) Freeze() {
	h.registry.Freeze()
}

// Registry exposes the registry for inspection.
func (h *OBSHandler) Registry() *Registry {
	return h.registry
}

// Matcher creates the event matcher that reports to dispatcher.
func (h *OBSHandler) Matcher(dispatcher Dispatcher) *Matcher {
	return NewMatcher(h.registry, h.session, dispatcher)
}
