// Package controller owns trigger definitions and routes between handlers.
//
// Trigger lines are routed to handlers by event class, fired trigger ids are
// queued on the event bus, and each action line of a fired trigger is routed
// to a handler by its first token.
package controller

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/obstrigger/internal/eventbus"
	"github.com/dokzlo13/obstrigger/internal/ledger"
	"github.com/dokzlo13/obstrigger/internal/trigger"
)

// Definition is one user-declared trigger: an event line and the action lines it runs.
type Definition struct {
	On      string
	Actions []string
}

// Recorder persists fire and action history.
type Recorder interface {
	Append(eventType ledger.EventType, fireID string, triggerID int, source string, payload map[string]any) error
}

// freezer is implemented by handlers whose trigger registration can be closed.
type freezer interface {
	Freeze()
}

type definition struct {
	on      []string
	actions []trigger.ActionLine
}

// Controller is the Dispatcher: it stores triggers and runs their actions.
type Controller struct {
	handlers map[string]trigger.Handler             // by lower-cased handler name
	classes  map[trigger.EventClass]trigger.Handler // by event class
	triggers map[trigger.ID]definition

	bus      *eventbus.Bus
	recorder Recorder
}

// New creates a controller that runs fired triggers on bus.
// recorder may be nil.
func New(bus *eventbus.Bus, recorder Recorder, handlers ...trigger.Handler) *Controller {
	c := &Controller{
		handlers: make(map[string]trigger.Handler),
		classes:  make(map[trigger.EventClass]trigger.Handler),
		triggers: make(map[trigger.ID]definition),
		bus:      bus,
		recorder: recorder,
	}
	for _, h := range handlers {
		c.handlers[strings.ToLower(h.Name())] = h
		for _, class := range h.Classes() {
			c.classes[class] = h
		}
	}
	return c
}

// Load registers definitions with their handlers and closes registration.
// Trigger ids are assigned 1..n in definition order.
func (c *Controller) Load(defs []Definition) error {
	for i, d := range defs {
		id := trigger.ID(len(c.triggers) + 1)
		tokens := trigger.Tokenize(d.On)
		if len(tokens) == 0 {
			return fmt.Errorf("trigger %d: empty trigger line", i+1)
		}

		def := definition{on: tokens}
		for _, a := range d.Actions {
			if line := trigger.Tokenize(a); len(line) > 0 {
				def.actions = append(def.actions, trigger.ActionLine(line))
			}
		}
		c.triggers[id] = def

		class := trigger.ParseClass(tokens[0])
		h, ok := c.classes[class]
		if !ok {
			log.Warn().Str("trigger", d.On).Int("trigger_id", int(id)).Msg("No handler for event class, trigger will only fire manually")
			continue
		}
		if err := h.RegisterTrigger(class, tokens[1:], id); err != nil {
			return fmt.Errorf("trigger %d (%s): %w", id, d.On, err)
		}

		log.Debug().
			Str("trigger", d.On).
			Int("trigger_id", int(id)).
			Str("handler", h.Name()).
			Int("actions", len(def.actions)).
			Msg("Registered trigger")
	}

	for _, h := range c.handlers {
		if f, ok := h.(freezer); ok {
			f.Freeze()
		}
	}
	return nil
}

// Start subscribes the trigger runner to the bus.
func (c *Controller) Start(ctx context.Context) {
	c.bus.Subscribe(eventbus.EventTypeTrigger, func(event eventbus.Event) {
		id, _ := event.Data["trigger_id"].(trigger.ID)
		source, _ := event.Data["source"].(string)
		if err := c.Run(ctx, id, event.ID, source); err != nil {
			log.Error().Err(err).Int("trigger_id", int(id)).Str("fire_id", event.ID).Msg("Trigger failed")
		}
	})
}

// Handle implements trigger.Dispatcher. The trigger is queued, not run inline.
func (c *Controller) Handle(id trigger.ID) {
	c.Fire(id, "obs")
}

// Fire queues a trigger for execution and reports whether it was accepted.
func (c *Controller) Fire(id trigger.ID, source string) bool {
	if _, ok := c.triggers[id]; !ok {
		log.Warn().Int("trigger_id", int(id)).Msg("Unknown trigger id")
		return false
	}

	fireID := uuid.NewString()
	queued := c.bus.Publish(eventbus.Event{
		Type: eventbus.EventTypeTrigger,
		ID:   fireID,
		Data: map[string]any{
			"trigger_id": id,
			"source":     source,
		},
	})
	return queued > 0
}

// Run executes the actions of a trigger in order, stopping at the first failure.
func (c *Controller) Run(ctx context.Context, id trigger.ID, fireID, source string) error {
	def, ok := c.triggers[id]
	if !ok {
		return fmt.Errorf("trigger %d not found", id)
	}

	log.Info().
		Str("trigger", trigger.Join(def.on)).
		Int("trigger_id", int(id)).
		Str("fire_id", fireID).
		Str("source", source).
		Msg("Trigger fired")
	c.record(ledger.EventTriggerFired, fireID, id, source, map[string]any{
		"trigger": trigger.Join(def.on),
		"actions": len(def.actions),
	})

	for _, line := range def.actions {
		err := c.Execute(ctx, line)
		if err != nil {
			c.record(ledger.EventActionFailed, fireID, id, source, map[string]any{
				"line":  trigger.Join(line),
				"error": err.Error(),
			})
			return fmt.Errorf("action %q: %w", trigger.Join(line), err)
		}
		c.record(ledger.EventActionCompleted, fireID, id, source, map[string]any{
			"line": trigger.Join(line),
		})
	}
	return nil
}

// Execute routes one action line to the handler named by its first token.
// Lines for unknown handlers are ignored.
func (c *Controller) Execute(ctx context.Context, line trigger.ActionLine) error {
	if len(line) == 0 {
		return nil
	}

	h, ok := c.handlers[strings.ToLower(line[0])]
	if !ok {
		log.Warn().Str("handler", line[0]).Strs("line", line).Msg("No handler for action, skipping")
		return nil
	}

	log.Debug().Str("handler", h.Name()).Strs("line", line).Msg("Executing action")
	return h.Execute(ctx, line)
}

// ExecuteLine tokenizes and executes a single action line, recording the outcome.
func (c *Controller) ExecuteLine(ctx context.Context, text, source string) error {
	line := trigger.ActionLine(trigger.Tokenize(text))
	fireID := uuid.NewString()

	if err := c.Execute(ctx, line); err != nil {
		c.record(ledger.EventActionFailed, fireID, 0, source, map[string]any{
			"line":  trigger.Join(line),
			"error": err.Error(),
		})
		return err
	}
	c.record(ledger.EventActionCompleted, fireID, 0, source, map[string]any{
		"line": trigger.Join(line),
	})
	return nil
}

// Triggers returns the number of loaded triggers.
func (c *Controller) Triggers() int {
	return len(c.triggers)
}

func (c *Controller) record(eventType ledger.EventType, fireID string, id trigger.ID, source string, payload map[string]any) {
	if c.recorder == nil {
		return
	}
	if err := c.recorder.Append(eventType, fireID, int(id), source, payload); err != nil {
		log.Error().Err(err).Str("event_type", string(eventType)).Msg("Failed to append to ledger")
	}
}
