package trigger

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
)

// Action kinds (token 1 of an action line).
const (
	KindScene  = "scene"
	KindSource = "source"
	KindSend   = "send"
)

// FilterKeyword separates a source name from a filter name in source actions.
const FilterKeyword = "filter"

// Action is a parsed action line: SceneAction, SourceAction or BroadcastAction.
type Action interface {
	kind() string
}

// SceneAction switches the program scene.
type SceneAction struct {
	Scene string
}

// SourceAction toggles a source, or one of its filters when HasFilter is set.
type SourceAction struct {
	Source    string
	Filter    string
	HasFilter bool
	Visible   bool
}

// BroadcastAction sends a custom message.
type BroadcastAction struct {
	Message string
}

func (SceneAction) kind() string     { return KindScene }
func (SourceAction) kind() string    { return KindSource }
func (BroadcastAction) kind() string { return KindSend }

// ParseAction parses an action line. It returns nil for unknown kinds and
// for lines too short to carry a kind.
func ParseAction(line ActionLine) Action {
	if len(line) < 2 {
		return nil
	}

	args := line[2:]
	switch strings.ToLower(line[1]) {
	case KindScene:
		return SceneAction{Scene: Join(args)}
	case KindSource:
		return parseSource(args)
	case KindSend:
		return BroadcastAction{Message: Join(args)}
	default:
		return nil
	}
}

// parseSource reads "<source...> [filter <filter...>] <on|off>".
// The first filter keyword wins, so names containing the keyword are not supported.
func parseSource(args []string) Action {
	// A bare "source" is ignored rather than hiding a source named "".
	if len(args) == 0 {
		return nil
	}

	last := len(args) - 1
	visible := strings.EqualFold(args[last], "on")
	names := args[:last]

	k := IndexFold(names, FilterKeyword)
	if k == -1 {
		return SourceAction{Source: Join(names), Visible: visible}
	}
	return SourceAction{
		Source:    Join(names[:k]),
		Filter:    Join(names[k+1:]),
		HasFilter: true,
		Visible:   visible,
	}
}

// Translator executes action lines against a Session.
type Translator struct {
	session Session
}

// NewTranslator creates a translator bound to a session.
func NewTranslator(session Session) *Translator {
	return &Translator{session: session}
}

// Execute issues the Session command for one action line and waits for it.
// Unknown action kinds are ignored.
func (t *Translator) Execute(ctx context.Context, line ActionLine) error {
	action := ParseAction(line)
	if action == nil {
		log.Debug().Strs("line", line).Msg("Ignoring unrecognized action")
		return nil
	}

	switch a := action.(type) {
	case SceneAction:
		if err := t.session.SetCurrentScene(ctx, a.Scene); err != nil {
			return fmt.Errorf("set scene %q: %w", a.Scene, err)
		}
	case SourceAction:
		if !a.HasFilter {
			if err := t.session.SetSourceVisibility(ctx, a.Source, a.Visible); err != nil {
				return fmt.Errorf("set source %q visibility: %w", a.Source, err)
			}
			return nil
		}
		if err := t.session.SetFilterVisibility(ctx, a.Source, a.Filter, a.Visible); err != nil {
			return fmt.Errorf("set filter %q on %q visibility: %w", a.Filter, a.Source, err)
		}
	case BroadcastAction:
		if err := t.session.BroadcastCustomMessage(ctx, a.Message); err != nil {
			return fmt.Errorf("broadcast %q: %w", a.Message, err)
		}
	}
	return nil
}
