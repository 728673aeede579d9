package controller

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dokzlo13/obstrigger/internal/eventbus"
	"github.com/dokzlo13/obstrigger/internal/ledger"
	"github.com/dokzlo13/obstrigger/internal/obs"
	"github.com/dokzlo13/obstrigger/internal/trigger"
)

// fakeSession answers every command and records it.
type fakeSession struct {
	mu      sync.Mutex
	current string
	failOn  string
	calls   []string
}

func (s *fakeSession) add(call string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, call)
	if s.failOn != "" && strings.Contains(call, s.failOn) {
		return errors.New("obs unavailable")
	}
	return nil
}

func (s *fakeSession) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

func (s *fakeSession) CurrentScene(ctx context.Context) (string, error) { return s.current, nil }
func (s *fakeSession) SetCurrentScene(ctx context.Context, name string) error {
	return s.add("scene:" + name)
}
func (s *fakeSession) SetSourceVisibility(ctx context.Context, source string, visible bool) error {
	return s.add("source:" + source)
}
func (s *fakeSession) SetFilterVisibility(ctx context.Context, source, filter string, visible bool) error {
	return s.add("filter:" + source + "/" + filter)
}
func (s *fakeSession) BroadcastCustomMessage(ctx context.Context, msg string) error {
	return s.add("send:" + msg)
}

type memRecorder struct {
	mu      sync.Mutex
	entries []ledger.EventType
	lines   []string
}

func (r *memRecorder) Append(eventType ledger.EventType, fireID string, triggerID int, source string, payload map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, eventType)
	if line, ok := payload["line"].(string); ok {
		r.lines = append(r.lines, line)
	}
	return nil
}

func newTestController(t *testing.T, defs []Definition) (*Controller, *trigger.OBSHandler, *fakeSession, *memRecorder) {
	t.Helper()
	sess := &fakeSession{current: "Intro"}
	h := trigger.NewOBSHandler(sess)
	rec := &memRecorder{}
	bus := eventbus.New()
	t.Cleanup(func() { bus.Close(context.Background()) })

	c := New(bus, rec, h)
	require.NoError(t, c.Load(defs))
	return c, h, sess, rec
}

func TestController_LoadRegistersByClass(t *testing.T) {
	c, h, _, _ := newTestController(t, []Definition{
		{On: "OnOBSSwitchScenes Be Right Back", Actions: []string{"OBS send brb"}},
		{On: "onobsstreamstarted", Actions: []string{"OBS scene Live"}},
		{On: "OnOBSCustomMessage go live", Actions: []string{"OBS scene Live"}},
		{On: "OnTwitchFollow", Actions: []string{"OBS send follow"}},
	})

	assert.Equal(t, 4, c.Triggers())

	id, ok := h.Registry().Scene("Be Right Back")
	require.True(t, ok)
	assert.Equal(t, trigger.ID(1), id)
	assert.Equal(t, []trigger.ID{2}, h.Registry().StreamStarted())

	id, ok = h.Registry().Message("go live")
	require.True(t, ok)
	assert.Equal(t, trigger.ID(3), id)

	// Registration is closed after load
	assert.ErrorIs(t, h.RegisterTrigger(trigger.ClassStreamStopped, nil, 9), trigger.ErrRegistryFrozen)
}

func TestController_LoadRejectsEmptyTrigger(t *testing.T) {
	c := New(eventbus.New(), nil)
	assert.Error(t, c.Load([]Definition{{On: "   "}}))
}

func TestController_ExecuteRoutesByHandlerName(t *testing.T) {
	c, _, sess, _ := newTestController(t, nil)
	ctx := context.Background()

	require.NoError(t, c.Execute(ctx, trigger.ActionLine{"obs", "scene", "X"}))
	require.NoError(t, c.Execute(ctx, trigger.ActionLine{"Twitch", "chat", "hi"}))
	require.NoError(t, c.Execute(ctx, nil))

	assert.Equal(t, []string{"scene:X"}, sess.Calls())
}

func TestController_RunStopsAtFirstFailure(t *testing.T) {
	c, _, sess, rec := newTestController(t, []Definition{
		{On: "OnOBSStreamStopped", Actions: []string{
			"OBS scene Offline",
			"OBS source Cam filter Blur on",
			"OBS send bye",
		}},
	})
	sess.failOn = "filter:"

	err := c.Run(context.Background(), 1, "fire", "test")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OBS source Cam filter Blur on")

	assert.Equal(t, []string{"scene:Offline", "filter:Cam/Blur"}, sess.Calls())
	assert.Equal(t, []ledger.EventType{
		ledger.EventTriggerFired,
		ledger.EventActionCompleted,
		ledger.EventActionFailed,
	}, rec.entries)
}

func TestController_RunUnknownTrigger(t *testing.T) {
	c, _, _, _ := newTestController(t, nil)
	assert.Error(t, c.Run(context.Background(), 42, "fire", "test"))
	assert.False(t, c.Fire(42, "test"))
}

func TestController_MatchedEventsRunActions(t *testing.T) {
	c, h, sess, _ := newTestController(t, []Definition{
		{On: "OnOBSStreamStarted", Actions: []string{"OBS send first"}},
		{On: "OnOBSStreamStarted", Actions: []string{"OBS send second"}},
		{On: "OnOBSSwitchScenes Intro", Actions: []string{"OBS source Cam on"}},
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c.Start(ctx)

	events := make(chan obs.Event, 2)
	events <- obs.StreamStarted{}
	events <- obs.SceneChanged{SceneName: "Intro"}
	close(events)
	h.Matcher(c).Run(ctx, events)

	require.Eventually(t, func() bool { return len(sess.Calls()) == 3 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"send:first", "send:second", "source:Cam"}, sess.Calls())
}

func TestController_ExecuteLine(t *testing.T) {
	c, _, sess, rec := newTestController(t, nil)

	require.NoError(t, c.ExecuteLine(context.Background(), "  OBS   send hello   world ", "http"))
	assert.Equal(t, []string{"send:hello world"}, sess.Calls())
	assert.Equal(t, []string{"OBS send hello world"}, rec.lines)
}
