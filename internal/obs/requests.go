package obs

import (
	"context"
	"fmt"

	"github.com/andreykaipov/goobs"
	"github.com/andreykaipov/goobs/api/requests/filters"
	"github.com/andreykaipov/goobs/api/requests/general"
	"github.com/andreykaipov/goobs/api/requests/sceneitems"
	"github.com/andreykaipov/goobs/api/requests/scenes"
)

// CurrentScene returns the name of the current program scene.
func (s *Session) CurrentScene(ctx context.Context) (string, error) {
	var name string
	err := s.call(ctx, "GetCurrentProgramScene", func(c *goobs.Client) error {
		resp, err := c.Scenes.GetCurrentProgramScene()
		if err != nil {
			return err
		}
		name = resp.CurrentProgramSceneName
		return nil
	})
	return name, err
}

// SetCurrentScene switches the program scene.
func (s *Session) SetCurrentScene(ctx context.Context, name string) error {
	return s.call(ctx, "SetCurrentProgramScene", func(c *goobs.Client) error {
		_, err := c.Scenes.SetCurrentProgramScene(
			scenes.NewSetCurrentProgramSceneParams().WithSceneName(name))
		return err
	})
}

// SetSourceVisibility shows or hides a source in the current program scene.
func (s *Session) SetSourceVisibility(ctx context.Context, source string, visible bool) error {
	scene, err := s.CurrentScene(ctx)
	if err != nil {
		return fmt.Errorf("resolve current scene: %w", err)
	}

	var itemID int
	err = s.call(ctx, "GetSceneItemId", func(c *goobs.Client) error {
		resp, err := c.SceneItems.GetSceneItemId(
			sceneitems.NewGetSceneItemIdParams().WithSceneName(scene).WithSourceName(source))
		if err != nil {
			return err
		}
		itemID = resp.SceneItemId
		return nil
	})
	if err != nil {
		return fmt.Errorf("resolve scene item %q in %q: %w", source, scene, err)
	}

	return s.call(ctx, "SetSceneItemEnabled", func(c *goobs.Client) error {
		_, err := c.SceneItems.SetSceneItemEnabled(
			sceneitems.NewSetSceneItemEnabledParams().
				WithSceneName(scene).
				WithSceneItemId(itemID).
				WithSceneItemEnabled(visible))
		return err
	})
}

// SetFilterVisibility enables or disables a filter on a source.
func (s *Session) SetFilterVisibility(ctx context.Context, source, filter string, visible bool) error {
	return s.call(ctx, "SetSourceFilterEnabled", func(c *goobs.Client) error {
		_, err := c.Filters.SetSourceFilterEnabled(
			filters.NewSetSourceFilterEnabledParams().
				WithSourceName(source).
				WithFilterName(filter).
				WithFilterEnabled(visible))
		return err
	})
}

// BroadcastCustomMessage broadcasts a message tagged with Realm to all connected clients.
func (s *Session) BroadcastCustomMessage(ctx context.Context, msg string) error {
	return s.call(ctx, "BroadcastCustomEvent", func(c *goobs.Client) error {
		_, err := c.General.BroadcastCustomEvent(
			general.NewBroadcastCustomEventParams().WithEventData(map[string]any{
				"realm": Realm,
				"data": map[string]any{
					"message": msg,
				},
			}))
		return err
	})
}
