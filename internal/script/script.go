// Package script loads trigger definitions from a Lua script.
//
// Scripts declare triggers with the global trigger function:
//
//	trigger("OnOBSSwitchScenes Be Right Back", "OBS source Cam off", "OBS send brb")
//	trigger("OnOBSStreamStarted", { "OBS scene Live" })
//
// The "log" module is available via require("log").
package script

import (
	"fmt"

	"github.com/rs/zerolog/log"
	lua "github.com/yuin/gopher-lua"

	"github.com/dokzlo13/obstrigger/internal/controller"
)

type loader struct {
	defs []controller.Definition
}

// LoadFile executes the script at path and returns the triggers it declared.
func LoadFile(path string) ([]controller.Definition, error) {
	log.Info().Str("path", path).Msg("Loading Lua script")
	defs, err := run(func(L *lua.LState) error { return L.DoFile(path) })
	if err != nil {
		return nil, fmt.Errorf("failed to execute Lua script: %w", err)
	}
	log.Info().Int("triggers", len(defs)).Msg("Lua script loaded successfully")
	return defs, nil
}

// LoadString executes script source and returns the triggers it declared.
func LoadString(src string) ([]controller.Definition, error) {
	return run(func(L *lua.LState) error { return L.DoString(src) })
}

func run(exec func(L *lua.LState) error) ([]controller.Definition, error) {
	L := lua.NewState()
	defer L.Close()

	l := &loader{}
	L.PreloadModule("log", (&logModule{}).Loader)
	L.SetGlobal("trigger", L.NewFunction(l.trigger))

	if err := exec(L); err != nil {
		return nil, err
	}
	return l.defs, nil
}

// trigger(line, action...) or trigger(line, {action, ...})
func (l *loader) trigger(L *lua.LState) int {
	def := controller.Definition{On: L.CheckString(1)}

	for i := 2; i <= L.GetTop(); i++ {
		switch v := L.Get(i).(type) {
		case lua.LString:
			def.Actions = append(def.Actions, string(v))
		case *lua.LTable:
			for j := 1; j <= v.Len(); j++ {
				s, ok := v.RawGetInt(j).(lua.LString)
				if !ok {
					L.ArgError(i, "action list must contain strings")
					return 0
				}
				def.Actions = append(def.Actions, string(s))
			}
		default:
			L.ArgError(i, "action must be a string or a list of strings")
			return 0
		}
	}

	l.defs = append(l.defs, def)
	return 0
}
