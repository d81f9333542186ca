package testbed

import (
	"github.com/spaghettifunk/vkcube/engine"
	"github.com/spaghettifunk/vkcube/engine/core"
)

// reportInterval is how often, in seconds, the uptime is logged.
const reportInterval = 5.0

type TestGame struct {
	*engine.Game
}

type gameState struct {
	uptime     float64
	lastReport float64

	width  uint32
	height uint32
}

// NewTestGame wraps config in a game that only reports on what the engine does.
func NewTestGame(config *engine.ApplicationConfig) *TestGame {
	tg := &TestGame{
		Game: &engine.Game{
			ApplicationConfig: config,
			State: &gameState{
				width:  config.Window.StartWidth,
				height: config.Window.StartHeight,
			},
		},
	}

	tg.FnInitialize = tg.Initialize
	tg.FnUpdate = tg.Update
	tg.FnOnResize = tg.OnResize
	tg.FnShutdown = tg.Shutdown

	return tg
}

func (g *TestGame) Initialize() error {
	core.LogDebug("TestGame Initialize fn....")
	core.LogInfo("Press ESC to quit, F5 to force a swapchain rebuild.")
	return nil
}

func (g *TestGame) Update(deltaTime float64) error {
	state := g.State.(*gameState)
	state.uptime += deltaTime
	if state.uptime-state.lastReport >= reportInterval {
		state.lastReport = state.uptime
		core.LogDebug("Running for %.0fs at %dx%d.", state.uptime, state.width, state.height)
	}
	return nil
}

func (g *TestGame) OnResize(width, height uint32) error {
	state := g.State.(*gameState)
	state.width = width
	state.height = height
	return nil
}

func (g *TestGame) Shutdown() error {
	state := g.State.(*gameState)
	core.LogInfo("TestGame shutting down after %.1fs.", state.uptime)
	return nil
}
