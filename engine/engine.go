package engine

import (
	"errors"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-boids/common"
	"github.com/Carmen-Shannon/oxy-boids/engine/renderer"
	"github.com/Carmen-Shannon/oxy-boids/engine/window"
)

// ErrMissingCollaborator is returned by Run when the engine was built without a window or renderer.
var ErrMissingCollaborator = errors.New("engine requires a window and a renderer")

// engine implements the Engine interface.
// Drives the renderer from the window's message loop on the window thread.
type engine struct {
	window   window.Window
	renderer renderer.Renderer
	logger   common.Logger

	quitChannel chan struct{}
	quitOnce    sync.Once // Ensures quitChannel is only closed once
	closeOnce   sync.Once // Ensures the window is only closed once

	// runErr is the fatal frame error that stopped the loop, if any.
	runErr error

	vsync bool

	renderCallback   func(deltaTime float32)
	renderFrameLimit time.Duration // minimum frame duration; 0 = uncapped
	lastRender       time.Time

	now   func() time.Time
	sleep func(time.Duration)
}

// Engine is the main entry point of the simulation.
// It runs one frame per window message loop iteration and applies the surface fault policy:
// lost or outdated surfaces are reconfigured to the window size, every other error stops the loop.
type Engine interface {
	// Window returns the underlying window.
	//
	// Returns:
	//   - window.Window: the window instance
	Window() window.Window

	// Renderer returns the renderer driven by the engine.
	//
	// Returns:
	//   - renderer.Renderer: the renderer instance
	Renderer() renderer.Renderer

	// SetRenderFrameLimit sets an optional render frame rate cap in frames per second.
	// Pass 0 to uncap the render loop (default).
	//
	// Parameters:
	//   - fps: maximum render frames per second (0 = uncapped)
	SetRenderFrameLimit(fps float64)

	// Run runs the frame loop on the calling thread until the window closes, Quit is called,
	// or a frame fails with a non-recoverable error. The renderer is released and the window
	// closed before Run returns.
	//
	// Returns:
	//   - error: the fatal frame error, or nil on a normal shutdown
	Run() error

	// Quit stops the frame loop at the next iteration.
	// Safe to call multiple times; subsequent calls are no-ops.
	Quit()
}

// NewEngine creates a new Engine instance with the provided options.
// Options are applied directly to the engine struct via the option-builder pattern.
//
// Parameters:
//   - options: functional options for engine configuration (window, renderer, logger, frame limit)
//
// Returns:
//   - Engine: the newly created engine
func NewEngine(options ...EngineBuilderOption) Engine {
	e := &engine{
		quitChannel: make(chan struct{}),
		logger:      common.NewNopLogger(),
		vsync:       true,
		now:         time.Now,
		sleep:       time.Sleep,
	}

	for _, opt := range options {
		opt(e)
	}

	return e
}

func (e *engine) Window() window.Window {
	return e.window
}

func (e *engine) Renderer() renderer.Renderer {
	return e.renderer
}

func (e *engine) SetRenderFrameLimit(fps float64) {
	if fps <= 0 {
		e.renderFrameLimit = 0
		return
	}
	e.renderFrameLimit = time.Duration(float64(time.Second) / fps)
}

func (e *engine) Run() error {
	if e.window == nil || e.renderer == nil {
		return ErrMissingCollaborator
	}

	e.window.SetResizeCallback(func(width, height int) {
		e.renderer.Resize(width, height)
	})
	e.window.SetKeyDownCallback(e.handleKey)
	e.window.SetUpdateCallback(e.handleRender)

	e.lastRender = e.now()
	e.window.ProcessMessages()

	e.window.SetUpdateCallback(nil)
	e.closeWindow()
	e.logger.Infof("Stopped after %d frames", e.renderer.FrameCounter())
	return e.runErr
}

// Quit signals the frame loop to stop.
// Safe to call multiple times; subsequent calls are no-ops due to sync.Once.
func (e *engine) Quit() {
	e.signalQuit()
}

// signalQuit closes the quit channel to signal the loop to exit.
func (e *engine) signalQuit() {
	e.quitOnce.Do(func() {
		close(e.quitChannel)
	})
}

// closeWindow releases the renderer and closes the window once, logging rather than returning
// close failures. The surface is released before the window it was created from.
func (e *engine) closeWindow() {
	e.closeOnce.Do(func() {
		e.renderer.Release()
		if err := e.window.Close(); err != nil {
			e.logger.Warnf("Failed to close window: %v", err)
		}
	})
}

// handleRender renders one frame. It is called once per window message loop iteration.
// A recoverable surface fault reconfigures the surface and the frame is retried on the next
// iteration; any other error is recorded and stops the loop. Nothing is rendered while the
// window is minimized.
func (e *engine) handleRender() {
	select {
	case <-e.quitChannel:
		e.closeWindow()
		return
	default:
	}

	now := e.now()
	if e.window.Width() <= 0 || e.window.Height() <= 0 {
		e.lastRender = now
		return
	}
	dt := float32(now.Sub(e.lastRender).Seconds())
	e.lastRender = now

	if err := e.renderer.RenderFrame(); err != nil {
		e.handleFrameError(err)
		return
	}

	if e.renderCallback != nil {
		e.renderCallback(dt)
	}

	// Frame rate limiting
	if e.renderFrameLimit > 0 {
		if remaining := e.renderFrameLimit - e.now().Sub(now); remaining > 0 {
			e.sleep(remaining)
		}
	}
}

// handleFrameError applies the surface fault policy to a failed frame.
func (e *engine) handleFrameError(err error) {
	var fault *renderer.SurfaceFault
	if errors.As(err, &fault) && fault.Recoverable() {
		e.logger.Warnf("Surface %s, reconfiguring to %dx%d", fault.Kind, e.window.Width(), e.window.Height())
		e.renderer.Resize(e.window.Width(), e.window.Height())
		return
	}

	e.logger.Errorf("Frame %d failed: %v", e.renderer.FrameCounter(), err)
	e.runErr = err
	e.signalQuit()
	e.closeWindow()
}

// handleKey reacts to key presses forwarded by the window.
func (e *engine) handleKey(keyCode uint32) {
	switch keyCode {
	case common.KeyV:
		e.vsync = !e.vsync
		mode := renderer.PresentModeUncapped
		if e.vsync {
			mode = renderer.PresentModeVSync
		}
		e.renderer.SetPresentMode(mode)
		e.renderer.Resize(e.window.Width(), e.window.Height())
		e.logger.Infof("VSync: %t", e.vsync)
	case common.KeyR:
		e.renderer.Resize(e.window.Width(), e.window.Height())
	}
}
