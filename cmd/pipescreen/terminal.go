package main

import (
	"context"
	"log"
	"math/rand/v2"
	"time"

	"github.com/gdamore/tcell/v2"

	"pipescreen.ai/internal/render/assets"
	"pipescreen.ai/internal/render/term"
)

type terminal struct {
	screen   tcell.Screen
	renderer *term.Renderer
}

// openTerminal takes over the controlling terminal. The camera draws from its own
// generator so the chosen view never perturbs the field.
func openTerminal(assetsDir string, seed int64, logger *log.Logger) (*terminal, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, err
	}
	if err := screen.Init(); err != nil {
		return nil, err
	}
	screen.HideCursor()
	screen.Clear()

	camRand := rand.New(rand.NewPCG(uint64(seed), uint64(time.Now().UnixNano())))
	return &terminal{
		screen:   screen,
		renderer: term.New(screen, assets.NewCache(assetsDir), camRand, logger),
	}, nil
}

// pollEvents forwards resizes to the renderer and stops the process on Esc, q or Ctrl-C.
func (t *terminal) pollEvents(cancel context.CancelFunc) {
	for {
		ev := t.screen.PollEvent()
		switch ev := ev.(type) {
		case nil:
			return
		case *tcell.EventResize:
			t.renderer.HandleEvent(ev)
		case *tcell.EventKey:
			if ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC || ev.Rune() == 'q' {
				cancel()
				return
			}
		}
	}
}

func (t *terminal) Close() { t.screen.Fini() }
