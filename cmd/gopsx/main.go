// This file is part of gopsx.
//
// gopsx is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// gopsx is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with gopsx.  If not, see <https://www.gnu.org/licenses/>.

// Command gopsx is the process entry point: it parses the command
// line, opens an SDL/OpenGL window, constructs an emulation.Machine
// against that window's GL context, and drives the run loop until the
// window is closed. Single-threaded by construction (see SPEC_FULL.md
// §5): the same goroutine polls SDL events, steps the guest CPU and
// issues every GL call, matching the teacher's own gui/sdl convention
// of never touching a GL context from more than one goroutine.
package main

import (
	"flag"
	"fmt"
	"os"
	"runtime"

	"github.com/veandco/go-sdl2/sdl"

	"github.com/gopsx/gopsx/controller"
	"github.com/gopsx/gopsx/curated"
	"github.com/gopsx/gopsx/emulation"
	"github.com/gopsx/gopsx/hardware/gpu/rasterizer"
	"github.com/gopsx/gopsx/logger"
	"github.com/gopsx/gopsx/prefs"
)

func init() {
	// SDL and the GL context it creates are only valid on the thread
	// that created them.
	runtime.LockOSThread()
}

// padButtons maps the handful of keyboard keys this stub's input
// pump recognises onto controller.Button values; a real gamepad/SDL
// joystick mapping is out of this spec's scope (§1 Non-goals).
var padButtons = map[sdl.Keycode]controller.Button{
	sdl.K_UP:     controller.Up,
	sdl.K_DOWN:   controller.Down,
	sdl.K_LEFT:   controller.Left,
	sdl.K_RIGHT:  controller.Right,
	sdl.K_RETURN: controller.Start,
	sdl.K_RSHIFT: controller.Select,
	sdl.K_z:      controller.Cross,
	sdl.K_x:      controller.Circle,
	sdl.K_a:      controller.Square,
	sdl.K_s:      controller.Triangle,
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, curated.Head(err))
		os.Exit(1)
	}
}

func run() error {
	biosPath := flag.String("bios", "", "path to the BIOS ROM image")
	vramdump := flag.String("vramdump", "", "write a VRAM snapshot to this path each time F9 is pressed")
	flag.Parse()

	bootPath := flag.Arg(0)
	if *biosPath == "" {
		return curated.Errorf("gopsx: -bios is required")
	}

	pf, err := prefs.NewDisk("gopsx.prefs")
	if err == nil {
		_ = pf.Load()
	}

	if err := sdl.Init(sdl.INIT_VIDEO | sdl.INIT_EVENTS); err != nil {
		return curated.Errorf("gopsx: sdl init failed: %w", err)
	}
	defer sdl.Quit()

	if err := sdl.GLSetAttribute(sdl.GL_CONTEXT_MAJOR_VERSION, 3); err != nil {
		return err
	}
	if err := sdl.GLSetAttribute(sdl.GL_CONTEXT_MINOR_VERSION, 2); err != nil {
		return err
	}
	if err := sdl.GLSetAttribute(sdl.GL_CONTEXT_PROFILE_MASK, sdl.GL_CONTEXT_PROFILE_CORE); err != nil {
		return err
	}

	window, err := sdl.CreateWindow("gopsx",
		sdl.WINDOWPOS_UNDEFINED, sdl.WINDOWPOS_UNDEFINED,
		1024, 512, sdl.WINDOW_OPENGL|sdl.WINDOW_RESIZABLE)
	if err != nil {
		return curated.Errorf("gopsx: window creation failed: %w", err)
	}
	defer window.Destroy()

	glContext, err := window.GLCreateContext()
	if err != nil {
		return curated.Errorf("gopsx: gl context creation failed: %w", err)
	}
	defer sdl.GLDeleteContext(glContext)

	backend, err := rasterizer.NewGL()
	if err != nil {
		return curated.Errorf("gopsx: gl backend init failed: %w", err)
	}

	m := emulation.New(backend)
	if err := m.LoadBIOSFile(*biosPath); err != nil {
		return err
	}

	if bootPath != "" {
		if err := bootExecutable(m, bootPath); err != nil {
			return err
		}
	}

	dbg, err := newDebugUI(window)
	if err != nil {
		logger.Logf(logger.Allow, "gopsx", "debug overlay disabled: %v", err)
	} else {
		defer dbg.destroy()
	}

	logger.Log(logger.Allow, "gopsx", "entering run loop")

	dumpArmed := *vramdump != ""
	running := true
	for running {
		for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
			switch e := event.(type) {
			case *sdl.QuitEvent:
				running = false
			case *sdl.KeyboardEvent:
				if b, ok := padButtons[e.Keysym.Sym]; ok {
					m.Pad1().SetButton(b, e.State == sdl.PRESSED)
				}
				if e.Keysym.Sym == sdl.K_F9 && e.State == sdl.PRESSED && dumpArmed {
					dumpVRAM(m, *vramdump)
				}
			}
		}

		m.RunFrame()

		if dbg != nil {
			dbg.render(m)
		}
		window.GLSwap()
	}

	if pf != nil {
		_ = pf.Save()
	}
	return nil
}

// bootExecutable loads path as a disc image if its extension names one,
// otherwise as a bare PS-X EXE file, per spec.md §6's supplementary
// direct-executable boot path.
func bootExecutable(m *emulation.Machine, path string) error {
	switch ext := fileExt(path); ext {
	case ".cue", ".bin", ".iso", ".img":
		return m.BootDisc(path)
	default:
		return m.BootFile(path)
	}
}

func fileExt(path string) string {
	for i := len(path) - 1; i >= 0 && path[i] != '/'; i-- {
		if path[i] == '.' {
			return path[i:]
		}
	}
	return ""
}

// dumpVRAM writes the full 1024x512 VRAM shadow to path as raw
// little-endian uint16 pixels, the debug snapshot spec.md §6's
// "persisted state" supplement calls for.
func dumpVRAM(m *emulation.Machine, path string) {
	const w, h = 1024, 512
	pixels := make([]uint16, w*h)
	m.GPU().ReadShadow(0, 0, w, h, pixels)

	f, err := os.Create(path)
	if err != nil {
		logger.Logf(logger.Allow, "gopsx", "vramdump: %v", err)
		return
	}
	defer f.Close()

	buf := make([]byte, 2)
	for _, p := range pixels {
		buf[0] = byte(p)
		buf[1] = byte(p >> 8)
		if _, err := f.Write(buf); err != nil {
			logger.Logf(logger.Allow, "gopsx", "vramdump: %v", err)
			return
		}
	}
	logger.Logf(logger.Allow, "gopsx", "vramdump: wrote %s", path)
}
