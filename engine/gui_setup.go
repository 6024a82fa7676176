package engine

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Zyko0/go-sdl3/sdl"
	"github.com/Zyko0/go-sdl3/ttf"

	"github.com/jrbritton/sexuality-stereotype-eyetracking/config"
	"github.com/jrbritton/sexuality-stereotype-eyetracking/sequence"
	"github.com/jrbritton/sexuality-stereotype-eyetracking/tracker"
)

// ErrCancelled is returned when the setup dialog is closed without starting.
var ErrCancelled = errors.New("engine: setup cancelled")

type choiceRow struct {
	label   string
	y       float32
	options []string
	value   func(f *config.Fields) string
	set     func(f *config.Fields, v string)
}

var setupRows = []choiceRow{
	{
		label:   "Subgroup:",
		y:       140,
		options: []string{"1", "2"},
		value:   func(f *config.Fields) string { return strconv.Itoa(f.Subgroup) },
		set:     func(f *config.Fields, v string) { f.Subgroup, _ = strconv.Atoi(v) },
	},
	{
		label:   "Version:",
		y:       220,
		options: []string{"1", "2"},
		value:   func(f *config.Fields) string { return strconv.Itoa(f.Version) },
		set:     func(f *config.Fields, v string) { f.Version, _ = strconv.Atoi(v) },
	},
	{
		label:   "Rotation:",
		y:       300,
		options: rotationOptions(),
		value:   func(f *config.Fields) string { return f.Rotation },
		set:     func(f *config.Fields, v string) { f.Rotation = v },
	},
	{
		label:   "Eye tracker:",
		y:       380,
		options: tracker.Known,
		value:   func(f *config.Fields) string { return f.Tracker },
		set:     func(f *config.Fields, v string) { f.Tracker = v },
	},
}

func rotationOptions() []string {
	out := make([]string, len(sequence.Rotations))
	for i, r := range sequence.Rotations {
		out[i] = r.String()
	}
	return out
}

const (
	optionX     = 200
	optionWidth = 140
	boxSize     = 20
)

var (
	startBtn  = sdl.FRect{X: 220, Y: 500, W: 120, H: 40}
	cancelBtn = sdl.FRect{X: 420, Y: 500, W: 120, H: 40}
	nameBox   = sdl.FRect{X: 200, Y: 60, W: 400, H: 30}
)

func inside(r sdl.FRect, x, y float32) bool {
	return x >= r.X && x <= r.X+r.W && y >= r.Y && y <= r.Y+r.H
}

func optionRect(row choiceRow, i int) sdl.FRect {
	return sdl.FRect{X: float32(optionX + i*optionWidth), Y: row.y, W: boxSize, H: boxSize}
}

// RunSetupDialog asks the experimenter for the session fields, starting from
// f. It owns SDL for its lifetime and returns ErrCancelled when closed.
func RunSetupDialog(f config.Fields) (config.Fields, error) {
	if err := sdl.Init(sdl.INIT_VIDEO | sdl.INIT_EVENTS); err != nil {
		return f, fmt.Errorf("engine: SDL init: %w", err)
	}
	defer sdl.Quit()

	if err := ttf.Init(); err != nil {
		return f, fmt.Errorf("engine: ttf init: %w", err)
	}
	defer ttf.Quit()

	window, renderer, err := sdl.CreateWindowAndRenderer("Prime/target experiment setup", 760, 600, 0)
	if err != nil {
		return f, fmt.Errorf("engine: create window: %w", err)
	}
	defer window.Destroy()
	defer renderer.Destroy()

	fontPath := DefaultFontPath()
	if fontPath == "" {
		return f, errors.New("engine: no font found for the setup dialog")
	}
	font, err := ttf.OpenFont(fontPath, 18)
	if err != nil {
		return f, fmt.Errorf("engine: load font %s: %w", fontPath, err)
	}
	defer font.Close()

	window.StartTextInput()
	defer window.StopTextInput()

	black := sdl.Color{R: 0, G: 0, B: 0, A: 255}
	white := sdl.Color{R: 255, G: 255, B: 255, A: 255}
	red := sdl.Color{R: 200, G: 0, B: 0, A: 255}
	label := func(text string, x, y float32, c sdl.Color) {
		if text == "" {
			return
		}
		surf, err := font.RenderTextBlended(text, c)
		if err != nil || surf == nil {
			return
		}
		tex, err := renderer.CreateTextureFromSurface(surf)
		if err == nil {
			r := sdl.FRect{X: x, Y: y, W: float32(surf.W), H: float32(surf.H)}
			renderer.RenderTexture(tex, nil, &r)
			tex.Destroy()
		}
		surf.Destroy()
	}

	focused := true
	problem := ""
	for {
		var e sdl.Event
		for sdl.PollEvent(&e) {
			switch e.Type {
			case sdl.EVENT_QUIT:
				return f, ErrCancelled
			case sdl.EVENT_MOUSE_BUTTON_DOWN:
				me := e.MouseButtonEvent()
				mx, my := me.X, me.Y
				focused = inside(nameBox, mx, my)
				for _, row := range setupRows {
					for i, opt := range row.options {
						r := optionRect(row, i)
						r.W = optionWidth - 10
						if inside(r, mx, my) {
							row.set(&f, opt)
						}
					}
				}
				if inside(cancelBtn, mx, my) {
					return f, ErrCancelled
				}
				if inside(startBtn, mx, my) {
					if _, err := config.NewSession(f, 0); err != nil {
						problem = firstLine(err)
						continue
					}
					return f, nil
				}
			case sdl.EVENT_TEXT_INPUT:
				if focused {
					f.Participant += e.TextInputEvent().Text
				}
			case sdl.EVENT_KEY_DOWN:
				ke := e.KeyboardEvent()
				if focused && ke.Key == sdl.K_BACKSPACE && len(f.Participant) > 0 {
					r := []rune(f.Participant)
					f.Participant = string(r[:len(r)-1])
				}
				if ke.Key == sdl.K_ESCAPE {
					return f, ErrCancelled
				}
			}
		}

		renderer.SetDrawColor(240, 240, 240, 255)
		renderer.Clear()

		label("Participant:", 50, 65, black)
		renderer.SetDrawColor(255, 255, 255, 255)
		renderer.RenderFillRect(&nameBox)
		if focused {
			renderer.SetDrawColor(0, 120, 255, 255)
		} else {
			renderer.SetDrawColor(180, 180, 180, 255)
		}
		renderer.RenderRect(&nameBox)
		label(f.Participant, nameBox.X+5, nameBox.Y+5, black)

		for _, row := range setupRows {
			label(row.label, 50, row.y, black)
			current := row.value(&f)
			for i, opt := range row.options {
				box := optionRect(row, i)
				renderer.SetDrawColor(255, 255, 255, 255)
				renderer.RenderFillRect(&box)
				renderer.SetDrawColor(0, 0, 0, 255)
				renderer.RenderRect(&box)
				if strings.EqualFold(current, opt) {
					mark := sdl.FRect{X: box.X + 4, Y: box.Y + 4, W: 12, H: 12}
					renderer.SetDrawColor(0, 150, 0, 255)
					renderer.RenderFillRect(&mark)
				}
				label(opt, box.X+30, box.Y, black)
			}
		}

		label(problem, 50, 450, red)

		renderer.SetDrawColor(0, 150, 0, 255)
		renderer.RenderFillRect(&startBtn)
		label("START", startBtn.X+30, startBtn.Y+10, white)
		renderer.SetDrawColor(150, 150, 150, 255)
		renderer.RenderFillRect(&cancelBtn)
		label("CANCEL", cancelBtn.X+22, cancelBtn.Y+10, white)

		renderer.Present()
		sdl.Delay(10)
	}
}

// firstLine keeps the dialog message to the first validation problem.
func firstLine(err error) string {
	msg := err.Error()
	if i := strings.IndexByte(msg, '\n'); i >= 0 {
		msg = msg[:i]
	}
	return msg
}
