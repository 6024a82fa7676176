package engine

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/Zyko0/go-sdl3/img"
	"github.com/Zyko0/go-sdl3/sdl"
	"github.com/Zyko0/go-sdl3/ttf"
	"go.uber.org/zap"

	"github.com/jrbritton/sexuality-stereotype-eyetracking/config"
	"github.com/jrbritton/sexuality-stereotype-eyetracking/session"
	"github.com/jrbritton/sexuality-stereotype-eyetracking/tracker"
)

const (
	CrossSize   = 20
	lineSpacing = 1.4
)

type textLine struct {
	tex  *sdl.Texture
	w, h float32
}

// Display is the participant window. It is the session's Surface and Input,
// and the pointer source of the mouse tracker, since all three are fed by
// the same SDL event queue.
type Display struct {
	window   *sdl.Window
	renderer *sdl.Renderer
	font     *ttf.Font
	settings config.Display
	quitKey  string
	log      *zap.Logger

	welcome    *sdl.Texture
	welcomeW   float32
	welcomeH   float32
	screen     session.Screen
	body       []textLine
	legend     []textLine
	keys       []string
	pointer    tracker.Point
	hasPointer bool
}

// OpenDisplay creates the window. SDL video and ttf must be initialised.
// Closing the window is reported to the session as quitKey.
func OpenDisplay(title string, d config.Display, quitKey string, log *zap.Logger) (*Display, error) {
	if log == nil {
		log = zap.NewNop()
	}
	flags := sdl.WINDOW_RESIZABLE
	if d.Fullscreen {
		flags |= sdl.WINDOW_FULLSCREEN
	}
	window, renderer, err := sdl.CreateWindowAndRenderer(title, d.Width, d.Height, flags)
	if err != nil {
		return nil, fmt.Errorf("engine: create window: %w", err)
	}
	if d.VSync {
		renderer.SetVSync(1)
	} else {
		renderer.SetVSync(0)
	}

	fontPath := d.FontFile
	if fontPath == "" {
		fontPath = DefaultFontPath()
	}
	if fontPath == "" {
		renderer.Destroy()
		window.Destroy()
		return nil, errors.New("engine: no font found, set display.font_file")
	}
	font, err := ttf.OpenFont(fontPath, float32(d.FontSize))
	if err != nil {
		renderer.Destroy()
		window.Destroy()
		return nil, fmt.Errorf("engine: load font %s: %w", fontPath, err)
	}

	disp := &Display{
		window:   window,
		renderer: renderer,
		font:     font,
		settings: d,
		quitKey:  quitKey,
		log:      log,
	}
	if d.WelcomeImage != "" {
		tex, err := img.LoadTexture(renderer, d.WelcomeImage)
		if err != nil {
			log.Warn("welcome image not loaded", zap.String("path", d.WelcomeImage), zap.Error(err))
		} else {
			disp.welcome = tex
			disp.welcomeW, disp.welcomeH, _ = tex.Size()
		}
	}
	log.Info("display opened",
		zap.Int("width", d.Width),
		zap.Int("height", d.Height),
		zap.Bool("fullscreen", d.Fullscreen),
		zap.String("font", fontPath))
	return disp, nil
}

func (d *Display) Close() {
	d.release()
	if d.welcome != nil {
		d.welcome.Destroy()
	}
	d.font.Close()
	d.renderer.Destroy()
	d.window.Destroy()
}

func (d *Display) release() {
	for _, l := range slices.Concat(d.body, d.legend) {
		if l.tex != nil {
			l.tex.Destroy()
		}
	}
	d.body, d.legend = nil, nil
}

func (d *Display) renderLines(text string) []textLine {
	c := sdlColor(d.settings.TextColor)
	lines := strings.Split(strings.Trim(text, "\n"), "\n")
	out := make([]textLine, 0, len(lines))
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			out = append(out, textLine{h: float32(d.settings.FontSize)})
			continue
		}
		surf, err := d.font.RenderTextBlended(line, c)
		if err != nil || surf == nil {
			d.log.Warn("text not rendered", zap.String("line", line), zap.Error(err))
			continue
		}
		tex, err := d.renderer.CreateTextureFromSurface(surf)
		if err == nil {
			out = append(out, textLine{tex: tex, w: float32(surf.W), h: float32(surf.H)})
		}
		surf.Destroy()
	}
	return out
}

// Draw stages s; its text is rasterised once here rather than every frame.
func (d *Display) Draw(s session.Screen) {
	if s == d.screen && (d.body != nil || s.Text == "") {
		return
	}
	d.release()
	d.screen = s
	if s.Text != "" {
		d.body = d.renderLines(s.Text)
	}
	if s.Legend != "" {
		d.legend = d.renderLines(s.Legend)
	}
}

func (d *Display) Present() error {
	bg := d.settings.Background
	d.renderer.SetDrawColor(bg.R, bg.G, bg.B, bg.A)
	d.renderer.Clear()

	w, h := float32(d.settings.Width), float32(d.settings.Height)
	switch d.screen.Kind {
	case session.ScreenFixation:
		drawFixationCross(d.renderer, w, h, sdlColor(d.settings.FixationColor))
	case session.ScreenText:
		d.drawLines(d.body, w, h/2)
	case session.ScreenQuestion:
		d.drawLines(d.body, w, h*0.4)
		d.drawLines(d.legend, w, h*0.75)
	case session.ScreenWelcome:
		center := h / 2
		if d.welcome != nil {
			dst := sdl.FRect{
				X: (w - d.welcomeW) / 2,
				Y: (h - d.welcomeH) / 2,
				W: d.welcomeW,
				H: d.welcomeH,
			}
			d.renderer.RenderTexture(d.welcome, nil, &dst)
			center = dst.Y + dst.H + blockHeight(d.body)
		}
		d.drawLines(d.body, w, center)
	}
	d.renderer.Present()
	return nil
}

func (d *Display) drawLines(lines []textLine, w, centerY float32) {
	for i, y := range lineTops(lines, centerY) {
		l := lines[i]
		if l.tex == nil {
			continue
		}
		dst := sdl.FRect{X: (w - l.w) / 2, Y: y, W: l.w, H: l.h}
		d.renderer.RenderTexture(l.tex, nil, &dst)
	}
}

func blockHeight(lines []textLine) float32 {
	var total float32
	for _, l := range lines {
		total += l.h * lineSpacing
	}
	return total
}

// lineTops returns the top edge of every line so that the block is centred
// vertically on centerY.
func lineTops(lines []textLine, centerY float32) []float32 {
	tops := make([]float32, len(lines))
	y := centerY - blockHeight(lines)/2
	for i, l := range lines {
		tops[i] = y
		y += l.h * lineSpacing
	}
	return tops
}

func drawFixationCross(renderer *sdl.Renderer, w, h float32, c sdl.Color) {
	renderer.SetDrawColor(c.R, c.G, c.B, c.A)
	mx, my := w/2, h/2
	renderer.RenderLine(mx-CrossSize, my, mx+CrossSize, my)
	renderer.RenderLine(mx, my-CrossSize, mx, my+CrossSize)
}

func sdlColor(c config.Color) sdl.Color {
	return sdl.Color{R: c.R, G: c.G, B: c.B, A: c.A}
}

// pump handles one event. It reports false when the window was closed.
func (d *Display) pump(ev *sdl.Event) bool {
	switch ev.Type {
	case sdl.EVENT_QUIT:
		return false
	case sdl.EVENT_KEY_DOWN:
		if name := keyName(ev.KeyboardEvent().Key.KeyName()); name != "" {
			d.keys = append(d.keys, name)
		}
	case sdl.EVENT_MOUSE_MOTION:
		m := ev.MouseMotionEvent()
		d.pointer = centred(m.X, m.Y, d.settings.Width, d.settings.Height)
		d.hasPointer = true
	}
	return true
}

func (d *Display) drain() error {
	var ev sdl.Event
	for sdl.PollEvent(&ev) {
		if !d.pump(&ev) {
			return session.ErrQuit
		}
	}
	return nil
}

// Wait keeps the current frame on screen for dur while collecting input.
func (d *Display) Wait(dur time.Duration) error {
	deadline := time.Now().Add(dur)
	for {
		if err := d.drain(); err != nil {
			return err
		}
		if !time.Now().Before(deadline) {
			return nil
		}
		sdl.Delay(1)
	}
}

// AwaitKey discards earlier key presses and blocks until one of keys, or
// any key when keys is empty.
func (d *Display) AwaitKey(keys ...string) (string, error) {
	if err := d.drain(); err != nil {
		return "", err
	}
	d.keys = nil
	for {
		var ev sdl.Event
		if err := sdl.WaitEvent(&ev); err != nil {
			return "", fmt.Errorf("engine: wait for key: %w", err)
		}
		if !d.pump(&ev) {
			return "", session.ErrQuit
		}
		for len(d.keys) > 0 {
			k := d.keys[0]
			d.keys = d.keys[1:]
			if len(keys) == 0 || slices.Contains(keys, k) {
				return k, nil
			}
		}
	}
}

func (d *Display) PollKeys() []string {
	if err := d.drain(); err != nil {
		return []string{d.quitKey}
	}
	keys := d.keys
	d.keys = nil
	return keys
}

func (d *Display) Pointer() (tracker.Point, bool) {
	return d.pointer, d.hasPointer
}

// centred converts window coordinates to gaze pixels: origin at the screen
// centre, y growing upwards.
func centred(x, y float32, w, h int) tracker.Point {
	return tracker.Point{
		X: float64(x) - float64(w)/2,
		Y: float64(h)/2 - float64(y),
	}
}

// keyName maps SDL key names onto the lower case names the session uses.
func keyName(sdlName string) string {
	name := strings.ToLower(strings.TrimSpace(sdlName))
	switch name {
	case "keypad enter", "enter":
		return "return"
	}
	return name
}
