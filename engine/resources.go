package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/Zyko0/go-sdl3/sdl"
	"go.uber.org/zap"
)

// DefaultFontPath looks for a font able to render the Chinese texts, first in
// a local fonts directory, then in the usual system locations.
func DefaultFontPath() string {
	entries, err := os.ReadDir("fonts")
	if err == nil {
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			ext := strings.ToLower(filepath.Ext(entry.Name()))
			if ext == ".ttf" || ext == ".ttc" || ext == ".otf" {
				return filepath.Join("fonts", entry.Name())
			}
		}
	}

	var paths []string
	switch runtime.GOOS {
	case "windows":
		paths = []string{
			`C:\Windows\Fonts\msyh.ttc`,
			`C:\Windows\Fonts\simhei.ttf`,
			`C:\Windows\Fonts\arial.ttf`,
		}
	case "darwin":
		paths = []string{
			"/System/Library/Fonts/PingFang.ttc",
			"/System/Library/Fonts/STHeiti Medium.ttc",
			"/System/Library/Fonts/Helvetica.ttc",
		}
	default:
		paths = []string{
			"/usr/share/fonts/opentype/noto/NotoSansCJK-Regular.ttc",
			"/usr/share/fonts/noto-cjk/NotoSansCJK-Regular.ttc",
			"/usr/share/fonts/truetype/wqy/wqy-microhei.ttc",
			"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
		}
	}

	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// SoundCache decodes each WAV file once and keeps it for the session.
type SoundCache struct {
	entries map[string]*Sound
	log     *zap.Logger
}

func NewSoundCache(log *zap.Logger) *SoundCache {
	if log == nil {
		log = zap.NewNop()
	}
	return &SoundCache{entries: make(map[string]*Sound), log: log}
}

func (c *SoundCache) Load(path string) (*Sound, error) {
	if s, ok := c.entries[path]; ok {
		return s, nil
	}

	spec := &sdl.AudioSpec{}
	data, err := sdl.LoadWAV(path, spec)
	if err != nil {
		return nil, fmt.Errorf("engine: load sound %s: %w", path, err)
	}
	s := &Sound{path: path, data: data, spec: *spec}
	if spec.Format != OutputSpec.Format || spec.Channels != OutputSpec.Channels || spec.Freq != OutputSpec.Freq {
		target := OutputSpec
		converted, err := sdl.ConvertAudioSamples(spec, data, &target)
		if err != nil {
			return nil, fmt.Errorf("engine: convert sound %s: %w", path, err)
		}
		s.data, s.spec = converted, target
	}

	c.log.Debug("sound loaded", zap.String("path", path), zap.Duration("duration", s.Duration()))
	c.entries[path] = s
	return s, nil
}

// Preload decodes every file up front so the first trials start on time.
func (c *SoundCache) Preload(paths []string) error {
	for _, p := range paths {
		if _, err := c.Load(p); err != nil {
			return err
		}
	}
	return nil
}
