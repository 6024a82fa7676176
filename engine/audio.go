package engine

import (
	"errors"
	"fmt"
	"sync"
	"time"
	"unsafe"

	"github.com/Zyko0/go-sdl3/sdl"

	"github.com/jrbritton/sexuality-stereotype-eyetracking/session"
)

const (
	MaxActiveSounds   = 4
	AudioScratchBytes = 4096
)

// OutputSpec is the format every sound is converted to before playback.
var OutputSpec = sdl.AudioSpec{Format: sdl.AUDIO_S16, Channels: 2, Freq: 44100}

type voice struct {
	sound   *Sound
	playPos uint32
	active  bool
}

// Mixer sums the active sounds into the device stream from SDL's audio
// thread.
type Mixer struct {
	slots   [MaxActiveSounds]voice
	mu      sync.Mutex
	scratch []byte
	stream  *sdl.AudioStream
}

var errNoStream = errors.New("engine: failed to open audio stream")

// OpenMixer opens the default playback device and starts pulling from the
// mixer.
func OpenMixer() (*Mixer, error) {
	m := &Mixer{scratch: make([]byte, AudioScratchBytes)}
	spec := OutputSpec
	cb := sdl.NewAudioStreamCallback(m.callback)
	m.stream = sdl.AUDIO_DEVICE_DEFAULT_PLAYBACK.OpenAudioDeviceStream(&spec, cb)
	if m.stream == nil {
		return nil, errNoStream
	}
	m.stream.ResumeDevice()
	return m, nil
}

func (m *Mixer) Close() {
	if m.stream != nil {
		m.stream.Destroy()
	}
}

func (m *Mixer) callback(stream *sdl.AudioStream, additionalAmount, totalAmount int32) {
	remaining := int(additionalAmount)
	for remaining > 0 {
		chunk := min(remaining, AudioScratchBytes)
		clear(m.scratch[:chunk])

		m.mu.Lock()
		dst := unsafe.Slice((*int16)(unsafe.Pointer(&m.scratch[0])), chunk/2)
		for i := range m.slots {
			v := &m.slots[i]
			if !v.active {
				continue
			}

			left := uint32(len(v.sound.data)) - v.playPos
			toMix := min(uint32(chunk), left)
			if toMix >= 2 {
				src := unsafe.Slice((*int16)(unsafe.Pointer(&v.sound.data[v.playPos])), toMix/2)
				for j := range src {
					dst[j] = clip(int32(dst[j]) + int32(src[j]))
				}
			}

			v.playPos += toMix
			if v.playPos >= uint32(len(v.sound.data)) {
				v.active = false
			}
		}
		m.mu.Unlock()

		stream.PutData(m.scratch[:chunk])
		remaining -= chunk
	}
}

func clip(v int32) int16 {
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}

// Play starts s in a free slot and reports false when all slots are busy.
func (m *Mixer) Play(s *Sound) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.slots {
		if !m.slots[i].active {
			m.slots[i] = voice{sound: s, active: true}
			return true
		}
	}
	return false
}

// Player plays stimulus files through a Mixer, loading each file once.
type Player struct {
	mixer *Mixer
	cache *SoundCache
}

func NewPlayer(m *Mixer, c *SoundCache) *Player {
	return &Player{mixer: m, cache: c}
}

func (p *Player) Load(path string) (session.Sound, error) {
	snd, err := p.cache.Load(path)
	if err != nil {
		return nil, err
	}
	return snd, nil
}

func (p *Player) Play(s session.Sound) error {
	snd, ok := s.(*Sound)
	if !ok {
		return fmt.Errorf("engine: cannot play %T", s)
	}
	if len(snd.data) == 0 {
		return nil
	}
	if !p.mixer.Play(snd) {
		return errors.New("engine: no free audio slot")
	}
	return nil
}

// Sound is a decoded WAV file in OutputSpec format.
type Sound struct {
	path string
	data []byte
	spec sdl.AudioSpec
}

func (s *Sound) Duration() time.Duration {
	frame := int(s.spec.Channels) * 2
	if frame == 0 || s.spec.Freq == 0 {
		return 0
	}
	frames := len(s.data) / frame
	return time.Duration(frames) * time.Second / time.Duration(s.spec.Freq)
}
