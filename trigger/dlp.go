// Package trigger drives a DLP-IO8-G USB I/O box so that trial boundaries and
// audio onsets show up as TTL edges on the eye tracker's analog inputs.
package trigger

import (
	"fmt"
	"io"
	"time"

	"go.bug.st/serial"
	"go.uber.org/zap"
)

const (
	BaudRate   = 9600
	PulseWidth = 5 * time.Millisecond

	cmdPing   = 0x27 // '
	cmdBinary = 0x5C // \
	pingReply = 'Q'
)

// Lines used for each experiment message.
const (
	LineTrial  = "1"
	LinePrime  = "2"
	LineTarget = "3"
)

type DLPIO8G struct {
	port  io.ReadWriteCloser
	log   *zap.Logger
	sleep func(time.Duration)
}

// Open connects to the box on a serial device such as /dev/ttyUSB0 or COM3.
func Open(device string, log *zap.Logger) (*DLPIO8G, error) {
	mode := &serial.Mode{
		BaudRate: BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(device, mode)
	if err != nil {
		return nil, fmt.Errorf("trigger: open %s: %w", device, err)
	}
	if err := port.SetReadTimeout(time.Second); err != nil {
		port.Close()
		return nil, fmt.Errorf("trigger: %s: %w", device, err)
	}
	return New(port, log)
}

// New performs the ping handshake on an already open port and switches the
// box to binary mode.
func New(port io.ReadWriteCloser, log *zap.Logger) (*DLPIO8G, error) {
	if log == nil {
		log = zap.NewNop()
	}
	d := &DLPIO8G{port: port, log: log, sleep: time.Sleep}

	if !d.Ping() {
		port.Close()
		return nil, fmt.Errorf("trigger: device did not respond to ping correctly")
	}
	if _, err := port.Write([]byte{cmdBinary}); err != nil {
		port.Close()
		return nil, fmt.Errorf("trigger: binary mode: %w", err)
	}
	return d, nil
}

func (d *DLPIO8G) Close() error {
	if d.port == nil {
		return nil
	}
	return d.port.Close()
}

func (d *DLPIO8G) Ping() bool {
	if _, err := d.port.Write([]byte{cmdPing}); err != nil {
		return false
	}
	buf := make([]byte, 1)
	n, err := d.port.Read(buf)
	return err == nil && n == 1 && buf[0] == pingReply
}

// Set raises the given lines, e.g. "13" for lines 1 and 3.
func (d *DLPIO8G) Set(lines string) error {
	if _, err := d.port.Write([]byte(lines)); err != nil {
		return fmt.Errorf("trigger: set %s: %w", lines, err)
	}
	return nil
}

var unsetCodes = map[byte]byte{
	'1': 'Q', '2': 'W', '3': 'E', '4': 'R',
	'5': 'T', '6': 'Y', '7': 'U', '8': 'I',
}

// Unset drops the given lines.
func (d *DLPIO8G) Unset(lines string) error {
	cmd := []byte(lines)
	for i, c := range cmd {
		if u, ok := unsetCodes[c]; ok {
			cmd[i] = u
		}
	}
	if _, err := d.port.Write(cmd); err != nil {
		return fmt.Errorf("trigger: unset %s: %w", lines, err)
	}
	return nil
}

func (d *DLPIO8G) Pulse(lines string) error {
	if err := d.Set(lines); err != nil {
		return err
	}
	d.sleep(PulseWidth)
	return d.Unset(lines)
}

// LogEvent maps experiment messages onto lines. Messages without a line are
// ignored.
func (d *DLPIO8G) LogEvent(label, category string) error {
	var err error
	switch label {
	case "trial_start":
		err = d.Set(LineTrial)
	case "trial_end":
		err = d.Unset(LineTrial)
	case "prime_onset":
		err = d.Pulse(LinePrime)
	case "target_onset":
		err = d.Pulse(LineTarget)
	default:
		return nil
	}
	if err != nil {
		d.log.Warn("trigger write failed", zap.String("label", label), zap.String("trial", category), zap.Error(err))
	}
	return err
}
