package output

import (
	"fmt"
)

// Codec turns one frame of device values into the bytes sent over the link.
type Codec interface {
	Encode(values []int) ([]byte, error)
}

// Handshaker is implemented by codecs which need to send something once,
// before the first frame.
type Handshaker interface {
	Handshake() []byte
}

// RawCodec sends one byte per servo, in layout order, with no framing. Values
// are clamped to a byte; the receiver needs nothing but the servo order.
type RawCodec struct{}

func (RawCodec) Encode(values []int) ([]byte, error) {
	buf := make([]byte, len(values))
	for i, v := range values {
		buf[i] = clampByte(v)
	}
	return buf, nil
}

func clampByte(v int) byte {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return byte(v)
}

const (
	cmdSetMultipleTargets = 0x9f
	maestroBaudDetect     = 0xaa
	maestroMaxChannels    = 24
)

type MaestroConfig struct {

	// Device number, only sent when not using the compact protocol.
	Device uint8

	// Use the compact protocol (single device on the serial bus).
	Compact bool

	// Append a CRC-7 byte to each command.
	CRC bool

	// Channel which the first servo in the layout is plugged into.
	FirstChannel uint8

	// The pulse width range which device values are scaled onto.
	MinPulseUs float64
	MaxPulseUs float64

	// The device value which maps to MaxPulseUs.
	MaxValue int
}

// MaestroCodec frames each set of values as a single "set multiple targets"
// command, for boards running Maestro-compatible firmware.
type MaestroCodec struct {
	cfg MaestroConfig
}

func NewMaestroCodec(cfg MaestroConfig) (*MaestroCodec, error) {
	if cfg.MaxValue <= 0 {
		return nil, fmt.Errorf("maestro max value must be positive, got %d", cfg.MaxValue)
	}
	if !(cfg.MinPulseUs > 0) || cfg.MaxPulseUs <= cfg.MinPulseUs {
		return nil, fmt.Errorf("bad maestro pulse range [%v, %v]", cfg.MinPulseUs, cfg.MaxPulseUs)
	}
	if cfg.Device > 0x7f {
		return nil, fmt.Errorf("maestro device number %d out of range", cfg.Device)
	}

	return &MaestroCodec{cfg: cfg}, nil
}

// Handshake returns the byte which the board uses to detect the baud rate.
func (c *MaestroCodec) Handshake() []byte {
	return []byte{maestroBaudDetect}
}

func (c *MaestroCodec) Encode(values []int) ([]byte, error) {
	if len(values) == 0 {
		return nil, fmt.Errorf("empty frame")
	}
	if int(c.cfg.FirstChannel)+len(values) > maestroMaxChannels {
		return nil, fmt.Errorf("%d servos from channel %d exceeds %d channels", len(values), c.cfg.FirstChannel, maestroMaxChannels)
	}

	var cmd []byte
	if c.cfg.Compact {
		cmd = []byte{cmdSetMultipleTargets}
	} else {
		cmd = []byte{maestroBaudDetect, c.cfg.Device, cmdSetMultipleTargets & 0x7f}
	}

	cmd = append(cmd, byte(len(values)), c.cfg.FirstChannel)
	for _, v := range values {
		t := c.target(v)
		cmd = append(cmd, lo(t), hi(t))
	}

	if c.cfg.CRC {
		cmd = append(cmd, crc7(cmd))
	}

	return cmd, nil
}

// target returns the pulse width for the value, in quarter-microseconds.
func (c *MaestroCodec) target(v int) uint16 {
	if v < 0 {
		v = 0
	}
	if v > c.cfg.MaxValue {
		v = c.cfg.MaxValue
	}

	f := float64(v) / float64(c.cfg.MaxValue)
	us := c.cfg.MinPulseUs + (c.cfg.MaxPulseUs-c.cfg.MinPulseUs)*f
	return uint16(us*4 + 0.5)
}

func lo(x uint16) byte {
	return byte(x & 0x7f)
}

func hi(x uint16) byte {
	return byte((x >> 7) & 0x7f)
}
