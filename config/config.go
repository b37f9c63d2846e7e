package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/bioinspired/ybot"
	"github.com/bioinspired/ybot/components/locomotion/gait"
	"github.com/bioinspired/ybot/components/output"
	"github.com/bioinspired/ybot/servos"
	"github.com/bioinspired/ybot/transport"
	"github.com/caarlos0/env/v11"
	"github.com/spf13/viper"
)

// Config is everything needed for one run. It's fixed for the lifetime of
// the run.
type Config struct {
	Gait      GaitConfig       `mapstructure:"gait" yaml:"gait"`
	Control   ControlConfig    `mapstructure:"control" yaml:"control"`
	Actuators []ActuatorConfig `mapstructure:"actuators" yaml:"actuators"`
	Output    OutputConfig     `mapstructure:"output" yaml:"output"`
	Serial    SerialConfig     `mapstructure:"serial" yaml:"serial"`
	Logger    LoggerConfig     `mapstructure:"logger" yaml:"logger"`
	Recorder  RecorderConfig   `mapstructure:"recorder" yaml:"recorder"`
}

type GaitConfig struct {
	File           string  `mapstructure:"file" yaml:"file"`
	Period         float64 `mapstructure:"period" yaml:"period"`
	AmplitudeGain  float64 `mapstructure:"amplitude_gain" yaml:"amplitude_gain"`
	RejectOverlaps bool    `mapstructure:"reject_overlaps" yaml:"reject_overlaps"`
}

type ControlConfig struct {
	TickRateHz         float64 `mapstructure:"tick_rate_hz" yaml:"tick_rate_hz"`
	MaxOutput          float64 `mapstructure:"max_output" yaml:"max_output"`
	RunDurationSeconds float64 `mapstructure:"run_duration_seconds" yaml:"run_duration_seconds"`
}

// ActuatorConfig is one servo. The order of the list is the order of values
// in each frame.
type ActuatorConfig struct {
	ID   int    `mapstructure:"id" yaml:"id"`
	Name string `mapstructure:"name" yaml:"name"`
}

type OutputConfig struct {
	Codec   string        `mapstructure:"codec" yaml:"codec"`
	Maestro MaestroConfig `mapstructure:"maestro" yaml:"maestro"`
}

type MaestroConfig struct {
	Device       int     `mapstructure:"device" yaml:"device"`
	Compact      bool    `mapstructure:"compact" yaml:"compact"`
	CRC          bool    `mapstructure:"crc" yaml:"crc"`
	FirstChannel int     `mapstructure:"first_channel" yaml:"first_channel"`
	MinPulseUs   float64 `mapstructure:"min_pulse_us" yaml:"min_pulse_us"`
	MaxPulseUs   float64 `mapstructure:"max_pulse_us" yaml:"max_pulse_us"`
}

// SerialConfig can be overridden from the environment, since the port name
// usually depends on the machine rather than the gait.
type SerialConfig struct {
	Driver string `mapstructure:"driver" yaml:"driver" env:"YBOT_SERIAL_DRIVER"`
	Port   string `mapstructure:"port" yaml:"port" env:"YBOT_SERIAL_PORT"`
	Baud   int    `mapstructure:"baud" yaml:"baud" env:"YBOT_SERIAL_BAUD"`
}

type LoggerConfig struct {
	Level      string `mapstructure:"level" yaml:"level"`
	Format     string `mapstructure:"format" yaml:"format"`
	LogFile    string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize    int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge     int    `mapstructure:"max_age" yaml:"max_age"`
	Compress   bool   `mapstructure:"compress" yaml:"compress"`
}

type RecorderConfig struct {
	Enabled   bool   `mapstructure:"enabled" yaml:"enabled"`
	Path      string `mapstructure:"path" yaml:"path"`
	BatchSize int    `mapstructure:"batch_size" yaml:"batch_size"`
}

const (
	CodecRaw     = "raw"
	CodecMaestro = "maestro"

	// The most a single byte on the wire can carry.
	maxWireValue = 255
)

func SetDefaults(v *viper.Viper) {
	// -- Gait --
	v.SetDefault("gait.file", "gaits/wag.yaml")
	v.SetDefault("gait.period", 2.0)
	v.SetDefault("gait.amplitude_gain", 1.0)
	v.SetDefault("gait.reject_overlaps", false)

	// -- Control --
	v.SetDefault("control.tick_rate_hz", 20.0)
	v.SetDefault("control.max_output", 180.0)
	v.SetDefault("control.run_duration_seconds", 0.0)

	// -- Output --
	v.SetDefault("output.codec", CodecRaw)
	v.SetDefault("output.maestro.device", 12)
	v.SetDefault("output.maestro.compact", true)
	v.SetDefault("output.maestro.crc", false)
	v.SetDefault("output.maestro.first_channel", 0)
	v.SetDefault("output.maestro.min_pulse_us", 1000.0)
	v.SetDefault("output.maestro.max_pulse_us", 2000.0)

	// -- Serial --
	v.SetDefault("serial.driver", transport.DefaultDriver)
	v.SetDefault("serial.port", transport.DefaultPort)
	v.SetDefault("serial.baud", transport.DefaultBaud)

	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "text")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Recorder --
	v.SetDefault("recorder.enabled", false)
	v.SetDefault("recorder.path", "ybot.db")
	v.SetDefault("recorder.batch_size", 0)
}

// ParseEnv fills the tagged fields of target from the environment. Fields
// whose variable isn't set are left alone.
func ParseEnv(target any) error {
	err := env.Parse(target)
	if err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load builds the config from viper, applies the serial overrides from the
// environment, and validates the result.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config

	err := v.Unmarshal(&cfg)
	if err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	err = ParseEnv(&cfg.Serial)
	if err != nil {
		return nil, err
	}

	err = cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate checks everything that can be checked without the gait. Every
// problem is reported, not just the first.
func (c *Config) Validate() error {
	var errs []error

	if !(c.Gait.Period > 0) {
		errs = append(errs, fmt.Errorf("gait.period must be positive, got %v", c.Gait.Period))
	}
	if c.Gait.AmplitudeGain < 0 {
		errs = append(errs, fmt.Errorf("gait.amplitude_gain must not be negative, got %v", c.Gait.AmplitudeGain))
	}
	if !(c.Control.TickRateHz > 0) {
		errs = append(errs, fmt.Errorf("control.tick_rate_hz must be positive, got %v", c.Control.TickRateHz))
	}
	if !(c.Control.MaxOutput > 0) || c.Control.MaxOutput > maxWireValue {
		errs = append(errs, fmt.Errorf("control.max_output must be in (0, %d], got %v", maxWireValue, c.Control.MaxOutput))
	}
	if c.Control.RunDurationSeconds < 0 {
		errs = append(errs, fmt.Errorf("control.run_duration_seconds must not be negative, got %v", c.Control.RunDurationSeconds))
	}

	_, err := c.Layout()
	if err != nil {
		errs = append(errs, fmt.Errorf("actuators: %w", err))
	}

	switch c.Output.Codec {
	case CodecRaw:
	case CodecMaestro:
		_, err := c.Codec()
		if err != nil {
			errs = append(errs, fmt.Errorf("output.maestro: %w", err))
		}
	default:
		errs = append(errs, fmt.Errorf("output.codec must be %q or %q, got %q", CodecRaw, CodecMaestro, c.Output.Codec))
	}

	if c.Serial.Baud <= 0 {
		errs = append(errs, fmt.Errorf("serial.baud must be positive, got %d", c.Serial.Baud))
	}

	return errors.Join(errs...)
}

// Layout returns the servos in frame order.
func (c *Config) Layout() (*servos.Layout, error) {
	s := make([]servos.Servo, len(c.Actuators))
	for i, a := range c.Actuators {
		s[i] = servos.Servo{ID: ybot.ActuatorID(a.ID), Name: a.Name}
	}
	return servos.NewLayout(s...)
}

// Codec returns the configured frame codec.
func (c *Config) Codec() (output.Codec, error) {
	switch c.Output.Codec {
	case CodecRaw:
		return output.RawCodec{}, nil

	case CodecMaestro:
		m := c.Output.Maestro
		if m.Device < 0 || m.Device > 0x7f {
			return nil, fmt.Errorf("device must be in [0, 127], got %d", m.Device)
		}
		if m.FirstChannel < 0 || m.FirstChannel > 0xff {
			return nil, fmt.Errorf("first_channel out of range: %d", m.FirstChannel)
		}
		return output.NewMaestroCodec(output.MaestroConfig{
			Device:       uint8(m.Device),
			Compact:      m.Compact,
			CRC:          m.CRC,
			FirstChannel: uint8(m.FirstChannel),
			MinPulseUs:   m.MinPulseUs,
			MaxPulseUs:   m.MaxPulseUs,
			MaxValue:     int(c.Control.MaxOutput),
		})

	default:
		return nil, fmt.Errorf("unknown codec %q", c.Output.Codec)
	}
}

// CheckGait validates the gait against the actuators, and checks that the
// amplitude gain can't push any position out of [0, 1].
func (c *Config) CheckGait(desc *gait.Description) error {
	layout, err := c.Layout()
	if err != nil {
		return err
	}

	err = desc.Validate(gait.ValidateOptions{
		Known:          layout.Has,
		RejectOverlaps: c.Gait.RejectOverlaps,
	})
	if err != nil {
		return err
	}

	peak := desc.MaxAmount() * c.Gait.AmplitudeGain
	if peak > 1 {
		return fmt.Errorf("gait.amplitude_gain %v scales the largest amount (%v) to %v, beyond the device range", c.Gait.AmplitudeGain, desc.MaxAmount(), peak)
	}

	return nil
}

func (c *Config) RunDuration() time.Duration {
	return time.Duration(c.Control.RunDurationSeconds * float64(time.Second))
}

func (c *Config) Transport() transport.Config {
	return transport.Config{
		Driver: c.Serial.Driver,
		Port:   c.Serial.Port,
		Baud:   c.Serial.Baud,
	}
}
