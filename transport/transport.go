package transport

import (
	"fmt"
	"io"
	"sort"

	jacobsa "github.com/jacobsa/go-serial/serial"
	"github.com/sirupsen/logrus"
	tarm "github.com/tarm/serial"
	bugst "go.bug.st/serial"
)

var log = logrus.WithFields(logrus.Fields{
	"pkg": "transport",
})

const (
	DefaultPort   = "/dev/ttyACM0"
	DefaultBaud   = 115200
	DefaultDriver = "bugst"
)

// Port is the outbound half of the serial link. Nothing is ever read back.
type Port interface {
	io.WriteCloser
}

type Config struct {
	Driver string
	Port   string
	Baud   int
}

type opener func(cfg Config) (Port, error)

var drivers = map[string]opener{
	"bugst":   openBugst,
	"jacobsa": openJacobsa,
	"tarm":    openTarm,
}

// Drivers returns the names of the available serial drivers.
func Drivers() []string {
	names := make([]string, 0, len(drivers))
	for name := range drivers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open opens the serial port with the configured driver. Failure here is
// fatal; there is no retry.
func Open(cfg Config) (Port, error) {
	if cfg.Driver == "" {
		cfg.Driver = DefaultDriver
	}
	if cfg.Port == "" {
		return nil, fmt.Errorf("no serial port given")
	}
	if cfg.Baud <= 0 {
		return nil, fmt.Errorf("baud rate must be positive, got %d", cfg.Baud)
	}

	open, ok := drivers[cfg.Driver]
	if !ok {
		return nil, fmt.Errorf("unknown serial driver %q (want one of %v)", cfg.Driver, Drivers())
	}

	log.Infof("opening %s at %d baud (driver=%s)", cfg.Port, cfg.Baud, cfg.Driver)
	p, err := open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Port, err)
	}

	return p, nil
}

func openBugst(cfg Config) (Port, error) {
	return bugst.Open(cfg.Port, &bugst.Mode{
		BaudRate: cfg.Baud,
		DataBits: 8,
		Parity:   bugst.NoParity,
		StopBits: bugst.OneStopBit,
	})
}

func openJacobsa(cfg Config) (Port, error) {
	return jacobsa.Open(jacobsa.OpenOptions{
		PortName:              cfg.Port,
		BaudRate:              uint(cfg.Baud),
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       0,
		InterCharacterTimeout: 100,
	})
}

func openTarm(cfg Config) (Port, error) {
	return tarm.OpenPort(&tarm.Config{
		Name: cfg.Port,
		Baud: cfg.Baud,
	})
}

// ListPorts returns the serial ports present on this machine.
func ListPorts() ([]string, error) {
	ports, err := bugst.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("list ports: %w", err)
	}

	sort.Strings(ports)
	return ports, nil
}
