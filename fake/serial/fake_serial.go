package serial

import (
	"errors"
	"sync"

	"github.com/sirupsen/logrus"
)

var log = logrus.WithFields(logrus.Fields{
	"pkg": "fake/serial",
})

var ErrClosed = errors.New("fake serial: port closed")

// FakeSerial stands in for the serial link. Every write is recorded, so tests
// can inspect exactly what would have been sent to the microcontroller.
type FakeSerial struct {
	mu     sync.Mutex
	writes [][]byte
	closed int

	// If set, writes fail with this error once FailAfter writes succeeded.
	Err       error
	FailAfter int

	// If set, writes report this many fewer bytes than they were given.
	Short int
}

func New() *FakeSerial {
	return &FakeSerial{}
}

func (s *FakeSerial) Write(p []byte) (n int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed > 0 {
		return 0, ErrClosed
	}
	if s.Err != nil && len(s.writes) >= s.FailAfter {
		log.Debugf("write failed: %s", s.Err)
		return 0, s.Err
	}

	buf := make([]byte, len(p))
	copy(buf, p)
	s.writes = append(s.writes, buf)

	log.Debugf("write: %v", p)
	n = len(p) - s.Short
	if n < 0 {
		n = 0
	}
	return n, nil
}

func (s *FakeSerial) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed += 1
	log.Debugf("close")
	return nil
}

// Writes returns a copy of every buffer written so far.
func (s *FakeSerial) Writes() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([][]byte, len(s.writes))
	for i, w := range s.writes {
		out[i] = append([]byte(nil), w...)
	}
	return out
}

// Closed returns the number of times Close was called.
func (s *FakeSerial) Closed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
