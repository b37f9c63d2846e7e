package output

import (
	"fmt"
	"io"
	"time"

	"github.com/bioinspired/ybot"
	"github.com/bioinspired/ybot/servos"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithFields(logrus.Fields{
	"pkg": "output",
})

// FaultError is returned when a frame could not be delivered. The link is
// assumed to be gone, so this is fatal to the run.
type FaultError struct {
	Tick int
	Err  error
}

func (e *FaultError) Error() string {
	return fmt.Sprintf("link fault at tick %d: %s", e.Tick, e.Err)
}

func (e *FaultError) Unwrap() error {
	return e.Err
}

// Output sends the current positions to the microcontroller, one frame per
// tick.
type Output struct {
	port   io.WriteCloser
	codec  Codec
	mapper *Mapper
	layout *servos.Layout

	frames int
	bytes  int
}

func New(port io.WriteCloser, codec Codec, mapper *Mapper, layout *servos.Layout) *Output {
	return &Output{
		port:   port,
		codec:  codec,
		mapper: mapper,
		layout: layout,
	}
}

func (o *Output) Boot() error {
	h, ok := o.codec.(Handshaker)
	if !ok {
		return nil
	}

	err := o.write(h.Handshake())
	if err != nil {
		return fmt.Errorf("handshake: %w", err)
	}

	return nil
}

func (o *Output) Tick(now time.Time, state *ybot.State) error {
	values := o.mapper.Frame(state.Positions, o.layout)

	buf, err := o.codec.Encode(values)
	if err != nil {
		return &FaultError{Tick: state.Count, Err: err}
	}

	err = o.write(buf)
	if err != nil {
		log.Errorf("tick=%d: %s", state.Count, err)
		return &FaultError{Tick: state.Count, Err: err}
	}

	o.frames += 1
	o.bytes += len(buf)
	state.Outputs = values

	log.WithField("tick", state.Count).Debugf("frame=%v", values)
	return nil
}

// write sends the whole buffer, or fails. The link has no acknowledgement, so
// a partial frame can't be repaired by sending the rest later.
func (o *Output) write(buf []byte) error {
	n, err := o.port.Write(buf)
	if err != nil {
		return err
	}
	if n != len(buf) {
		return fmt.Errorf("short write: %d of %d bytes", n, len(buf))
	}
	return nil
}

// Close releases the port. It's safe to call more than once.
func (o *Output) Close() error {
	if o.port == nil {
		return nil
	}

	log.Infof("sent %d frames (%d bytes)", o.frames, o.bytes)
	err := o.port.Close()
	o.port = nil
	if err != nil {
		return fmt.Errorf("close port: %w", err)
	}

	return nil
}

// Frames returns the number of frames delivered so far.
func (o *Output) Frames() int {
	return o.frames
}
