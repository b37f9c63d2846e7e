package utils

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/sirupsen/logrus"
)

var log = logrus.WithFields(logrus.Fields{
	"pkg": "utils",
})

// StopContext returns a context which is cancelled when the process receives
// SIGINT (ctrl+c) or SIGTERM (kill/systemd), so the robot can finish the
// current tick and release the port before exiting. The cause of the
// cancellation names the signal. Call the returned func to stop listening.
func StopContext(parent context.Context) (context.Context, context.CancelFunc) {
	return stopOn(parent, os.Interrupt, syscall.SIGTERM)
}

func stopOn(parent context.Context, sigs ...os.Signal) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancelCause(parent)

	c := make(chan os.Signal, 1)
	signal.Notify(c, sigs...)

	done := make(chan struct{})
	go func() {
		select {
		case s := <-c:
			log.Infof("caught %s, shutting down...", s)
			cancel(fmt.Errorf("caught signal: %s", s))
		case <-ctx.Done():
		case <-done:
		}
	}()

	var once sync.Once
	stop := func() {
		once.Do(func() {
			signal.Stop(c)
			close(done)
			cancel(context.Canceled)
		})
	}

	return ctx, stop
}
