//go:build unix

package lifecycle

import (
	"os"
	"os/signal"
	"syscall"
)

// SignalSource maps process signals onto visibility:
// SIGUSR1 background, SIGUSR2 foreground, SIGCONT (resumed after a stop) background then foreground.
type SignalSource struct{}

func NewSignalSource() SignalSource {
	return SignalSource{}
}

func (SignalSource) Subscribe() (<-chan Visibility, func()) {
	sigs := make(chan os.Signal, 4)
	out := make(chan Visibility, 8)
	stop := make(chan struct{})
	signal.Notify(sigs, syscall.SIGUSR1, syscall.SIGUSR2, syscall.SIGCONT)

	emit := func(vs ...Visibility) bool {
		for _, v := range vs {
			select {
			case out <- v:
			case <-stop:
				return false
			}
		}
		return true
	}

	go func() {
		defer close(out)
		for {
			var ok bool
			select {
			case <-stop:
				return
			case sig := <-sigs:
				switch sig {
				case syscall.SIGUSR1:
					ok = emit(Background)
				case syscall.SIGUSR2:
					ok = emit(Foreground)
				case syscall.SIGCONT:
					ok = emit(Background, Foreground)
				}
			}
			if !ok {
				return
			}
		}
	}()

	return out, func() {
		signal.Stop(sigs)
		close(stop)
	}
}
