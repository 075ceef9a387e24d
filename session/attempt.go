package session

import (
	"context"
	"time"
)

type attemptKind int

const (
	attemptPair attemptKind = iota
	attemptTransfer
)

func (k attemptKind) String() string {
	if k == attemptPair {
		return "pair"
	}
	return "transfer"
}

// attempt is one protocol exchange on one socket. It resolves exactly once.
type attempt struct {
	kind     attemptKind
	gen      uint64
	join     []byte // pairing only
	timer    *time.Timer
	result   chan error // buffered 1
	resolved bool
}

func newAttempt(kind attemptKind, gen uint64, result chan error) *attempt {
	return &attempt{kind: kind, gen: gen, result: result}
}

func (a *attempt) resolve(err error) bool {
	if a.resolved {
		return false
	}
	a.resolved = true
	if a.timer != nil {
		a.timer.Stop()
	}
	a.result <- err
	return true
}

// arm starts the attempt timer. fire runs on the loop only while a is still current.
func (c *Client) arm(a *attempt, d time.Duration, fire func()) {
	a.timer = time.AfterFunc(d, func() {
		c.post(func() {
			if c.attempt != a || a.resolved {
				return
			}
			fire()
		})
	})
}

func (c *Client) resolveAttempt(err error) {
	if c.attempt == nil {
		return
	}
	c.attempt.resolve(err)
	c.attempt = nil
}

type runKind int

const (
	runPair runKind = iota
	runReconnect
	runTransfer
)

// run is one Retry envelope. Only the current run may apply its result.
type run struct {
	id     uint64
	kind   runKind
	ctx    context.Context
	cancel context.CancelFunc
}

func (c *Client) newRun(kind runKind) *run {
	c.cancelRun()
	c.runSeq++
	ctx, cancel := context.WithCancel(c.ctx)
	r := &run{id: c.runSeq, kind: kind, ctx: ctx, cancel: cancel}
	c.run = r
	return r
}

// await blocks a retry worker until the attempt resolves or the run is cancelled.
func await(ctx context.Context, result chan error) error {
	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
