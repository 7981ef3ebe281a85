package operator

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"streamcast/internal/core/domain"
	"streamcast/internal/core/ports"

	"go.uber.org/zap"
)

// ErrNoPendingConfirmation is returned when Resolve is called while nothing
// is waiting on the operator.
var ErrNoPendingConfirmation = fmt.Errorf("no confirmation pending")

// Gate implements ports.OperatorPrompt as a resolvable barrier. The state
// machine blocks in ConfirmLiveTransition until some out-of-band surface
// (the control API, typically) calls Resolve, or the context is cancelled.
type Gate struct {
	logger *zap.SugaredLogger

	mu      sync.Mutex
	pending chan bool
	subject domain.BroadcastID
}

// NewGate builds an operator confirmation gate.
func NewGate(logger *zap.SugaredLogger) *Gate {
	return &Gate{logger: logger}
}

// ConfirmLiveTransition implements ports.OperatorPrompt. Only one
// confirmation can be pending at a time; the session serializes its callers.
func (g *Gate) ConfirmLiveTransition(ctx context.Context, broadcastID domain.BroadcastID) (bool, error) {
	g.mu.Lock()
	if g.pending != nil {
		g.mu.Unlock()
		return false, fmt.Errorf("confirmation already pending for broadcast %s", g.subject)
	}
	ch := make(chan bool, 1)
	g.pending = ch
	g.subject = broadcastID
	g.mu.Unlock()

	defer func() {
		g.mu.Lock()
		// Resolve may already have cleared the slot, and another waiter may
		// have registered since; only clear our own registration.
		if g.pending == ch {
			g.pending = nil
			g.subject = ""
		}
		g.mu.Unlock()
	}()

	g.logger.Warnw("waiting for operator to confirm live transition",
		"broadcast_id", broadcastID)

	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case confirmed := <-ch:
		return confirmed, nil
	}
}

// Resolve answers the pending confirmation. Returns the broadcast it applied
// to so API callers can echo it back.
func (g *Gate) Resolve(confirmed bool) (domain.BroadcastID, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.pending == nil {
		return "", ErrNoPendingConfirmation
	}
	subject := g.subject
	g.pending <- confirmed
	g.pending = nil
	g.subject = ""
	return subject, nil
}

// Pending reports whether a confirmation is waiting and for which broadcast.
func (g *Gate) Pending() (domain.BroadcastID, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.subject, g.pending != nil
}

// StdinPrompt implements ports.OperatorPrompt by asking on a terminal. Used
// when the control API is disabled and the service runs as a plain CLI.
type StdinPrompt struct {
	In     io.Reader
	Out    io.Writer
	logger *zap.SugaredLogger
}

// NewStdinPrompt builds a terminal prompt over the given streams.
func NewStdinPrompt(in io.Reader, out io.Writer, logger *zap.SugaredLogger) *StdinPrompt {
	return &StdinPrompt{In: in, Out: out, logger: logger}
}

// ConfirmLiveTransition implements ports.OperatorPrompt. The read happens in
// a goroutine so cancellation is honored even while blocked on input.
func (p *StdinPrompt) ConfirmLiveTransition(ctx context.Context, broadcastID domain.BroadcastID) (bool, error) {
	fmt.Fprintf(p.Out, "Broadcast %s did not accept the live transition.\n", broadcastID)
	fmt.Fprintf(p.Out, "Switch it live in the platform dashboard, then type yes to continue (no aborts): ")

	type answer struct {
		ok  bool
		err error
	}
	ch := make(chan answer, 1)
	go func() {
		line, err := bufio.NewReader(p.In).ReadString('\n')
		if err != nil {
			ch <- answer{err: err}
			return
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			ch <- answer{ok: true}
		default:
			ch <- answer{ok: false}
		}
	}()

	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case a := <-ch:
		if a.err != nil {
			return false, fmt.Errorf("read operator answer: %w", a.err)
		}
		return a.ok, nil
	}
}

var _ ports.OperatorPrompt = (*Gate)(nil)
var _ ports.OperatorPrompt = (*StdinPrompt)(nil)
