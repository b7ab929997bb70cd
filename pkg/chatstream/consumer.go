// Package chatstream consumes the relay's SSE stream for one assistant turn
// and applies it to a chatstore.Store.
package chatstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/tmaxmax/go-sse"
	"go.uber.org/zap"

	"github.com/papercomputeco/rovo/pkg/chatstore"
	"github.com/papercomputeco/rovo/pkg/llm"
	"github.com/papercomputeco/rovo/pkg/logger"
	"github.com/papercomputeco/rovo/pkg/widget"
)

// ErrorText replaces the content of a turn whose stream failed.
const ErrorText = "Sorry, I encountered an error. Please try again."

const maxEventSize = 1 << 20

// State is the lifecycle position of one turn.
type State int

const (
	StateIdle State = iota
	StateStreaming
	StateWidgetBuffering
	StateComplete
	StateError
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStreaming:
		return "streaming"
	case StateWidgetBuffering:
		return "widget-buffering"
	case StateComplete:
		return "complete"
	case StateError:
		return "error"
	case StateCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == StateComplete || s == StateError || s == StateCancelled
}

// Consumer drives a single turn. It is safe for concurrent use, so the UI
// may read State while Consume runs on another goroutine. Store listeners
// run while the Consumer is locked and must not call back into it.
type Consumer struct {
	store  *chatstore.Store
	logger *zap.Logger

	mu       sync.Mutex
	state    State
	id       string
	lastSeq  int
	splitter widget.Splitter
}

// NewConsumer creates a Consumer writing into store.
func NewConsumer(store *chatstore.Store, logger *zap.Logger) *Consumer {
	return &Consumer{store: store, logger: logger}
}

// State returns the current state.
func (c *Consumer) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// MessageID returns the assistant message ID, empty before Begin.
func (c *Consumer) MessageID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.id
}

// Begin creates the empty streaming message. Calls after the first return
// the same ID.
func (c *Consumer) Begin() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.begin()
	return c.id
}

func (c *Consumer) begin() {
	if c.state != StateIdle {
		return
	}
	c.id = c.store.StartTurn()
	c.state = StateStreaming
}

// Apply applies the frame numbered seq. Frames must be numbered from 1 in
// arrival order; a seq already applied is ignored, so replaying a frame
// never duplicates text. It reports whether the frame was applied.
func (c *Consumer) Apply(seq int, frame llm.Frame) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.begin()
	if c.state.Terminal() || seq <= c.lastSeq {
		return false
	}
	c.lastSeq = seq

	var visible string
	if frame.Widget {
		visible = c.splitter.PushWidget(frame.Text)
	} else {
		visible = c.splitter.Push(frame.Text)
	}
	if visible != "" {
		c.store.AppendDelta(c.id, seq, visible)
	}

	if c.splitter.Buffering() && c.state == StateStreaming {
		c.state = StateWidgetBuffering
		c.store.SetWidgetLoading(c.id)
	}
	return true
}

// Finish completes the turn: any held text is released, the buffered
// widget is parsed and attached, and streaming ends. A widget that fails to
// parse leaves the turn text-only.
func (c *Consumer) Finish() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.begin()
	if c.state.Terminal() {
		return
	}
	c.releaseHeld()

	if c.splitter.Buffering() {
		w, err := widget.Parse(c.splitter.Buffer())
		if err != nil {
			c.logger.Warn("dropping unparseable widget",
				zap.Error(err),
				zap.String("buffer", logger.Truncate(c.splitter.Buffer(), 100)),
			)
		} else {
			c.store.SetWidget(c.id, w)
		}
	}

	c.store.CompleteTurn(c.id)
	c.state = StateComplete
}

// Fail ends the turn with ErrorText in place of its content.
func (c *Consumer) Fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.begin()
	if c.state.Terminal() {
		return
	}
	c.logger.Error("chat stream failed", zap.Error(err))
	c.store.ErrorTurn(c.id, ErrorText)
	c.state = StateError
}

// Cancel ends the turn keeping whatever text has arrived.
func (c *Consumer) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.begin()
	if c.state.Terminal() {
		return
	}
	c.releaseHeld()
	c.store.CompleteTurn(c.id)
	c.state = StateCancelled
}

// releaseHeld appends a fragment the splitter was holding back as a
// possible sentinel prefix. Caller holds c.mu.
func (c *Consumer) releaseHeld() {
	if tail := c.splitter.Flush(); tail != "" {
		c.lastSeq++
		c.store.AppendDelta(c.id, c.lastSeq, tail)
	}
}

// Consume reads relay SSE events from r until [DONE], end of stream, an
// error or cancellation of ctx. If r is an io.Closer it is closed when ctx
// is cancelled so a blocked read returns. The returned error is nil for a
// completed turn.
func (c *Consumer) Consume(ctx context.Context, r io.Reader) error {
	c.Begin()

	if closer, ok := r.(io.Closer); ok {
		stop := context.AfterFunc(ctx, func() { closer.Close() })
		defer stop()
	}

	seq := 0
	cfg := &sse.ReadConfig{MaxEventSize: maxEventSize}
	for ev, err := range sse.Read(r, cfg) {
		if ctx.Err() != nil {
			c.Cancel()
			return ctx.Err()
		}
		if err != nil {
			err = fmt.Errorf("reading relay stream: %w", err)
			c.Fail(err)
			return err
		}
		if ev.Data == llm.DoneSentinel {
			c.Finish()
			return nil
		}

		var frame llm.Frame
		if err := json.Unmarshal([]byte(ev.Data), &frame); err != nil {
			c.logger.Debug("skipping malformed frame", zap.Error(err), zap.Int("size", len(ev.Data)))
			continue
		}
		seq++
		c.Apply(seq, frame)
	}

	if ctx.Err() != nil {
		c.Cancel()
		return ctx.Err()
	}
	c.logger.Debug("relay stream ended without [DONE]")
	c.Finish()
	return nil
}
