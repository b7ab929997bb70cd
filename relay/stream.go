package relay

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/tmaxmax/go-sse"
	"go.uber.org/zap"

	"github.com/papercomputeco/rovo/pkg/llm"
	"github.com/papercomputeco/rovo/pkg/logger"
	"github.com/papercomputeco/rovo/pkg/upstream"
	"github.com/papercomputeco/rovo/pkg/widget"
)

// relayStream copies upstream deltas to the client as {"text": ...} frames.
// Text before the widget sentinel is echoed as it arrives; everything from
// the sentinel onward is held and sent as one widget frame when upstream
// closes. The stream always ends with exactly one [DONE] frame unless the
// client has gone away.
func (r *Relay) relayStream(w *bufio.Writer, body io.ReadCloser, startTime time.Time) {
	defer body.Close()

	var (
		splitter widget.Splitter
		frames   int
	)

	send := func(frame llm.Frame) bool {
		if err := writeFrame(w, frame); err != nil {
			r.logger.Warn("client went away mid-stream", zap.Error(err), zap.Int("frames", frames))
			return false
		}
		frames++
		return true
	}

	for delta, err := range upstream.Deltas(r.provider, body, r.logger) {
		if err != nil {
			r.logger.Error("error reading stream", zap.Error(err))
			break
		}

		r.logger.Debug("streaming chunk", zap.String("content", logger.Truncate(delta, 50)))

		if text := splitter.Push(delta); text != "" {
			if !send(llm.Frame{Text: text}) {
				return
			}
		}
	}

	if tail := splitter.Flush(); tail != "" {
		if !send(llm.Frame{Text: tail}) {
			return
		}
	}
	if splitter.Buffering() {
		r.logger.Debug("forwarding widget payload", zap.Int("size", len(splitter.Buffer())))
		if !send(llm.Frame{Text: splitter.Buffer(), Widget: true}) {
			return
		}
	}

	if err := writeEvent(w, llm.DoneSentinel); err != nil {
		r.logger.Warn("failed to write stream terminator", zap.Error(err))
		return
	}

	r.logger.Debug("streaming complete",
		zap.String("text_preview", logger.Truncate(splitter.Text(), 200)),
		zap.Bool("widget", splitter.Buffering()),
		zap.Int("frames", frames),
		zap.Duration("duration", time.Since(startTime)),
	)
}

func writeFrame(w *bufio.Writer, frame llm.Frame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}
	return writeEvent(w, string(data))
}

// writeEvent writes one "data: ...\n\n" event and flushes it to the client.
func writeEvent(w *bufio.Writer, data string) error {
	msg := &sse.Message{}
	msg.AppendData(data)
	if _, err := msg.WriteTo(w); err != nil {
		return err
	}
	return w.Flush()
}
