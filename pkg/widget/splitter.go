package widget

import "strings"

// Splitter tracks one turn's text stream and diverts everything from the
// first Sentinel onward into a separate widget buffer.
//
// Before the Sentinel is seen every delta is echoed back as visible text,
// except for a trailing fragment that could be the start of a Sentinel split
// across deltas. That fragment is held until the next delta disambiguates it
// or Flush is called. Once the Sentinel is seen nothing is visible any more.
//
// The zero value is ready to use. A Splitter is not safe for concurrent use.
type Splitter struct {
	text      strings.Builder
	held      string
	buffering bool
	widget    strings.Builder
}

// Push consumes delta and returns the text that may be shown now.
func (s *Splitter) Push(delta string) string {
	if delta == "" {
		return ""
	}
	if s.buffering {
		s.widget.WriteString(delta)
		return ""
	}

	candidate := s.held + delta
	s.held = ""

	if i := strings.Index(candidate, Sentinel); i >= 0 {
		s.buffering = true
		s.widget.WriteString(candidate[i:])
		return s.emit(candidate[:i])
	}

	keep := partialSentinel(candidate)
	s.held = candidate[len(candidate)-keep:]
	return s.emit(candidate[:len(candidate)-keep])
}

// PushWidget appends an explicitly framed widget payload, switching the
// splitter to buffering. Any held fragment turned out to be plain text and
// is returned as visible.
func (s *Splitter) PushWidget(payload string) string {
	visible := ""
	if !s.buffering {
		visible = s.emit(s.held)
		s.held = ""
		s.buffering = true
	}
	s.widget.WriteString(payload)
	return visible
}

// Flush releases a held fragment at end of stream.
func (s *Splitter) Flush() string {
	if s.buffering {
		return ""
	}
	tail := s.held
	s.held = ""
	return s.emit(tail)
}

// Buffering reports whether the Sentinel has been seen.
func (s *Splitter) Buffering() bool {
	return s.buffering
}

// Buffer returns the widget buffer, starting with the Sentinel.
func (s *Splitter) Buffer() string {
	return s.widget.String()
}

// Text returns all visible text emitted so far.
func (s *Splitter) Text() string {
	return s.text.String()
}

func (s *Splitter) emit(visible string) string {
	s.text.WriteString(visible)
	return visible
}

// partialSentinel returns the length of the longest suffix of s that is a
// proper prefix of Sentinel.
func partialSentinel(s string) int {
	n := len(Sentinel) - 1
	if len(s) < n {
		n = len(s)
	}
	for k := n; k > 0; k-- {
		if strings.HasSuffix(s, Sentinel[:k]) {
			return k
		}
	}
	return 0
}
