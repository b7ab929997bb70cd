// Package chatstore holds the client-side conversation: the ordered list of
// user and assistant messages and the transitions a streaming turn goes
// through. Every mutation notifies subscribers with a snapshot of the
// message it changed.
package chatstore

import (
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/papercomputeco/rovo/pkg/llm"
	"github.com/papercomputeco/rovo/pkg/widget"
)

// MessageType distinguishes user and assistant messages.
type MessageType string

const (
	TypeUser      MessageType = "user"
	TypeAssistant MessageType = "assistant"
)

// Message is one entry of the conversation as the UI renders it.
type Message struct {
	ID                 string
	Type               MessageType
	Content            string
	IsStreaming        bool
	Widget             *widget.Widget
	WidgetLoading      bool
	SuggestedQuestions []string
	Failed             bool
}

// Listener receives a snapshot of a message after each change.
type Listener func(Message)

// entry is the mutable record behind a Message.
type entry struct {
	msg     Message
	lastSeq int
	done    bool
}

// Store is safe for concurrent use.
type Store struct {
	mu        sync.RWMutex
	entries   []*entry
	byID      map[string]*entry
	listeners map[int]Listener
	nextSub   int
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		byID:      make(map[string]*entry),
		listeners: make(map[int]Listener),
	}
}

// Subscribe registers fn for change notifications and returns a function
// that removes it. fn is called without the store lock held.
func (s *Store) Subscribe(fn Listener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.listeners[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

// AddUserMessage appends a completed user message and returns its ID.
func (s *Store) AddUserMessage(content string) string {
	return s.add(Message{Type: TypeUser, Content: content}, true)
}

// StartTurn appends an empty assistant message with IsStreaming set and
// returns its ID.
func (s *Store) StartTurn() string {
	return s.add(Message{Type: TypeAssistant, IsStreaming: true}, false)
}

func (s *Store) add(msg Message, done bool) string {
	msg.ID = uuid.NewString()
	e := &entry{msg: msg, done: done}

	s.mu.Lock()
	s.entries = append(s.entries, e)
	s.byID[msg.ID] = e
	snapshot := e.snapshot()
	s.mu.Unlock()

	s.notify(snapshot)
	return msg.ID
}

// AppendDelta appends text to a streaming assistant message. Frames are
// numbered from 1 by arrival; a seq at or below the last applied one is a
// replay and is ignored, as is any delta after the turn has ended. It
// reports whether the delta was applied.
func (s *Store) AppendDelta(id string, seq int, text string) bool {
	return s.update(id, func(e *entry) bool {
		if e.done || seq <= e.lastSeq {
			return false
		}
		e.lastSeq = seq
		e.msg.Content += text
		return true
	})
}

// SetWidgetLoading marks that a widget payload is being buffered.
func (s *Store) SetWidgetLoading(id string) bool {
	return s.update(id, func(e *entry) bool {
		if e.done || e.msg.WidgetLoading || e.msg.Widget != nil {
			return false
		}
		e.msg.WidgetLoading = true
		return true
	})
}

// SetWidget attaches w to the message. Only the first call has an effect.
func (s *Store) SetWidget(id string, w *widget.Widget) bool {
	if w == nil {
		return false
	}
	return s.update(id, func(e *entry) bool {
		if e.msg.Widget != nil {
			return false
		}
		e.msg.Widget = w
		e.msg.WidgetLoading = false
		return true
	})
}

// CompleteTurn ends streaming for the message. Only the first call has an
// effect.
func (s *Store) CompleteTurn(id string) bool {
	return s.update(id, func(e *entry) bool {
		if e.done {
			return false
		}
		e.done = true
		e.msg.IsStreaming = false
		e.msg.WidgetLoading = false
		return true
	})
}

// ErrorTurn ends the turn and replaces its content with text.
func (s *Store) ErrorTurn(id string, text string) bool {
	return s.update(id, func(e *entry) bool {
		if e.done {
			return false
		}
		e.done = true
		e.msg.IsStreaming = false
		e.msg.WidgetLoading = false
		e.msg.Failed = true
		e.msg.Content = text
		return true
	})
}

// SetSuggestions attaches follow-up questions to a completed assistant
// message. Empty lists and failed turns are ignored.
func (s *Store) SetSuggestions(id string, questions []string) bool {
	if len(questions) == 0 {
		return false
	}
	return s.update(id, func(e *entry) bool {
		if !e.done || e.msg.Failed || e.msg.Type != TypeAssistant {
			return false
		}
		e.msg.SuggestedQuestions = slices.Clone(questions)
		return true
	})
}

func (s *Store) update(id string, fn func(*entry) bool) bool {
	s.mu.Lock()
	e, ok := s.byID[id]
	if !ok || !fn(e) {
		s.mu.Unlock()
		return false
	}
	snapshot := e.snapshot()
	s.mu.Unlock()

	s.notify(snapshot)
	return true
}

func (s *Store) notify(msg Message) {
	s.mu.RLock()
	listeners := make([]Listener, 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.RUnlock()

	for _, fn := range listeners {
		fn(msg)
	}
}

// Message returns a snapshot of the message with the given ID.
func (s *Store) Message(id string) (Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.byID[id]
	if !ok {
		return Message{}, false
	}
	return e.snapshot(), true
}

// Messages returns a snapshot of the whole conversation in order.
func (s *Store) Messages() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Message, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.snapshot()
	}
	return out
}

// History returns the newest limit finished turns as request history.
// Streaming and failed messages are left out.
func (s *Store) History(limit int) []llm.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := make([]llm.Message, 0, len(s.entries))
	for _, e := range s.entries {
		if !e.done || e.msg.Failed || e.msg.Content == "" {
			continue
		}
		history = append(history, llm.Message{Role: string(e.msg.Type), Content: e.msg.Content})
	}
	return llm.TrimHistory(history, limit)
}

func (e *entry) snapshot() Message {
	msg := e.msg
	msg.SuggestedQuestions = slices.Clone(e.msg.SuggestedQuestions)
	return msg
}
