// Package notice carries the transient, user visible messages produced by
// mutations. Only the most recent notice is kept.
package notice

import (
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

type Level string

const (
	Success Level = "success"
	Info    Level = "info"
	Warning Level = "warning"
	Error   Level = "error"
)

// Notice is a single message shown to the user.
type Notice struct {
	Level Level     `json:"level"`
	Text  string    `json:"text"`
	At    time.Time `json:"at"`
}

// Notifier receives notices from the services.
type Notifier interface {
	Notify(level Level, text string)
}

// Board keeps the latest notice; a new one replaces the previous. Every
// notice is also fanned out to the current subscribers.
type Board struct {
	mu     sync.Mutex
	latest *Notice
	subs   map[chan Notice]struct{}
	logger *log.Logger
	scope  string
	now    func() time.Time
}

// NewBoard creates a board that also logs each notice under scope.
func NewBoard(logger *log.Logger, scope string) *Board {
	if logger == nil {
		logger = log.New()
	}
	return &Board{logger: logger, scope: scope, now: time.Now, subs: make(map[chan Notice]struct{})}
}

// Subscribe returns a channel receiving every later notice and a function
// that ends the subscription. Slow subscribers miss notices rather than
// block Notify.
func (b *Board) Subscribe() (<-chan Notice, func()) {
	ch := make(chan Notice, 4)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, ch)
			b.mu.Unlock()
		})
	}
}

// Subscribers reports the number of active subscriptions.
func (b *Board) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

func (b *Board) Notify(level Level, text string) {
	n := Notice{Level: level, Text: text, At: b.now()}
	b.mu.Lock()
	b.latest = &n
	for ch := range b.subs {
		select {
		case ch <- n:
		default:
		}
	}
	b.mu.Unlock()

	entry := b.logger.WithFields(log.Fields{"scope": b.scope, "level_ui": string(level)})
	switch level {
	case Error:
		entry.Error(text)
	case Warning:
		entry.Warn(text)
	default:
		entry.Info(text)
	}
}

// Take returns the latest notice and clears it.
func (b *Board) Take() *Notice {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := b.latest
	b.latest = nil
	return n
}

// Peek returns the latest notice without clearing it.
func (b *Board) Peek() *Notice {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.latest
}

// Discard is a Notifier that drops everything.
type Discard struct{}

func (Discard) Notify(Level, string) {}
