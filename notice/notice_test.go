package notice

import (
	"testing"

	log "github.com/sirupsen/logrus"
)

func TestBoardKeepsLatest(t *testing.T) {
	b := NewBoard(log.New(), "test")
	b.Notify(Success, "first")
	b.Notify(Error, "second")

	if n := b.Peek(); n == nil || n.Text != "second" || n.Level != Error {
		t.Fatalf("unexpected latest notice: %+v", n)
	}
	if n := b.Take(); n == nil || n.Text != "second" {
		t.Fatalf("unexpected taken notice: %+v", n)
	}
	if n := b.Take(); n != nil {
		t.Fatalf("expected board to be empty, got %+v", n)
	}
}

func TestBoardFansOutToSubscribers(t *testing.T) {
	b := NewBoard(log.New(), "test")
	ch, cancel := b.Subscribe()
	if b.Subscribers() != 1 {
		t.Fatalf("expected one subscriber")
	}

	b.Notify(Info, "hello")
	select {
	case n := <-ch:
		if n.Text != "hello" || n.Level != Info {
			t.Fatalf("unexpected notice %+v", n)
		}
	default:
		t.Fatalf("expected notice to be delivered")
	}

	// A full subscriber does not block Notify.
	for i := 0; i < 10; i++ {
		b.Notify(Info, "flood")
	}
	cancel()
	cancel()
	if b.Subscribers() != 0 {
		t.Fatalf("expected subscription to be removed")
	}
	b.Notify(Info, "after cancel")
}
