package messaging_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/samirrijal/soundlines/internal/core/domain"
	"github.com/samirrijal/soundlines/internal/core/messaging"
)

func TestRequestChannel_FIFO(t *testing.T) {
	ch := messaging.NewRequestChannel()
	ch.Send(messaging.FetchEntities{})
	ch.Send(messaging.FetchCells{})
	ch.Send(messaging.Stop{})

	want := []messaging.Kind{messaging.KindFetchEntities, messaging.KindFetchCells, messaging.KindStop}
	for i, k := range want {
		msg, err := ch.Receive()
		if err != nil {
			t.Fatalf("receive %d: unexpected error: %v", i, err)
		}
		if msg.Kind() != k {
			t.Errorf("receive %d: expected %s, got %s", i, k, msg.Kind())
		}
	}
	if ch.Len() != 0 {
		t.Errorf("expected empty channel, got %d", ch.Len())
	}
}

func TestRequestChannel_ReceiveBlocksUntilSend(t *testing.T) {
	ch := messaging.NewRequestChannel()
	got := make(chan messaging.Message, 1)

	go func() {
		msg, err := ch.Receive()
		if err != nil {
			t.Errorf("unexpected error: %v", err)
			return
		}
		got <- msg
	}()

	select {
	case <-got:
		t.Fatal("receive returned before anything was sent")
	case <-time.After(20 * time.Millisecond):
	}

	ch.Send(messaging.FetchCells{})

	select {
	case msg := <-got:
		if msg.Kind() != messaging.KindFetchCells {
			t.Errorf("expected fetch_cells, got %s", msg.Kind())
		}
	case <-time.After(time.Second):
		t.Fatal("receive did not wake up after send")
	}
}

func TestRequestChannel_Interrupt(t *testing.T) {
	ch := messaging.NewRequestChannel()
	errc := make(chan error, 1)

	go func() {
		_, err := ch.Receive()
		errc <- err
	}()

	time.Sleep(10 * time.Millisecond)
	ch.Interrupt()

	select {
	case err := <-errc:
		if !errors.Is(err, messaging.ErrInterrupted) {
			t.Fatalf("expected ErrInterrupted, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("interrupt did not wake the receiver")
	}

	// the channel stays usable after an interrupted wait
	ch.Send(messaging.Stop{})
	msg, err := ch.Receive()
	if err != nil {
		t.Fatalf("unexpected error after interrupt: %v", err)
	}
	if msg.Kind() != messaging.KindStop {
		t.Errorf("expected stop, got %s", msg.Kind())
	}
}

func TestResultChannel_PollEmpty(t *testing.T) {
	ch := messaging.NewResultChannel()
	for i := 0; i < 100; i++ {
		msg, ok := ch.Poll()
		if ok || msg != nil {
			t.Fatalf("poll %d: expected empty result, got %v", i, msg)
		}
	}
	if ch.Len() != 0 {
		t.Errorf("polling changed the channel length to %d", ch.Len())
	}
}

func TestResultChannel_PollReturnsOldest(t *testing.T) {
	ch := messaging.NewResultChannel()
	ch.Send(messaging.NewEntitiesReady([]domain.Entity{{ID: 1}}))
	ch.Send(messaging.NewCellsReady(nil))

	msg, ok := ch.Poll()
	if !ok {
		t.Fatal("expected a message")
	}
	ready, isEntities := msg.(messaging.EntitiesReady)
	if !isEntities {
		t.Fatalf("expected EntitiesReady, got %T", msg)
	}
	if len(ready.Entities()) != 1 || ready.Entities()[0].ID != 1 {
		t.Errorf("unexpected payload: %+v", ready.Entities())
	}

	msg, ok = ch.Poll()
	if !ok {
		t.Fatal("expected a second message")
	}
	cells := msg.(messaging.CellsReady).Cells()
	if cells == nil || len(cells) != 0 {
		t.Errorf("expected empty non-nil cells, got %#v", cells)
	}

	if _, ok := ch.Poll(); ok {
		t.Error("expected channel to be drained")
	}
}

func TestRequestChannel_ManyProducers(t *testing.T) {
	ch := messaging.NewRequestChannel()
	const producers, perProducer = 8, 250

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				ch.Send(messaging.FetchEntities{})
			}
		}()
	}

	received := 0
	done := make(chan struct{})
	go func() {
		defer close(done)
		for received < producers*perProducer {
			if _, err := ch.Receive(); err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			received++
		}
	}()

	wg.Wait()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("received %d of %d messages", received, producers*perProducer)
	}
}

func TestResultChannel_PerProducerOrder(t *testing.T) {
	ch := messaging.NewResultChannel()
	for i := 0; i < 50; i++ {
		ch.Send(messaging.NewEntitiesReady([]domain.Entity{{ID: int64(i)}}))
	}
	for i := 0; i < 50; i++ {
		msg, ok := ch.Poll()
		if !ok {
			t.Fatalf("poll %d: channel drained early", i)
		}
		if id := msg.(messaging.EntitiesReady).Entities()[0].ID; id != int64(i) {
			t.Fatalf("poll %d: expected id %d, got %d", i, i, id)
		}
	}
}

func TestPair_ChannelsAreIndependent(t *testing.T) {
	p := messaging.NewPair()
	p.Requests.Send(messaging.FetchEntities{})

	if _, ok := p.Results.Poll(); ok {
		t.Error("request leaked onto the result channel")
	}
	if p.Requests.Len() != 1 {
		t.Errorf("expected 1 queued request, got %d", p.Requests.Len())
	}
}
