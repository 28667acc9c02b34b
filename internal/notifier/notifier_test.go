package notifier

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/user/quakebot/internal/storage"
	"github.com/user/quakebot/pkg/logger"
)

func TestMain(m *testing.M) {
	logger.Init("disabled", "")
	os.Exit(m.Run())
}

type fakeStore struct {
	mu        sync.Mutex
	quakes    []storage.Earthquake
	chatIDs   []int64
	marked    [][]string
	pollErr   error
	chatsErr  error
	markErr   error
	pollCount atomic.Int64
}

func (s *fakeStore) Unnotified() ([]storage.Earthquake, error) {
	s.pollCount.Add(1)
	return s.quakes, s.pollErr
}

func (s *fakeStore) AllChatIDs() ([]int64, error) {
	return s.chatIDs, s.chatsErr
}

func (s *fakeStore) MarkNotified(ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.markErr != nil {
		return s.markErr
	}
	s.marked = append(s.marked, ids)
	return nil
}

func (s *fakeStore) markedBatches() [][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.marked
}

type sentMessage struct {
	chatID int64
	text   string
}

type fakeSender struct {
	mu     sync.Mutex
	sent   []sentMessage
	failOn func(chatID int64, text string) error
	onSend func()
}

func (f *fakeSender) Send(chatID int64, text string) error {
	f.mu.Lock()
	f.sent = append(f.sent, sentMessage{chatID, text})
	f.mu.Unlock()
	if f.onSend != nil {
		f.onSend()
	}
	if f.failOn != nil {
		return f.failOn(chatID, text)
	}
	return nil
}

func (f *fakeSender) sentMessages() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sent
}

func quake(id string) storage.Earthquake {
	return storage.Earthquake{
		ID:        id,
		Location:  "Almaty region",
		Magnitude: 4.5,
		EventTime: time.Date(2024, 3, 4, 10, 30, 0, 0, time.UTC),
		URL:       "https://example.com/" + id,
	}
}

func TestDispatchFansOutToAllSubscribers(t *testing.T) {
	store := &fakeStore{
		quakes:  []storage.Earthquake{quake("a"), quake("b")},
		chatIDs: []int64{111, 222},
	}
	sender := &fakeSender{}
	n := NewNotifier(store, sender, time.Minute, 5*time.Minute)

	if err := n.cycle(context.Background()); err != nil {
		t.Fatalf("cycle: %v", err)
	}

	sent := sender.sentMessages()
	if len(sent) != 4 {
		t.Fatalf("expected 2 events x 2 chats = 4 sends, got %d", len(sent))
	}

	marked := store.markedBatches()
	if len(marked) != 1 {
		t.Fatalf("expected a single MarkNotified call, got %d", len(marked))
	}
	if len(marked[0]) != 2 || marked[0][0] != "a" || marked[0][1] != "b" {
		t.Fatalf("expected both events marked in one batch, got %v", marked[0])
	}
}

func TestSendFailureDoesNotAbortBatch(t *testing.T) {
	store := &fakeStore{
		quakes:  []storage.Earthquake{quake("a"), quake("b")},
		chatIDs: []int64{111, 222},
	}
	sender := &fakeSender{
		failOn: func(chatID int64, text string) error {
			if chatID == 111 && strings.Contains(text, "example.com/a") {
				return errors.New("blocked by user")
			}
			return nil
		},
	}
	n := NewNotifier(store, sender, time.Minute, 5*time.Minute)

	if err := n.cycle(context.Background()); err != nil {
		t.Fatalf("cycle: %v", err)
	}

	// The failed (event, chat) pair still counts as an attempt: every
	// pair was tried and both events end up marked.
	if len(sender.sentMessages()) != 4 {
		t.Fatalf("expected 4 attempts, got %d", len(sender.sentMessages()))
	}
	marked := store.markedBatches()
	if len(marked) != 1 || len(marked[0]) != 2 {
		t.Fatalf("expected both events marked despite the send failure, got %v", marked)
	}
}

func TestEmptyBatchSkipsDispatch(t *testing.T) {
	store := &fakeStore{chatIDs: []int64{111}}
	sender := &fakeSender{}
	n := NewNotifier(store, sender, time.Minute, 5*time.Minute)

	if err := n.cycle(context.Background()); err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if len(sender.sentMessages()) != 0 {
		t.Fatalf("no sends expected for an empty batch")
	}
	if len(store.markedBatches()) != 0 {
		t.Fatalf("no MarkNotified expected for an empty batch")
	}
}

func TestStoreErrorsFailTheCycle(t *testing.T) {
	cases := []struct {
		name  string
		store *fakeStore
	}{
		{"poll", &fakeStore{pollErr: errors.New("db gone")}},
		{"subscribers", &fakeStore{
			quakes:   []storage.Earthquake{quake("a")},
			chatsErr: errors.New("db gone"),
		}},
		{"mark", &fakeStore{
			quakes:  []storage.Earthquake{quake("a")},
			chatIDs: []int64{111},
			markErr: errors.New("db gone"),
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			n := NewNotifier(tc.store, &fakeSender{}, time.Minute, 5*time.Minute)
			if err := n.cycle(context.Background()); err == nil {
				t.Fatal("expected cycle to fail")
			}
			if len(tc.store.markedBatches()) != 0 {
				t.Fatalf("nothing must be marked on a failed cycle")
			}
		})
	}
}

func TestNoPartialMarkOnMidDispatchFault(t *testing.T) {
	store := &fakeStore{
		quakes:  []storage.Earthquake{quake("a"), quake("b")},
		chatIDs: []int64{111, 222},
	}

	// Cancel the cycle context during the very first send; the limiter
	// wait for the next pair aborts dispatch before all attempts
	// complete.
	ctx, cancel := context.WithCancel(context.Background())
	sender := &fakeSender{onSend: cancel}
	n := NewNotifier(store, sender, time.Minute, 5*time.Minute)

	if err := n.cycle(ctx); err == nil {
		t.Fatal("expected the interrupted cycle to fail")
	}
	if len(store.markedBatches()) != 0 {
		t.Fatalf("no event may be marked after a mid-dispatch fault, got %v", store.markedBatches())
	}
}

func TestBackoffSelection(t *testing.T) {
	// Successful cycles reschedule at the short interval.
	store := &fakeStore{}
	n := NewNotifier(store, &fakeSender{}, 5*time.Millisecond, time.Hour)
	n.Start()
	waitForPolls(t, store, 3)
	n.Stop()

	// A failing cycle reschedules at the long interval.
	failing := &fakeStore{pollErr: errors.New("db gone")}
	n = NewNotifier(failing, &fakeSender{}, 5*time.Millisecond, time.Hour)
	n.Start()
	waitForPolls(t, failing, 1)
	time.Sleep(50 * time.Millisecond)
	if got := failing.pollCount.Load(); got != 1 {
		t.Fatalf("expected a single poll before the long backoff, saw %d", got)
	}
	n.Stop()
}

func waitForPolls(t *testing.T, store *fakeStore, n int64) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for store.pollCount.Load() < n {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %d polls, saw %d", n, store.pollCount.Load())
		}
		time.Sleep(time.Millisecond)
	}
}

func TestMessageReferencesEvent(t *testing.T) {
	store := &fakeStore{
		quakes:  []storage.Earthquake{quake("a")},
		chatIDs: []int64{111},
	}
	sender := &fakeSender{}
	n := NewNotifier(store, sender, time.Minute, 5*time.Minute)

	if err := n.cycle(context.Background()); err != nil {
		t.Fatalf("cycle: %v", err)
	}

	sent := sender.sentMessages()
	if len(sent) != 1 {
		t.Fatalf("expected one send, got %d", len(sent))
	}
	for _, fragment := range []string{
		fmt.Sprintf("%.1f", 4.5),
		"Almaty region",
		"2024-03-04 10:30:00",
		"https://example.com/a",
	} {
		if !strings.Contains(sent[0].text, fragment) {
			t.Fatalf("message missing %q:\n%s", fragment, sent[0].text)
		}
	}
}
