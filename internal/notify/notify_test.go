package notify

import (
	"context"
	"errors"
	"sync"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type recordingSender struct {
	mu   sync.Mutex
	msgs []Message
	fail bool
}

func (s *recordingSender) Deliver(_ context.Context, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, msg)
	if s.fail {
		return errors.New("chat unreachable")
	}
	return nil
}

func TestRelayDeliversQueuedMessages(t *testing.T) {
	sender := &recordingSender{}
	relay := NewRelay(sender, 2, 16)
	relay.Start()

	for i := int64(1); i <= 5; i++ {
		relay.Notify(context.Background(), Message{ChatID: i, Text: "hello"})
	}
	relay.Notify(context.Background(), Message{ChatID: 0, Text: "nobody"})
	relay.Close()

	if len(sender.msgs) != 5 {
		t.Fatalf("expected 5 deliveries, got %d", len(sender.msgs))
	}
}

func TestRelaySwallowsDeliveryFailures(t *testing.T) {
	sender := &recordingSender{fail: true}
	relay := NewRelay(sender, 1, 4)
	relay.Start()
	relay.Notify(context.Background(), Message{ChatID: 7, Text: "hi"})
	relay.Close()

	if len(sender.msgs) != 1 {
		t.Fatalf("expected one attempt, got %d", len(sender.msgs))
	}
}

func TestRelayDropsAfterClose(t *testing.T) {
	sender := &recordingSender{}
	relay := NewRelay(sender, 1, 4)
	relay.Start()
	relay.Close()
	relay.Notify(context.Background(), Message{ChatID: 7, Text: "late"})
	relay.Close()

	if len(sender.msgs) != 0 {
		t.Fatalf("expected no deliveries after close, got %d", len(sender.msgs))
	}
}

type blockingSender struct {
	release chan struct{}
	mu      sync.Mutex
	count   int
}

func (s *blockingSender) Deliver(context.Context, Message) error {
	<-s.release
	s.mu.Lock()
	s.count++
	s.mu.Unlock()
	return nil
}

func TestRelayEnqueueWaitsForSpace(t *testing.T) {
	sender := &blockingSender{release: make(chan struct{})}
	relay := NewRelay(sender, 1, 1)
	relay.Start()

	done := make(chan error, 1)
	go func() {
		for i := int64(1); i <= 5; i++ {
			if err := relay.Enqueue(context.Background(), Message{ChatID: i, Text: "news"}); err != nil {
				done <- err
				return
			}
		}
		done <- nil
	}()
	close(sender.release)
	if err := <-done; err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	relay.Close()

	if sender.count != 5 {
		t.Fatalf("expected 5 deliveries, got %d", sender.count)
	}
	if err := relay.Enqueue(context.Background(), Message{ChatID: 9, Text: "late"}); !errors.Is(err, ErrRelayClosed) {
		t.Fatalf("expected ErrRelayClosed, got %v", err)
	}
}

func TestRelayEnqueueHonorsContext(t *testing.T) {
	sender := &blockingSender{release: make(chan struct{})}
	relay := NewRelay(sender, 1, 1)
	relay.Start()
	defer func() {
		close(sender.release)
		relay.Close()
	}()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var err error
	for i := int64(1); i <= 3 && err == nil; i++ {
		err = relay.Enqueue(ctx, Message{ChatID: i, Text: "news"})
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context canceled once the queue is full, got %v", err)
	}
}

type stubChatSender struct {
	sent []tgbotapi.Chattable
}

func (s *stubChatSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	s.sent = append(s.sent, c)
	return tgbotapi.Message{}, nil
}

func TestTelegramSenderAttachesKeyboard(t *testing.T) {
	api := &stubChatSender{}
	sender := NewTelegramSender(api)

	err := sender.Deliver(context.Background(), Message{
		ChatID:  99,
		Text:    "approve?",
		Buttons: [][]Button{{{Text: "Approve", Data: "approve:1"}}},
	})
	if err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if len(api.sent) != 1 {
		t.Fatalf("expected one send, got %d", len(api.sent))
	}
	cfg, ok := api.sent[0].(tgbotapi.MessageConfig)
	if !ok {
		t.Fatalf("unexpected chattable %T", api.sent[0])
	}
	markup, ok := cfg.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	if !ok || len(markup.InlineKeyboard) != 1 || *markup.InlineKeyboard[0][0].CallbackData != "approve:1" {
		t.Fatalf("unexpected markup %#v", cfg.ReplyMarkup)
	}
	if cfg.ChatID != 99 || cfg.Text != "approve?" {
		t.Fatalf("unexpected message %+v", cfg.BaseChat)
	}
}

func TestAudienceAddressesChats(t *testing.T) {
	audience := Audience{AdminID: 1, GroupID: 2}
	if audience.Admin("x").ChatID != 1 || audience.Group("y").ChatID != 2 {
		t.Fatalf("unexpected audience routing")
	}
}
