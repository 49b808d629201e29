package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/Shopify/sarama"
)

type stubSyncProducer struct {
	sarama.SyncProducer
	sendFn func(msg *sarama.ProducerMessage) (int32, int64, error)
	closed bool
}

func (s *stubSyncProducer) SendMessage(msg *sarama.ProducerMessage) (int32, int64, error) {
	return s.sendFn(msg)
}

func (s *stubSyncProducer) Close() error {
	s.closed = true
	return nil
}

func TestSubject(t *testing.T) {
	if got := Subject("", TypePostLiked); got != "post.liked" {
		t.Fatalf("Subject without prefix = %q", got)
	}
	if got := Subject("social", TypeFriendRemoved); got != "social.friend.removed" {
		t.Fatalf("Subject with prefix = %q", got)
	}
}

func TestKafkaPublisherSendsKeyedMessage(t *testing.T) {
	var sent *sarama.ProducerMessage
	producer := &stubSyncProducer{
		sendFn: func(msg *sarama.ProducerMessage) (int32, int64, error) {
			sent = msg
			return 0, 1, nil
		},
	}
	p := newKafkaPublisher(producer, "social-events")

	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	err := p.Publish(context.Background(), Event{
		Type:      TypeFriendRequestSent,
		ActorID:   "a",
		SubjectID: "b",
		Key:       "a_b",
		At:        at,
	})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if sent == nil {
		t.Fatalf("expected a message")
	}
	if sent.Topic != "social-events" {
		t.Fatalf("topic = %q", sent.Topic)
	}
	key, _ := sent.Key.Encode()
	if string(key) != "a_b" {
		t.Fatalf("key = %q", key)
	}
	raw, _ := sent.Value.Encode()
	var got Event
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("decode value: %v", err)
	}
	if got.Type != TypeFriendRequestSent || got.ActorID != "a" || !got.At.Equal(at) {
		t.Fatalf("unexpected payload: %+v", got)
	}

	if err := p.Close(); err != nil || !producer.closed {
		t.Fatalf("Close: err=%v closed=%v", err, producer.closed)
	}
}

func TestKafkaPublisherFallsBackToSubjectKey(t *testing.T) {
	var key string
	p := newKafkaPublisher(&stubSyncProducer{
		sendFn: func(msg *sarama.ProducerMessage) (int32, int64, error) {
			raw, _ := msg.Key.Encode()
			key = string(raw)
			return 0, 0, nil
		},
	}, "t")
	if err := p.Publish(context.Background(), Event{Type: TypePostCreated, ActorID: "u1", SubjectID: "p1"}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if key != "p1" {
		t.Fatalf("key = %q, want p1", key)
	}
}

func TestKafkaPublisherWrapsSendError(t *testing.T) {
	boom := errors.New("broker down")
	p := newKafkaPublisher(&stubSyncProducer{
		sendFn: func(*sarama.ProducerMessage) (int32, int64, error) { return 0, 0, boom },
	}, "t")
	err := p.Publish(context.Background(), Event{Type: TypePostLiked})
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped broker error, got %v", err)
	}
}

func TestNopDiscards(t *testing.T) {
	p := Nop()
	if err := p.Publish(context.Background(), Event{Type: TypePostLiked}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
