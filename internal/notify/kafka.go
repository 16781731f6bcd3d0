//go:build !js

package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

const kafkaWriteTimeout = 10 * time.Second

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink publishes notifications to a topic from a background goroutine.
// Publish never waits on the broker; a full queue drops the notification.
type KafkaSink struct {
	w     messageWriter
	log   *slog.Logger
	queue chan kafka.Message
	done  chan struct{}

	mu     sync.Mutex
	closed bool
}

func NewKafkaSink(brokers []string, topic string, log *slog.Logger) *KafkaSink {
	return newKafkaSink(&kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Topic:    topic,
		Balancer: &kafka.LeastBytes{},
	}, log)
}

func newKafkaSink(w messageWriter, log *slog.Logger) *KafkaSink {
	if log == nil {
		log = slog.Default()
	}
	k := &KafkaSink{
		w:     w,
		log:   log,
		queue: make(chan kafka.Message, 256),
		done:  make(chan struct{}),
	}
	go k.run()
	return k
}

func (k *KafkaSink) run() {
	defer close(k.done)
	for msg := range k.queue {
		ctx, cancel := context.WithTimeout(context.Background(), kafkaWriteTimeout)
		err := k.w.WriteMessages(ctx, msg)
		cancel()
		if err != nil {
			k.log.Warn("publish notification", "error", err, "key", string(msg.Key))
		}
	}
}

// Publish implements Sink. Messages are keyed by event identifier so one
// event's history stays on one partition.
func (k *KafkaSink) Publish(n Notification) {
	value, err := json.Marshal(n)
	if err != nil {
		k.log.Error("marshal notification", "error", err, "kind", n.Kind)
		return
	}
	key := n.EventID
	if key == "" {
		key = string(n.Kind)
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	if k.closed {
		return
	}
	select {
	case k.queue <- kafka.Message{Key: []byte(key), Value: value}:
	default:
		k.log.Warn("kafka queue full, dropping notification", "kind", n.Kind)
	}
}

// Close flushes queued notifications and closes the writer.
func (k *KafkaSink) Close() error {
	k.mu.Lock()
	if k.closed {
		k.mu.Unlock()
		return nil
	}
	k.closed = true
	close(k.queue)
	k.mu.Unlock()

	<-k.done
	return k.w.Close()
}
