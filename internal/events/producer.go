package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"go-material-store/pkg/logger"

	"github.com/segmentio/kafka-go"
)

var (
	ErrBufferFull     = errors.New("event buffer full")
	ErrProducerClosed = errors.New("event producer closed")
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer queues messages in memory and writes them to Kafka from one goroutine.
// Publish never blocks the caller.
type Producer struct {
	w            messageWriter
	inbox        chan kafka.Message
	stop         chan struct{}
	done         chan struct{}
	once         sync.Once
	started      bool
	writeTimeout time.Duration
	logg         *logger.Logger
}

func NewProducer(brokers []string, topic string, buf int, logg *logger.Logger) *Producer {
	return newProducer(&kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
	}, buf, logg)
}

func newProducer(w messageWriter, buf int, logg *logger.Logger) *Producer {
	if buf <= 0 {
		buf = 256
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Producer{
		w:            w,
		inbox:        make(chan kafka.Message, buf),
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
		writeTimeout: 10 * time.Second,
		logg:         logg,
	}
}

func (p *Producer) Start(ctx context.Context) {
	p.started = true
	go func() {
		defer close(p.done)
		for {
			select {
			case m := <-p.inbox:
				p.write(m)
			case <-ctx.Done():
				p.drain()
				return
			case <-p.stop:
				p.drain()
				return
			}
		}
	}()
}

// Publish enqueues the envelope keyed by key (the order id keeps one order on one partition).
func (p *Producer) Publish(key string, env Envelope) error {
	select {
	case <-p.stop:
		return ErrProducerClosed
	default:
	}
	value, err := json.Marshal(env)
	if err != nil {
		return err
	}
	msg := kafka.Message{
		Key:   []byte(key),
		Value: value,
		Time:  env.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(env.EventType)},
		},
	}
	select {
	case p.inbox <- msg:
		return nil
	default:
		return ErrBufferFull
	}
}

// Close flushes queued messages and closes the writer.
func (p *Producer) Close() {
	p.once.Do(func() { close(p.stop) })
	if p.started {
		<-p.done
		return
	}
	p.drain()
}

func (p *Producer) drain() {
	for {
		select {
		case m := <-p.inbox:
			p.write(m)
		default:
			if err := p.w.Close(); err != nil {
				p.logg.Error(context.Background(), "close kafka writer", err)
			}
			return
		}
	}
}

func (p *Producer) write(m kafka.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), p.writeTimeout)
	defer cancel()
	if err := p.w.WriteMessages(ctx, m); err != nil {
		lctx := p.logg.WithField(ctx, "event_key", string(m.Key))
		p.logg.Error(lctx, "publish event", err)
	}
}
