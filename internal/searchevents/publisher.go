// Package searchevents publishes served searches to Kafka.
package searchevents

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/IBM/sarama"

	"github.com/mohammed-shakir/restaurant-finder/internal/finder"
)

type Publisher struct {
	logger  *slog.Logger
	topic   string
	events  chan finder.Event
	prod    sarama.AsyncProducer
	stopped chan struct{}
	errDone chan struct{}

	mu     sync.RWMutex
	closed bool
}

func NewPublisher(logger *slog.Logger, brokers []string, topic string, queueSize int) (*Publisher, error) {
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_5_0_0
	cfg.Producer.Return.Errors = true
	cfg.Producer.Return.Successes = false
	cfg.Producer.RequiredAcks = sarama.WaitForLocal

	prod, err := sarama.NewAsyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("searchevents: create async producer: %w", err)
	}
	return newWithProducer(logger, prod, topic, queueSize), nil
}

func newWithProducer(logger *slog.Logger, prod sarama.AsyncProducer, topic string, queueSize int) *Publisher {
	if queueSize <= 0 {
		queueSize = 1024
	}
	p := &Publisher{
		logger:  logger,
		topic:   topic,
		events:  make(chan finder.Event, queueSize),
		prod:    prod,
		stopped: make(chan struct{}),
		errDone: make(chan struct{}),
	}

	go func() {
		defer close(p.stopped)
		for ev := range p.events {
			b, err := json.Marshal(ev)
			if err != nil {
				p.logger.Error("searchevents: marshal", "err", err)
				continue
			}
			p.prod.Input() <- &sarama.ProducerMessage{
				Topic: p.topic,
				Key:   sarama.StringEncoder(ev.Key),
				Value: sarama.ByteEncoder(b),
			}
		}
	}()

	go func() {
		defer close(p.errDone)
		for err := range p.prod.Errors() {
			if err != nil {
				p.logger.Warn("searchevents: producer error", "err", err)
			}
		}
	}()

	return p
}

// Publish enqueues ev; when the queue is full or the publisher is closed the
// event is dropped so the request path never blocks on Kafka.
func (p *Publisher) Publish(ev finder.Event) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		p.logger.Debug("searchevents: publisher closed, dropping event", "key", ev.Key)
		return
	}
	select {
	case p.events <- ev:
	default:
		p.logger.Debug("searchevents: queue full, dropping event", "key", ev.Key)
	}
}

// Close drains queued events and closes the producer. Events published
// afterwards are dropped.
func (p *Publisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.events)
	p.mu.Unlock()

	<-p.stopped
	var err error
	if cerr := p.prod.Close(); cerr != nil {
		err = fmt.Errorf("searchevents: close producer: %w", cerr)
	}
	<-p.errDone
	return err
}
