package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/quantrail/nse-scanner/internal/config"
	"github.com/quantrail/nse-scanner/internal/domain"
)

// Publisher provides event publishing for the scanner pipeline.
type Publisher interface {
	// Publish publishes an event with the given routing key.
	Publish(ctx context.Context, routingKey string, event interface{}) error

	// PublishIngestionCompleted publishes an ingestion completed event.
	PublishIngestionCompleted(report *domain.IngestReport) error

	// PublishIngestionFailed publishes an ingestion failed event.
	PublishIngestionFailed(date time.Time, reason string) error

	// PublishScanCompleted publishes a scan completed event.
	PublishScanCompleted(report *domain.ScanReport) error

	// PublishSignal publishes a signal generated event.
	PublishSignal(result *domain.ScanResult) error

	// PublishCycleCompleted publishes a cycle completed event.
	PublishCycleCompleted(result *domain.CycleResult) error

	// PublishCycleFailed publishes a cycle failed event.
	PublishCycleFailed(result *domain.CycleResult) error

	// PublishSimulationReset publishes a simulation reset event.
	PublishSimulationReset(baseDate time.Time) error

	// Close closes the publisher connection.
	Close() error
}

// RabbitMQPublisher implements Publisher using RabbitMQ.
type RabbitMQPublisher struct {
	config   *config.RabbitMQConfig
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	logger   *zap.Logger

	mu           sync.RWMutex
	closed       bool
	reconnecting bool
}

// NewRabbitMQPublisher creates a new RabbitMQ publisher.
func NewRabbitMQPublisher(cfg *config.RabbitMQConfig, logger *zap.Logger) (*RabbitMQPublisher, error) {
	p := &RabbitMQPublisher{
		config:   cfg,
		exchange: cfg.Exchange,
		logger:   logger,
	}

	if err := p.connect(); err != nil {
		return nil, err
	}

	return p, nil
}

// connect establishes connection to RabbitMQ.
func (p *RabbitMQPublisher) connect() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return fmt.Errorf("publisher is closed")
	}

	var err error

	p.conn, err = amqp.Dial(p.config.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	p.channel, err = p.conn.Channel()
	if err != nil {
		p.conn.Close()
		return fmt.Errorf("failed to create channel: %w", err)
	}

	err = p.channel.ExchangeDeclare(
		p.exchange, // name
		"topic",    // type
		true,       // durable
		false,      // auto-deleted
		false,      // internal
		false,      // no-wait
		nil,        // arguments
	)
	if err != nil {
		p.channel.Close()
		p.conn.Close()
		return fmt.Errorf("failed to declare exchange: %w", err)
	}

	closeChan := make(chan *amqp.Error)
	p.conn.NotifyClose(closeChan)
	go p.handleClose(closeChan)

	p.logger.Info("Connected to RabbitMQ",
		zap.String("exchange", p.exchange),
	)

	return nil
}

// handleClose handles connection close events and triggers reconnection.
func (p *RabbitMQPublisher) handleClose(closeChan chan *amqp.Error) {
	err := <-closeChan
	if err == nil {
		return // Graceful close
	}

	p.logger.Warn("RabbitMQ connection closed", zap.Error(err))
	p.reconnect()
}

// reconnect attempts to reconnect to RabbitMQ with exponential backoff.
func (p *RabbitMQPublisher) reconnect() {
	p.mu.Lock()
	if p.closed || p.reconnecting {
		p.mu.Unlock()
		return
	}
	p.reconnecting = true
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.reconnecting = false
		p.mu.Unlock()
	}()

	reconnectDelay := 5 * time.Second
	maxReconnectWait := 30 * time.Second

	if d, err := time.ParseDuration(p.config.ReconnectDelay); err == nil {
		reconnectDelay = d
	}
	if d, err := time.ParseDuration(p.config.MaxReconnectWait); err == nil {
		maxReconnectWait = d
	}

	delay := reconnectDelay

	for {
		p.mu.RLock()
		if p.closed {
			p.mu.RUnlock()
			return
		}
		p.mu.RUnlock()

		p.logger.Info("Attempting to reconnect to RabbitMQ",
			zap.Duration("delay", delay),
		)

		time.Sleep(delay)

		if err := p.connect(); err != nil {
			p.logger.Warn("Reconnection failed",
				zap.Error(err),
				zap.Duration("next_attempt", delay*2),
			)
			delay *= 2
			if delay > maxReconnectWait {
				delay = maxReconnectWait
			}
			continue
		}

		p.logger.Info("Reconnected to RabbitMQ")
		return
	}
}

// Publish publishes an event with the given routing key.
func (p *RabbitMQPublisher) Publish(ctx context.Context, routingKey string, event interface{}) error {
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return fmt.Errorf("publisher is closed")
	}
	if p.channel == nil {
		p.mu.RUnlock()
		return fmt.Errorf("channel not available")
	}
	channel := p.channel
	p.mu.RUnlock()

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	err = channel.PublishWithContext(
		ctx,
		p.exchange, // exchange
		routingKey, // routing key
		false,      // mandatory
		false,      // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	p.logger.Debug("Published event",
		zap.String("routing_key", routingKey),
		zap.Int("body_size", len(body)),
	)

	return nil
}

func (p *RabbitMQPublisher) PublishIngestionCompleted(report *domain.IngestReport) error {
	return p.Publish(context.Background(), RoutingKeyIngestionCompleted, NewIngestionCompletedEvent(report))
}

func (p *RabbitMQPublisher) PublishIngestionFailed(date time.Time, reason string) error {
	return p.Publish(context.Background(), RoutingKeyIngestionFailed, NewIngestionFailedEvent(date, reason))
}

func (p *RabbitMQPublisher) PublishScanCompleted(report *domain.ScanReport) error {
	return p.Publish(context.Background(), RoutingKeyScanCompleted, NewScanCompletedEvent(report))
}

func (p *RabbitMQPublisher) PublishSignal(result *domain.ScanResult) error {
	return p.Publish(context.Background(), RoutingKeySignalGenerated, NewSignalGeneratedEvent(result))
}

func (p *RabbitMQPublisher) PublishCycleCompleted(result *domain.CycleResult) error {
	return p.Publish(context.Background(), RoutingKeyCycleCompleted, NewCycleCompletedEvent(result))
}

func (p *RabbitMQPublisher) PublishCycleFailed(result *domain.CycleResult) error {
	return p.Publish(context.Background(), RoutingKeyCycleFailed, NewCycleFailedEvent(result))
}

func (p *RabbitMQPublisher) PublishSimulationReset(baseDate time.Time) error {
	return p.Publish(context.Background(), RoutingKeySimulationReset, NewSimulationResetEvent(baseDate))
}

// Close closes the publisher connection.
func (p *RabbitMQPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	var errs []error

	if p.channel != nil {
		if err := p.channel.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	if p.conn != nil {
		if err := p.conn.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	p.logger.Info("RabbitMQ publisher closed")

	if len(errs) > 0 {
		return fmt.Errorf("errors closing publisher: %v", errs)
	}
	return nil
}

// NoOpPublisher is a publisher that does nothing (for testing or when events disabled).
type NoOpPublisher struct{}

// NewNoOpPublisher creates a new no-op publisher.
func NewNoOpPublisher() *NoOpPublisher {
	return &NoOpPublisher{}
}

func (p *NoOpPublisher) Publish(context.Context, string, interface{}) error        { return nil }
func (p *NoOpPublisher) PublishIngestionCompleted(*domain.IngestReport) error      { return nil }
func (p *NoOpPublisher) PublishIngestionFailed(time.Time, string) error            { return nil }
func (p *NoOpPublisher) PublishScanCompleted(*domain.ScanReport) error             { return nil }
func (p *NoOpPublisher) PublishSignal(*domain.ScanResult) error                    { return nil }
func (p *NoOpPublisher) PublishCycleCompleted(*domain.CycleResult) error           { return nil }
func (p *NoOpPublisher) PublishCycleFailed(*domain.CycleResult) error              { return nil }
func (p *NoOpPublisher) PublishSimulationReset(time.Time) error                    { return nil }
func (p *NoOpPublisher) Close() error                                              { return nil }

// Fanout publishes every event to multiple publishers. Errors are collected
// so one slow or broken sink does not hide the others.
type Fanout struct {
	sinks []Publisher
}

// NewFanout creates a fanout over the given publishers.
func NewFanout(sinks ...Publisher) *Fanout {
	return &Fanout{sinks: sinks}
}

func (f *Fanout) Publish(ctx context.Context, routingKey string, event interface{}) error {
	var errs []error
	for _, sink := range f.sinks {
		if err := sink.Publish(ctx, routingKey, event); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("fanout publish errors: %v", errs)
	}
	return nil
}

func (f *Fanout) PublishIngestionCompleted(report *domain.IngestReport) error {
	return f.Publish(context.Background(), RoutingKeyIngestionCompleted, NewIngestionCompletedEvent(report))
}

func (f *Fanout) PublishIngestionFailed(date time.Time, reason string) error {
	return f.Publish(context.Background(), RoutingKeyIngestionFailed, NewIngestionFailedEvent(date, reason))
}

func (f *Fanout) PublishScanCompleted(report *domain.ScanReport) error {
	return f.Publish(context.Background(), RoutingKeyScanCompleted, NewScanCompletedEvent(report))
}

func (f *Fanout) PublishSignal(result *domain.ScanResult) error {
	return f.Publish(context.Background(), RoutingKeySignalGenerated, NewSignalGeneratedEvent(result))
}

func (f *Fanout) PublishCycleCompleted(result *domain.CycleResult) error {
	return f.Publish(context.Background(), RoutingKeyCycleCompleted, NewCycleCompletedEvent(result))
}

func (f *Fanout) PublishCycleFailed(result *domain.CycleResult) error {
	return f.Publish(context.Background(), RoutingKeyCycleFailed, NewCycleFailedEvent(result))
}

func (f *Fanout) PublishSimulationReset(baseDate time.Time) error {
	return f.Publish(context.Background(), RoutingKeySimulationReset, NewSimulationResetEvent(baseDate))
}

func (f *Fanout) Close() error {
	var errs []error
	for _, sink := range f.sinks {
		if err := sink.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("errors closing fanout: %v", errs)
	}
	return nil
}

// Ensure interface compliance
var _ Publisher = (*RabbitMQPublisher)(nil)
var _ Publisher = (*NoOpPublisher)(nil)
var _ Publisher = (*Fanout)(nil)
