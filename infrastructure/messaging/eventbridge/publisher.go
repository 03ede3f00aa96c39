package eventbridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"valuetree/domain/events"
	pkgerrors "valuetree/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"go.uber.org/zap"
)

// Source is the EventBridge source of every published event
const Source = "valuetree.api"

// EventBridge accepts at most 10 entries per PutEvents call
const batchSize = 10

// API is the subset of the EventBridge client the publisher uses
type API interface {
	PutEvents(ctx context.Context, params *eventbridge.PutEventsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error)
}

// Publisher sends domain events to an EventBridge bus
type Publisher struct {
	client       API
	eventBusName string
	logger       *zap.Logger
	maxRetries   int
	backoff      time.Duration
}

// NewPublisher creates a new EventBridge publisher
func NewPublisher(client API, eventBusName string, logger *zap.Logger) *Publisher {
	return &Publisher{
		client:       client,
		eventBusName: eventBusName,
		logger:       logger,
		maxRetries:   3,
		backoff:      100 * time.Millisecond,
	}
}

// Publish sends a single event to EventBridge
func (p *Publisher) Publish(ctx context.Context, event events.DomainEvent) error {
	return p.PublishBatch(ctx, []events.DomainEvent{event})
}

// PublishBatch sends events in chunks of batchSize
func (p *Publisher) PublishBatch(ctx context.Context, domainEvents []events.DomainEvent) error {
	for i := 0; i < len(domainEvents); i += batchSize {
		end := i + batchSize
		if end > len(domainEvents) {
			end = len(domainEvents)
		}

		if err := p.publishWithRetry(ctx, domainEvents[i:end]); err != nil {
			return err
		}
	}
	return nil
}

// errPartialFailure marks a PutEvents call where some entries were rejected
var errPartialFailure = errors.New("some events failed to publish")

// publishWithRetry sends the batch and resends only the entries EventBridge
// rejected, with exponential backoff between attempts
func (p *Publisher) publishWithRetry(ctx context.Context, batch []events.DomainEvent) error {
	pending := p.entries(batch)
	if len(pending) == 0 {
		return nil
	}
	backoff := p.backoff

	var err error
	for attempt := 0; attempt < p.maxRetries; attempt++ {
		pending, err = p.put(ctx, pending)
		if err == nil {
			p.logger.Debug("Events published to EventBridge",
				zap.Int("count", len(batch)),
				zap.String("eventBus", p.eventBusName),
			)
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if attempt < p.maxRetries-1 {
			p.logger.Warn("Retrying event publication",
				zap.Int("attempt", attempt+1),
				zap.Int("entries", len(pending)),
				zap.Error(err),
				zap.Duration("backoff", backoff),
			)

			select {
			case <-time.After(backoff):
				backoff *= 2
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	return pkgerrors.NewExternalError("eventbridge",
		fmt.Errorf("failed to publish events after %d attempts: %w", p.maxRetries, err))
}

func (p *Publisher) entries(batch []events.DomainEvent) []types.PutEventsRequestEntry {
	entries := make([]types.PutEventsRequestEntry, 0, len(batch))
	for _, event := range batch {
		detail, err := json.Marshal(event)
		if err != nil {
			p.logger.Error("Failed to marshal event",
				zap.Error(err),
				zap.String("eventType", event.GetEventType()),
			)
			continue
		}

		entries = append(entries, types.PutEventsRequestEntry{
			EventBusName: aws.String(p.eventBusName),
			Source:       aws.String(Source),
			DetailType:   aws.String(event.GetEventType()),
			Detail:       aws.String(string(detail)),
			Time:         aws.Time(event.GetTimestamp()),
			Resources:    []string{fmt.Sprintf("valuetree:project/%s", event.GetAggregateID())},
		})
	}
	return entries
}

// put sends entries once and returns the ones still to be sent. Result
// entries line up with the request; when they are missing every entry is
// kept.
func (p *Publisher) put(ctx context.Context, entries []types.PutEventsRequestEntry) ([]types.PutEventsRequestEntry, error) {
	result, err := p.client.PutEvents(ctx, &eventbridge.PutEventsInput{Entries: entries})
	if err != nil {
		return entries, fmt.Errorf("failed to publish events to EventBridge: %w", err)
	}
	if result.FailedEntryCount == 0 {
		return nil, nil
	}

	if len(result.Entries) != len(entries) {
		return entries, fmt.Errorf("%w: %d rejected", errPartialFailure, result.FailedEntryCount)
	}

	var rejected []types.PutEventsRequestEntry
	for i, entry := range result.Entries {
		if entry.ErrorCode == nil {
			continue
		}
		p.logger.Error("Failed to publish event",
			zap.String("detailType", aws.ToString(entries[i].DetailType)),
			zap.String("errorCode", aws.ToString(entry.ErrorCode)),
			zap.String("errorMessage", aws.ToString(entry.ErrorMessage)),
		)
		rejected = append(rejected, entries[i])
	}
	if len(rejected) == 0 {
		rejected = entries
	}
	return rejected, fmt.Errorf("%w: %d rejected", errPartialFailure, len(rejected))
}

// LogPublisher logs events instead of sending them. It is used when event
// publishing is disabled.
type LogPublisher struct {
	logger *zap.Logger
}

// NewLogPublisher creates a publisher that only logs
func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

// Publish logs a single event
func (p *LogPublisher) Publish(ctx context.Context, event events.DomainEvent) error {
	p.logger.Debug("Domain event",
		zap.String("eventType", event.GetEventType()),
		zap.String("projectID", event.GetAggregateID()),
		zap.Int("version", event.GetVersion()),
	)
	return nil
}

// PublishBatch logs each event
func (p *LogPublisher) PublishBatch(ctx context.Context, domainEvents []events.DomainEvent) error {
	for _, event := range domainEvents {
		_ = p.Publish(ctx, event)
	}
	return nil
}
