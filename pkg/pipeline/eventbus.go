package pipeline

import "sync"

// validEventTypes is the discriminated schema EventBus.Publish checks
// against before delivery (spec §4.1).
var validEventTypes = map[EventType]bool{
	EventASR:                true,
	EventTranslation:        true,
	EventCombinedSentence:   true,
	EventParagraphComplete:  true,
	EventProgressiveSummary: true,
	EventVocabulary:         true,
	EventFinalReport:        true,
	EventStatus:             true,
	EventError:              true,
}

// subscriberBuf is how many events a slow subscriber may have in flight
// before new events are dropped for it. Spec §4.1 allows no buffering
// beyond one event in flight per subscriber, so capacity is 1; delivery
// still follows the teacher's ManagedStream.events "buffered,
// drop-on-full, never block the publisher" discipline
// (managed_stream.go's emit()), just with that buffer pinned to depth 1.
const subscriberBuf = 1

type subscriber struct {
	id int
	ch chan PipelineEvent
}

// EventBus is a typed, correlation-tagged pub/sub between the pipeline
// core and external consumers (UI, persistence). Delivery is in-order
// per subscriber and never blocks the publisher.
type EventBus struct {
	mu       sync.RWMutex
	subs     []*subscriber
	nextID   int
	logger   Logger
}

// NewEventBus creates an EventBus. A nil logger defaults to NoOpLogger.
func NewEventBus(logger Logger) *EventBus {
	if logger == nil {
		logger = &NoOpLogger{}
	}
	return &EventBus{logger: logger}
}

// Subscribe registers a new consumer and returns a read-only channel of
// events plus an unsubscribe function.
func (b *EventBus) Subscribe() (<-chan PipelineEvent, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	sub := &subscriber{id: b.nextID, ch: make(chan PipelineEvent, subscriberBuf)}
	b.subs = append(b.subs, sub)

	unsubscribe := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, s := range b.subs {
			if s.id == sub.id {
				b.subs = append(b.subs[:i], b.subs[i+1:]...)
				close(sub.ch)
				return
			}
		}
	}
	return sub.ch, unsubscribe
}

// Publish validates ev.Type against the discriminated schema and
// delivers it to every subscriber without blocking. An invalid type is
// dropped and a synthetic EVENT_VALIDATION_ERROR event is published in
// its place so consumers still observe something happened.
func (b *EventBus) Publish(ev PipelineEvent) {
	if !validEventTypes[ev.Type] {
		b.logger.Warn("dropping event with unknown type", "type", ev.Type)
		b.deliver(PipelineEvent{
			Type:          EventError,
			TimestampMs:   ev.TimestampMs,
			CorrelationID: ev.CorrelationID,
			Data: ErrorData{
				Code:        ErrCodeEventValidation,
				Message:     "unrecognized event type: " + string(ev.Type),
				Recoverable: true,
			},
		})
		return
	}
	b.deliver(ev)
}

func (b *EventBus) deliver(ev PipelineEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subs {
		select {
		case sub.ch <- ev:
		default:
			b.logger.Warn("subscriber channel full, dropping event", "type", ev.Type, "subscriber", sub.id)
		}
	}
}

// SubscriberCount reports the current number of live subscribers.
func (b *EventBus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
