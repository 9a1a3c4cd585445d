// Package salesfeed publishes committed and deleted sales to Kafka so
// back-office consumers (the receipt printer station, bookkeeping) can
// follow the terminal.
package salesfeed

import (
	"log/slog"
	"time"

	kafkax "github.com/ariefcatur/go-pos-terminal/internal/kafka"
	"github.com/ariefcatur/go-pos-terminal/internal/pos"
	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
)

// Publisher is satisfied by *kafka.Producer.
type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header) error
}

type Feed struct {
	Committed   Publisher
	Deleted     Publisher
	ServiceName string
	Logger      *slog.Logger

	now   func() time.Time
	newID func() string
}

func New(committed, deleted Publisher, serviceName string, logger *slog.Logger) *Feed {
	if logger == nil {
		logger = slog.Default()
	}
	return &Feed{
		Committed:   committed,
		Deleted:     deleted,
		ServiceName: serviceName,
		Logger:      logger,
		now:         time.Now,
		newID:       uuid.NewString,
	}
}

// Attach subscribes the feed to e and returns the cancel function.
func (f *Feed) Attach(e *pos.Engine) func() {
	return e.Subscribe(f.Handle)
}

// Handle is a pos.Listener. Publishing never blocks the engine; a message
// that cannot be queued is logged and dropped.
func (f *Feed) Handle(ev pos.Event) {
	switch {
	case ev.Kind == pos.EventSaleCommitted && ev.Sale != nil:
		f.publish(f.Committed, pos.EventTypeSaleCommitted, ev.Sale.ID, pos.SaleCommittedPayload{Sale: *ev.Sale})
	case ev.Kind == pos.EventSaleDeleted && ev.Sale != nil:
		f.publish(f.Deleted, pos.EventTypeSaleDeleted, ev.Sale.ID, pos.SaleDeletedPayload{SaleID: ev.Sale.ID})
	}
}

func (f *Feed) publish(p Publisher, eventType, saleID string, payload any) {
	if p == nil {
		return
	}
	env := pos.Envelope{
		EventID:       f.newID(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    f.now().UTC(),
		Producer:      f.ServiceName,
		CorrelationID: saleID,
		Payload:       kafkax.MustMarshal(payload),
	}
	err := p.Publish(pos.PartitionKey(saleID), kafkax.MustMarshal(env),
		kafkago.Header{Key: "x-event-type", Value: []byte(eventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
	if err != nil {
		f.Logger.Error("sales feed publish failed",
			slog.String("event_type", eventType),
			slog.String("sale_id", saleID),
			slog.String("error", err.Error()))
		return
	}
	f.Logger.Debug("sales feed published", slog.String("event_type", eventType), slog.String("sale_id", saleID))
}
