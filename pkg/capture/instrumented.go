package capture

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/mockbus/pubsub-capture/pkg/errors"
	"github.com/mockbus/pubsub-capture/pkg/logger"
)

// InstrumentedStore wraps an Interface with an OTel span per call and a
// debug-level log line on error paths only, in the teacher's
// InstrumentedBroker/InstrumentedCache idiom. It never changes a return
// value, only observes it. This is the only thing between the protocol
// adapter and the bare store.
type InstrumentedStore struct {
	next   Interface
	tracer trace.Tracer
}

// NewInstrumentedStore wraps next for tracing and logging.
func NewInstrumentedStore(next Interface) *InstrumentedStore {
	return &InstrumentedStore{next: next, tracer: otel.Tracer("pkg/capture")}
}

func (s *InstrumentedStore) Add(ctx context.Context, record Record) error {
	_, span := s.tracer.Start(ctx, "capture.Add", trace.WithAttributes(
		attribute.String("capture.topic", record.Topic),
		attribute.String("capture.id", record.ID),
	))
	defer span.End()

	err := s.next.Add(record)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.L().DebugContext(ctx, "capture add failed", "topic", record.Topic, "id", record.ID, "code", errors.CodeOf(err))
		return err
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

func (s *InstrumentedStore) GetAll(ctx context.Context) []Record {
	_, span := s.tracer.Start(ctx, "capture.GetAll")
	defer span.End()
	return s.next.GetAll()
}

func (s *InstrumentedStore) GetByTopic(ctx context.Context, topic string) ([]Record, error) {
	_, span := s.tracer.Start(ctx, "capture.GetByTopic", trace.WithAttributes(attribute.String("capture.topic", topic)))
	defer span.End()

	records, err := s.next.GetByTopic(topic)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.L().DebugContext(ctx, "capture get_by_topic failed", "topic", topic, "code", errors.CodeOf(err))
	}
	return records, err
}

func (s *InstrumentedStore) GetByTimeRange(ctx context.Context, start, end time.Time) []Record {
	_, span := s.tracer.Start(ctx, "capture.GetByTimeRange")
	defer span.End()
	return s.next.GetByTimeRange(start, end)
}

func (s *InstrumentedStore) GetByID(ctx context.Context, id string) (Record, error) {
	_, span := s.tracer.Start(ctx, "capture.GetByID", trace.WithAttributes(attribute.String("capture.id", id)))
	defer span.End()

	record, err := s.next.GetByID(id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.L().DebugContext(ctx, "capture get_by_id failed", "id", id, "code", errors.CodeOf(err))
	}
	return record, err
}

func (s *InstrumentedStore) Clear(ctx context.Context) {
	_, span := s.tracer.Start(ctx, "capture.Clear")
	defer span.End()
	s.next.Clear()
}

func (s *InstrumentedStore) Count() int {
	return s.next.Count()
}

func (s *InstrumentedStore) Capacity() int {
	return s.next.Capacity()
}
