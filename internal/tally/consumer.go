package tally

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"geoattend/internal/attendance"
	"geoattend/internal/metrics"
	"geoattend/internal/queue"
)

// Consumer applies queue events to a Counter.
type Consumer struct {
	counter Counter
}

// NewConsumer creates a Consumer.
func NewConsumer(counter Counter) *Consumer {
	return &Consumer{counter: counter}
}

// Handle applies a single message. Unknown message types are skipped.
func (c *Consumer) Handle(ctx context.Context, msg queue.Message) error {
	if msg.Type != attendance.EventMarked {
		metrics.EventsProcessed.WithLabelValues("skipped").Inc()
		return nil
	}

	evt, err := attendance.DecodeMarkedEvent(msg.Body)
	if err != nil {
		metrics.EventsProcessed.WithLabelValues("malformed").Inc()
		return fmt.Errorf("decode %s: %w", msg.Type, err)
	}
	day, err := time.Parse(time.DateOnly, evt.LectureDate)
	if err != nil {
		metrics.EventsProcessed.WithLabelValues("malformed").Inc()
		return fmt.Errorf("lecture date %q: %w", evt.LectureDate, err)
	}

	n, err := c.counter.Incr(ctx, evt.CourseCode, day)
	if err != nil {
		metrics.EventsProcessed.WithLabelValues("failed").Inc()
		return err
	}
	metrics.EventsProcessed.WithLabelValues("tallied").Inc()

	zerolog.Ctx(ctx).Debug().
		Str("record_id", evt.RecordID).
		Str("course", evt.CourseCode).
		Str("lecture_date", evt.LectureDate).
		Int64("count", n).
		Msg("attendance tallied")
	return nil
}

// Run drains msgs until the channel closes, logging failed messages.
func (c *Consumer) Run(ctx context.Context, msgs <-chan queue.Message) {
	for msg := range msgs {
		if err := c.Handle(ctx, msg); err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Str("type", msg.Type).Msg("event handling failed")
		}
	}
}
