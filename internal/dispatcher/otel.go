package dispatcher

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/opendungeons/keeper/internal/dispatcher"

// instruments holds the per-command event counters.
type instruments struct {
	processed metric.Int64Counter
	dropped   metric.Int64Counter
}

func newInstruments(depths func(observe func(command string, depth int))) (*instruments, error) {
	m := otel.Meter(instrumentationName)

	queueSize, err := m.Int64ObservableGauge("dispatcher.queue.size",
		metric.WithDescription("Current number of events in queue"))
	if err != nil {
		return nil, fmt.Errorf("creating queue size gauge: %w", err)
	}
	_, err = m.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		depths(func(command string, depth int) {
			o.ObserveInt64(queueSize, int64(depth), metric.WithAttributes(attribute.String("command", command)))
		})
		return nil
	}, queueSize)
	if err != nil {
		return nil, fmt.Errorf("registering queue callback: %w", err)
	}

	in := &instruments{}
	if in.processed, err = m.Int64Counter("dispatcher.events.processed",
		metric.WithDescription("Total events processed")); err != nil {
		return nil, fmt.Errorf("creating processed counter: %w", err)
	}
	if in.dropped, err = m.Int64Counter("dispatcher.events.dropped",
		metric.WithDescription("Total events dropped due to full queue")); err != nil {
		return nil, fmt.Errorf("creating dropped counter: %w", err)
	}
	return in, nil
}

func (in *instruments) process(command string) {
	in.processed.Add(context.Background(), 1, metric.WithAttributes(attribute.String("command", command)))
}

func (in *instruments) drop(command string) {
	in.dropped.Add(context.Background(), 1, metric.WithAttributes(attribute.String("command", command)))
}
