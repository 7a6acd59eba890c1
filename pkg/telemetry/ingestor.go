package telemetry

import (
	"context"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/sage/pkg/errors"
	"github.com/Ramsey-B/sage/pkg/kafka"
	"github.com/Ramsey-B/sage/pkg/metrics"
)

// Ingestor subscribes to the scale reading topic and feeds the snapshot
// cache. Malformed readings are logged and dropped; a broker transport
// failure stops the loop entirely.
type Ingestor struct {
	consumer *kafka.Consumer
	service  *Service
	logger   ectologger.Logger
}

func NewIngestor(consumer *kafka.Consumer, service *Service, logger ectologger.Logger) *Ingestor {
	return &Ingestor{
		consumer: consumer,
		service:  service,
		logger:   logger,
	}
}

func (i *Ingestor) GetName() string {
	return "telemetry-ingestor"
}

func (i *Ingestor) DependsOn() []string {
	return []string{}
}

func (i *Ingestor) Start(ctx context.Context) error {
	if err := i.consumer.Start(ctx, i.handle); err != nil {
		return err
	}

	go func() {
		<-i.consumer.Done()
		if err := i.consumer.Err(); err != nil {
			i.logger.WithError(err).Error("Telemetry ingestion stopped on transport failure")
		}
	}()

	return nil
}

func (i *Ingestor) Stop(ctx context.Context) error {
	return i.consumer.Stop()
}

func (i *Ingestor) handle(ctx context.Context, msg *kafka.ScaleMessage) error {
	snapshot, err := i.service.IngestReading(ctx, msg.Scale, msg.Value)
	if err != nil {
		if errors.IsValidation(err) {
			i.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
				"topic":   msg.Topic,
				"offset":  msg.Offset,
				"payload": string(msg.Value),
			}).Warn("Dropping unusable scale reading")
			metrics.ReadingsIngestedTotal.WithLabelValues("dropped").Inc()
			return nil
		}
		return err
	}

	i.logger.WithContext(ctx).WithFields(map[string]any{
		"scale":  snapshot.Scale,
		"weight": snapshot.Weight,
	}).Debugf("Cached reading for scale %s", snapshot.Scale)
	return nil
}
