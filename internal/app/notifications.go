package app

import (
	"io"

	"go.uber.org/zap"

	"bikerental/internal/config"
	"bikerental/internal/notify"
)

// NewNotificationSink returns the sink notifications are delivered through.
// Every notification is logged; when RabbitMQ is enabled it is also published
// to the configured exchange. The returned closer must be closed on shutdown.
func NewNotificationSink(cfg config.RabbitMQConfig, logger *zap.Logger) (notify.Sink, io.Closer, error) {
	logSink := notify.NewLogSink(logger.Named("notify"))
	if !cfg.Enabled {
		return logSink, nopCloser{}, nil
	}

	amqpSink, err := notify.DialAMQP(cfg.URL, cfg.Exchange)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("publishing notifications to RabbitMQ", zap.String("exchange", cfg.Exchange))

	return notify.MultiSink{logSink, amqpSink}, amqpSink, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
