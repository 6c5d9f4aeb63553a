package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/crash-mapper/internal/config"
	"github.com/couchcryptid/crash-mapper/internal/domain"
)

// Writer produces classified crash records to a Kafka topic.
// It implements pipeline.Publisher.
type Writer struct {
	writer messageWriter
	logger *slog.Logger
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// NewWriter creates a Kafka producer for the configured crash topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// CrashMessage is the JSON value of each produced message.
type CrashMessage struct {
	UploadID string `json:"upload_id"`
	domain.ClassifiedRecord
}

// Publish writes one message per record in a single WriteMessages call.
func (w *Writer) Publish(ctx context.Context, uploadID string, records []domain.ClassifiedRecord) error {
	if len(records) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(records))
	for i := range records {
		msg, err := serializeToMessage(uploadID, records[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write %d crash records: %w", len(msgs), err)
	}
	w.logger.Debug("crash records published", "upload_id", uploadID, "count", len(msgs))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a classified record into a Kafka message keyed
// by record ID.
func serializeToMessage(uploadID string, rec domain.ClassifiedRecord) (kafkago.Message, error) {
	data, err := json.Marshal(CrashMessage{UploadID: uploadID, ClassifiedRecord: rec})
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize crash record %s: %w", rec.ID, err)
	}
	return kafkago.Message{
		Key:   []byte(rec.ID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "upload_id", Value: []byte(uploadID)},
			{Key: "severity", Value: []byte(rec.Severity)},
			{Key: "direction_bucket", Value: []byte(rec.Bucket)},
		},
	}, nil
}
