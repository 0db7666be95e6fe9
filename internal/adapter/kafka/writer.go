package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/gedi-canopy-etl/internal/config"
	"github.com/couchcryptid/gedi-canopy-etl/internal/domain"
)

// Writer produces canopy records to a Kafka topic.
// It implements pipeline.BatchLoader.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured sink topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Topic:                  cfg.KafkaSinkTopic,
		Balancer:               &kafkago.LeastBytes{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &Writer{writer: w, logger: logger}
}

// LoadBatch serializes and publishes a batch of canopy records in a single
// WriteMessages call.
func (w *Writer) LoadBatch(ctx context.Context, records []domain.CanopyRecord) error {
	if len(records) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(records))
	for i := range records {
		msg, err := serializeToMessage(records[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish %d canopy records: %w", len(msgs), err)
	}
	w.logger.Debug("canopy records published", "topic", w.writer.Topic, "count", len(msgs))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// canopyMessage is the wire form of a CanopyRecord. Absent values are null.
type canopyMessage struct {
	Latitude     *float64 `json:"latitude"`
	Longitude    *float64 `json:"longitude"`
	Biomass      *float64 `json:"biomass"`
	CanopyHeight float64  `json:"canopy_height"`
	RH98         float64  `json:"rh98"`
	RH75         float64  `json:"rh75"`
	RH50         float64  `json:"rh50"`
	RH25         float64  `json:"rh25"`
	ProcessedAt  string   `json:"processed_at"`
}

func nullable(v float64) *float64 {
	if math.IsNaN(v) {
		return nil
	}
	return &v
}

// serializeToMessage marshals a CanopyRecord into a Kafka message keyed by
// its coordinates.
func serializeToMessage(rec domain.CanopyRecord) (kafkago.Message, error) {
	processedAt := rec.ProcessedAt.UTC().Format(time.RFC3339)
	data, err := json.Marshal(canopyMessage{
		Latitude:     nullable(rec.Latitude),
		Longitude:    nullable(rec.Longitude),
		Biomass:      nullable(rec.Biomass),
		CanopyHeight: rec.CanopyHeight,
		RH98:         rec.RH98,
		RH75:         rec.RH75,
		RH50:         rec.RH50,
		RH25:         rec.RH25,
		ProcessedAt:  processedAt,
	})
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize canopy record: %w", err)
	}
	key := strconv.FormatFloat(rec.Latitude, 'f', 6, 64) + "," + strconv.FormatFloat(rec.Longitude, 'f', 6, 64)
	return kafkago.Message{
		Key:   []byte(key),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "valid_biomass", Value: []byte(strconv.FormatBool(rec.HasValidBiomass()))},
			{Key: "processed_at", Value: []byte(processedAt)},
		},
	}, nil
}
