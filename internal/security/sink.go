package security

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
	kafka "github.com/segmentio/kafka-go"

	"gemdrop/internal/config"
	"gemdrop/internal/session"
	"gemdrop/internal/store"
)

// Sink receives suspicious-session flags. Every event lands in the
// security_events table; when kafka brokers are configured the event is
// also published for downstream review tooling.
type Sink struct {
	store  *store.Store
	writer *kafka.Writer
}

func New(cfg config.ServerConfig, st *store.Store) *Sink {
	s := &Sink{store: st}
	if len(cfg.KafkaBrokers) > 0 {
		// Writers are safe for concurrent use.
		s.writer = &kafka.Writer{
			Addr:         kafka.TCP(cfg.KafkaBrokers...),
			Topic:        cfg.KafkaSecurityTopic,
			RequiredAcks: kafka.RequireOne,
			Balancer:     &kafka.LeastBytes{},
			BatchTimeout: 50 * time.Millisecond,
		}
		log.Info().Strs("brokers", cfg.KafkaBrokers).Str("topic", cfg.KafkaSecurityTopic).Msg("security kafka publisher enabled")
	}
	return s
}

func (s *Sink) PublishFlag(ctx context.Context, ev session.SecurityEvent) error {
	log.Warn().
		Str("session_id", ev.SessionID).
		Str("player_id", ev.PlayerID).
		Str("kind", ev.Kind).
		Str("detail", ev.Detail).
		Msg("security flag")

	if err := s.store.AppendSecurityEvent(ctx, ev); err != nil {
		return err
	}
	if s.writer == nil {
		return nil
	}
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	wctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.writer.WriteMessages(wctx, kafka.Message{Key: []byte(ev.SessionID), Value: b})
}

func (s *Sink) Close() error {
	if s.writer != nil {
		return s.writer.Close()
	}
	return nil
}
