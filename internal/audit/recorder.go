package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/crm-electoral-api/internal/models"
)

// Store persists historial events
type Store interface {
	Insert(ctx context.Context, events []models.AuditEvent) error
}

// Outcome reports what happened to a batch of events
type Outcome struct {
	Recorded int
	Err      error
}

// Recorder stamps events with identity, actor and time and writes them.
// A failed write is logged and reported in the Outcome, never returned as an error.
type Recorder struct {
	store Store
	log   zerolog.Logger
	now   func() time.Time
}

// NewRecorder creates a recorder writing to store
func NewRecorder(store Store, log zerolog.Logger) *Recorder {
	return &Recorder{
		store: store,
		log:   log.With().Str("component", "audit").Logger(),
		now:   time.Now,
	}
}

// Record writes events attributed to actor
func (r *Recorder) Record(ctx context.Context, actor models.Actor, events ...models.AuditEvent) Outcome {
	if len(events) == 0 {
		return Outcome{}
	}

	now := r.now()
	stamped := make([]models.AuditEvent, len(events))
	for i, e := range events {
		if e.ID == "" {
			e.ID = uuid.New().String()
		}
		e.ActorName = actor.DisplayName()
		e.CreatedAt = now
		stamped[i] = e
	}

	if err := r.store.Insert(ctx, stamped); err != nil {
		r.log.Error().
			Err(err).
			Str("affiliate_id", stamped[0].AffiliateID).
			Str("action", string(stamped[0].Action)).
			Int("events", len(stamped)).
			Msg("Failed to record historial")
		return Outcome{Err: err}
	}

	return Outcome{Recorded: len(stamped)}
}
