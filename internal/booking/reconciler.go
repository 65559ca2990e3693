package booking

import (
	"context"
	"fmt"

	"github.com/damlalper/concierge-ai-backend/internal/logging"
	"github.com/damlalper/concierge-ai-backend/internal/validation"
)

// Reconciler applies booking events to internal state. Reconcile is
// idempotent under redelivery: every write is an upsert keyed on a natural
// uniqueness constraint, so applying the same event twice leaves state
// identical to applying it once.
type Reconciler struct {
	store Store
}

// NewReconciler returns a Reconciler over the given store.
func NewReconciler(store Store) *Reconciler {
	return &Reconciler{store: store}
}

// Reconcile applies one booking event for sourceSystem and returns the
// internal booking id. Any error fails the job and lets the queue's retry
// policy take over.
func (r *Reconciler) Reconcile(ctx context.Context, ev *validation.BookingEventPayload, sourceSystem string) (string, error) {
	log := logging.Ctx(ctx)

	guestID, err := r.store.EnsureGuest(ctx, GuestInput{
		Email:     ev.Guest.Email,
		FirstName: ev.Guest.FirstName,
		LastName:  ev.Guest.LastName,
		Phone:     ev.Guest.Phone,
	})
	if err != nil {
		return "", fmt.Errorf("resolve guest: %w", err)
	}

	exists, err := r.store.HotelExists(ctx, ev.HotelID)
	if err != nil {
		return "", fmt.Errorf("resolve hotel: %w", err)
	}
	if !exists {
		return "", Terminal(fmt.Errorf("hotel not found: %s", ev.HotelID))
	}

	metadata := ev.Metadata
	if metadata == nil {
		metadata = map[string]interface{}{}
	}
	// roomType has no dedicated column; it travels in metadata.
	if ev.RoomType != "" {
		metadata["roomType"] = ev.RoomType
	}

	bookingID, err := r.store.UpsertBooking(ctx, Upsert{
		ExternalBookingID: ev.BookingID,
		SourceSystem:      sourceSystem,
		HotelID:           ev.HotelID,
		GuestID:           guestID,
		CheckIn:           ev.CheckIn,
		CheckOut:          ev.CheckOut,
		TotalAmount:       ev.TotalAmount,
		Currency:          ev.Currency,
		Status:            StatusForEvent(ev.EventType),
		Metadata:          metadata,
	})
	if err != nil {
		return "", err
	}

	log.Info().
		Str("booking_id", bookingID).
		Str("external_booking_id", ev.BookingID).
		Str("source_system", sourceSystem).
		Str("event_type", ev.EventType).
		Msg("booking reconciled")

	return bookingID, nil
}
