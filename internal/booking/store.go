// Package booking reconciles external reservation events into durable
// Guest/Hotel/Booking state.
package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is the subset of pgxpool.Pool the store needs.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store is the persistence seam the reconciler works against.
type Store interface {
	// EnsureGuest returns the id of the guest with the given email,
	// creating the row on first sighting.
	EnsureGuest(ctx context.Context, g GuestInput) (string, error)

	// HotelExists reports whether the referenced hotel id exists.
	HotelExists(ctx context.Context, hotelID string) (bool, error)

	// UpsertBooking inserts or overwrites the booking identified by
	// (ExternalBookingID, SourceSystem) and returns the internal booking id.
	UpsertBooking(ctx context.Context, b Upsert) (string, error)
}

// PgStore implements Store on Postgres.
type PgStore struct {
	db Querier
}

// NewPgStore returns a Store backed by the given querier.
func NewPgStore(db Querier) *PgStore {
	return &PgStore{db: db}
}

// EnsureGuest inserts the guest if the email is unseen, otherwise returns
// the existing row. Concurrent first-sightings of the same email race on
// the uniqueness constraint; the loser falls through to the re-read instead
// of surfacing a constraint violation.
func (s *PgStore) EnsureGuest(ctx context.Context, g GuestInput) (string, error) {
	var id string
	err := s.db.QueryRow(ctx, `
		INSERT INTO guests (email, first_name, last_name, phone)
		VALUES ($1, $2, $3, NULLIF($4, ''))
		ON CONFLICT (email) DO NOTHING
		RETURNING id
	`, g.Email, g.FirstName, g.LastName, g.Phone).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("insert guest: %w", err)
	}

	// Conflict: the guest already exists (possibly created a moment ago by
	// a concurrent worker). Exact, case-sensitive email match.
	err = s.db.QueryRow(ctx, `
		SELECT id FROM guests WHERE email = $1
	`, g.Email).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("read existing guest: %w", err)
	}
	return id, nil
}

// HotelExists checks the hotels reference table. This pipeline never creates
// hotels.
func (s *PgStore) HotelExists(ctx context.Context, hotelID string) (bool, error) {
	var one int
	err := s.db.QueryRow(ctx, `
		SELECT 1 FROM hotels WHERE id = $1
	`, hotelID).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check hotel: %w", err)
	}
	return true, nil
}

// UpsertBooking persists the event as a single atomic statement. Existing
// rows are overwritten field by field (last-write-wins); there is no
// version check, so out-of-order events for the same booking leave the
// state of whichever commit landed last.
func (s *PgStore) UpsertBooking(ctx context.Context, b Upsert) (string, error) {
	metadata, err := json.Marshal(b.Metadata)
	if err != nil {
		return "", fmt.Errorf("marshal booking metadata: %w", err)
	}

	var id string
	err = s.db.QueryRow(ctx, `
		INSERT INTO bookings (
			external_booking_id, source_system, hotel_id, guest_id,
			check_in, check_out, total_amount, currency, status, metadata
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (external_booking_id, source_system) DO UPDATE SET
			check_in     = EXCLUDED.check_in,
			check_out    = EXCLUDED.check_out,
			total_amount = EXCLUDED.total_amount,
			currency     = EXCLUDED.currency,
			status       = EXCLUDED.status,
			metadata     = EXCLUDED.metadata,
			updated_at   = now()
		RETURNING id
	`, b.ExternalBookingID, b.SourceSystem, b.HotelID, b.GuestID,
		b.CheckIn, b.CheckOut, b.TotalAmount, b.Currency, b.Status, metadata).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("upsert booking: %w", err)
	}
	return id, nil
}
