package booking

import (
	"time"

	"github.com/damlalper/concierge-ai-backend/internal/validation"
)

// Booking statuses.
const (
	StatusConfirmed  = "confirmed"
	StatusCancelled  = "cancelled"
	StatusCheckedIn  = "checked_in"
	StatusCheckedOut = "checked_out"
)

// StatusForEvent maps an external event type to an internal booking status.
// The mapping is total: unrecognized event types default to confirmed
// rather than erroring.
func StatusForEvent(eventType string) string {
	switch eventType {
	case validation.EventBookingCreated:
		return StatusConfirmed
	case validation.EventBookingUpdated:
		return StatusConfirmed
	case validation.EventBookingCancelled:
		return StatusCancelled
	default:
		return StatusConfirmed
	}
}

// GuestInput is what reconciliation knows about a guest from the payload.
type GuestInput struct {
	Email     string
	FirstName string
	LastName  string
	Phone     string
}

// Upsert is the full set of booking fields written per event. Updates are
// last-write-wins over the (ExternalBookingID, SourceSystem) natural key.
type Upsert struct {
	ExternalBookingID string
	SourceSystem      string
	HotelID           string
	GuestID           string
	CheckIn           time.Time
	CheckOut          time.Time
	TotalAmount       float64
	Currency          string
	Status            string
	Metadata          map[string]interface{}
}
