package validation

import "time"

// Event types pushed by reservation platforms.
const (
	EventBookingCreated   = "booking.created"
	EventBookingUpdated   = "booking.updated"
	EventBookingCancelled = "booking.cancelled"
)

// GuestPayload is the guest block inside a booking webhook.
type GuestPayload struct {
	FirstName string `json:"firstName" validate:"required"`
	LastName  string `json:"lastName" validate:"required"`
	Email     string `json:"email" validate:"required,email"`
	Phone     string `json:"phone,omitempty"` // optional
}

// BookingEventPayload is the body of POST /webhook/booking.
// CheckIn/CheckOut are ISO-8601 timestamps.
type BookingEventPayload struct {
	EventType   string                 `json:"eventType" validate:"required,oneof=booking.created booking.updated booking.cancelled"`
	BookingID   string                 `json:"bookingId" validate:"required"`
	HotelID     string                 `json:"hotelId" validate:"required"`
	Guest       GuestPayload           `json:"guest" validate:"required"`
	CheckIn     time.Time              `json:"checkIn" validate:"required"`
	CheckOut    time.Time              `json:"checkOut" validate:"required"`
	RoomType    string                 `json:"roomType" validate:"required"`
	TotalAmount float64                `json:"totalAmount" validate:"required,gt=0"`
	Currency    string                 `json:"currency" validate:"required,len=3"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"` // free-form passthrough
}
