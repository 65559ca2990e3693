package validation

import (
	validatorv10 "github.com/go-playground/validator/v10"
)

// New returns a configured validator with custom struct-level validation registered.
func New() *validatorv10.Validate {
	v := validatorv10.New()

	// struct-level check: stay interval must be positive
	v.RegisterStructValidation(bookingEventStructValidation, BookingEventPayload{})

	return v
}

// bookingEventStructValidation rejects payloads whose check-out is not after check-in.
func bookingEventStructValidation(sl validatorv10.StructLevel) {
	ev := sl.Current().Interface().(BookingEventPayload)

	if !ev.CheckIn.IsZero() && !ev.CheckOut.IsZero() && !ev.CheckOut.After(ev.CheckIn) {
		sl.ReportError(ev.CheckOut, "checkOut", "CheckOut", "checkout_after_checkin", "")
	}
}
