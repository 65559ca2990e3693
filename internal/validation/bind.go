package validation

import (
	"encoding/json"
	"fmt"

	validatorv10 "github.com/go-playground/validator/v10"
)

// DecodeAndValidate unmarshals a raw webhook body into out and runs validation.
// The caller keeps the raw bytes because the signature is computed over them;
// decoding must never happen before the signature check passes.
func DecodeAndValidate(raw []byte, out interface{}, v *validatorv10.Validate) error {
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	if err := v.Struct(out); err != nil {
		return err
	}
	return nil
}

// ErrorsToMap flattens validator errors into field -> message for 400 bodies.
func ErrorsToMap(err error) map[string]string {
	out := map[string]string{}
	if ve, ok := err.(validatorv10.ValidationErrors); ok {
		for _, fe := range ve {
			out[fe.StructNamespace()] = fe.Error()
		}
	} else if err != nil {
		out["error"] = err.Error()
	}
	return out
}
