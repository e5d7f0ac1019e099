package calendly

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrEnvelope indicates a response body that does not match the
// expected Calendly envelope shape.
var ErrEnvelope = errors.New("unexpected response envelope")

// Calendly wraps every response in one of two envelopes: a single
// object under "resource", or an array under "collection". The decode
// step validates the envelope explicitly so a malformed body produces
// a clear parse error instead of a zero-value struct.

// decodeResource unmarshals the "resource" member of data into v.
func decodeResource(data []byte, v any) error {
	var env struct {
		Resource json.RawMessage `json:"resource"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("%w: %v", ErrEnvelope, err)
	}
	if len(env.Resource) == 0 || string(env.Resource) == "null" {
		return fmt.Errorf(`%w: missing "resource" member`, ErrEnvelope)
	}
	if err := json.Unmarshal(env.Resource, v); err != nil {
		return fmt.Errorf("%w: decode resource: %v", ErrEnvelope, err)
	}
	return nil
}

// decodeCollection unmarshals the "collection" member of data into v,
// which must be a pointer to a slice. A JSON null collection decodes
// to an empty slice.
func decodeCollection(data []byte, v any) error {
	var env struct {
		Collection json.RawMessage `json:"collection"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("%w: %v", ErrEnvelope, err)
	}
	if len(env.Collection) == 0 {
		return fmt.Errorf(`%w: missing "collection" member`, ErrEnvelope)
	}
	if string(env.Collection) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Collection, v); err != nil {
		return fmt.Errorf("%w: decode collection: %v", ErrEnvelope, err)
	}
	return nil
}
