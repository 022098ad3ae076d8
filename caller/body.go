package caller

import (
	"fmt"
	"reflect"

	"github.com/goccy/go-json"
)

const contentTypeJSON = "application/json"

// encodeBody returns the bytes to send for body and whether they are JSON.
// nil sends nothing, string and []byte pass through unchanged, maps, slices,
// arrays and structs are JSON-encoded.
func encodeBody(body any) ([]byte, bool, error) {
	switch b := body.(type) {
	case nil:
		return nil, false, nil
	case string:
		return []byte(b), false, nil
	case []byte:
		return b, false, nil
	case json.RawMessage:
		return b, true, nil
	}

	if !isStructured(reflect.ValueOf(body)) {
		return nil, false, fmt.Errorf("%w: %T", ErrUnsupportedPayload, body)
	}

	data, err := json.Marshal(body)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %T: %s", ErrUnsupportedPayload, body, err)
	}

	return data, true, nil
}

func isStructured(v reflect.Value) bool {
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return false
		}
		v = v.Elem()
	}

	switch v.Kind() {
	case reflect.Map, reflect.Slice, reflect.Array, reflect.Struct:
		return true
	default:
		return false
	}
}
