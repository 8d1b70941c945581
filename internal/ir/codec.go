package ir

import (
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

// encMode uses Core Deterministic Encoding (RFC 8949 §4.2): sorted map
// keys, smallest integer encoding, no indefinite lengths. The same logical
// value always produces the same bytes.
var encMode cbor.EncMode

// decMode decodes untyped maps as map[string]any.
var decMode cbor.DecMode

func init() {
	var err error

	encOptions := cbor.CoreDetEncOptions()
	encOptions.Time = cbor.TimeRFC3339Nano
	encMode, err = encOptions.EncMode()
	if err != nil {
		panic("ir: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("ir: CBOR decoder initialization failed: " + err.Error())
	}
}

// Encode serializes v with deterministic CBOR.
func Encode(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Decode deserializes CBOR data into v.
func Decode(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}
