package remote

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// Codec turns the context value into a request body and a response body back into a value.
type Codec[C any] interface {
	Encode(in C) ([]byte, error)
	Decode(in C, body []byte) (C, error)
}

// JSONCodec sends the value as JSON and decodes the response as a new value.
type JSONCodec[C any] struct{}

func (JSONCodec[C]) Encode(in C) ([]byte, error) {
	body, err := json.Marshal(in)
	if err != nil {
		return nil, errors.Wrap(err, "unable to encode json")
	}

	return body, nil
}

func (JSONCodec[C]) Decode(_ C, body []byte) (C, error) {
	var out C

	err := json.Unmarshal(body, &out)
	if err != nil {
		return out, errors.Wrap(err, "unable to decode json")
	}

	return out, nil
}

// StringCodec sends the string as is and returns the raw response.
type StringCodec struct{}

func (StringCodec) Encode(in string) ([]byte, error) {
	return []byte(in), nil
}

func (StringCodec) Decode(_ string, body []byte) (string, error) {
	return string(body), nil
}

var (
	_ Codec[map[string]any] = JSONCodec[map[string]any]{}
	_ Codec[string]         = StringCodec{}
)
