package rpcs

import (
	"encoding/json"
	"io"

	"github.com/pkg/errors"
)

// ErrReadLimitExceeded is returned when a body is longer than the
// limit set to read it
var ErrReadLimitExceeded = errors.New("read limit exceeded")

// Encoder writes v to a writer in a wire format
type Encoder interface {
	Encode(w io.Writer, v interface{}) error
}

// JsonEncoder encodes values as JSON documents followed by a newline
type JsonEncoder struct{}

// Encode is the implementation of Encoder for JsonEncoder
func (e JsonEncoder) Encode(w io.Writer, v interface{}) error {
	return json.NewEncoder(w).Encode(v)
}

// ReadLimitProps bound the number of bytes read from a reader
type ReadLimitProps struct {
	// Limit is the maximum number of bytes to read
	Limit int64

	// FailOnExceed makes the read fail when the reader has more
	// than Limit bytes. Otherwise the input is truncated
	FailOnExceed bool
}

// JsonDecoder decodes JSON documents into Go values
type JsonDecoder struct{}

// Decode reads a single JSON document from r into v
func (d JsonDecoder) Decode(r io.Reader, v interface{}) error {
	return json.NewDecoder(r).Decode(v)
}

// DecodeWithLimit reads a single JSON document of at most
// props.Limit bytes from r into v
func (d JsonDecoder) DecodeWithLimit(r io.Reader, v interface{}, props ReadLimitProps) error {
	if props.Limit <= 0 {
		return errors.Wrapf(ErrReadLimitExceeded, "limit %d", props.Limit)
	}

	data, err := io.ReadAll(io.LimitReader(r, props.Limit+1))
	if err != nil {
		return errors.Wrap(err, "failed to read body")
	}

	if int64(len(data)) > props.Limit {
		if props.FailOnExceed {
			return errors.Wrapf(ErrReadLimitExceeded, "body longer than %d bytes", props.Limit)
		}
		data = data[:props.Limit]
	}

	if err := json.Unmarshal(data, v); err != nil {
		return errors.Wrap(err, "failed to decode json")
	}
	return nil
}
