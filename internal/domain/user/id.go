package user

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/lllypuk/dwidmapper/internal/domain/errs"
)

// ID is a user identifier as it appears in a dataset. Datasets carry either
// numbers or strings; the kind is kept so rendering reproduces the source value.
type ID struct {
	value   string
	numeric bool
}

// StringID returns a string-kind identifier.
func StringID(s string) ID {
	return ID{value: s}
}

// NumericID returns a number-kind identifier from its decimal text.
func NumericID(text string) (ID, error) {
	if !isJSONNumber(text) {
		return ID{}, fmt.Errorf("%w: %q is not a number", errs.ErrInvalidInput, text)
	}
	return ID{value: text, numeric: true}, nil
}

// ParseID converts a decoded scalar into an ID.
//
//nolint:gocyclo // One branch per scalar type produced by the supported decoders.
func ParseID(raw any) (ID, error) {
	switch v := raw.(type) {
	case ID:
		return v, nil
	case string:
		return StringID(v), nil
	case json.Number:
		return NumericID(v.String())
	case int:
		return ID{value: strconv.Itoa(v), numeric: true}, nil
	case int32:
		return ID{value: strconv.FormatInt(int64(v), 10), numeric: true}, nil
	case int64:
		return ID{value: strconv.FormatInt(v, 10), numeric: true}, nil
	case uint64:
		return ID{value: strconv.FormatUint(v, 10), numeric: true}, nil
	case float64:
		return ID{value: strconv.FormatFloat(v, 'f', -1, 64), numeric: true}, nil
	case nil:
		return ID{}, fmt.Errorf("%w: user id is missing", errs.ErrInvalidInput)
	default:
		return ID{}, fmt.Errorf("%w: unsupported user id type %T", errs.ErrInvalidInput, raw)
	}
}

// String returns the identifier text without quoting.
func (id ID) String() string {
	return id.value
}

// IsNumeric reports whether the identifier was a number in the dataset.
func (id ID) IsNumeric() bool {
	return id.numeric
}

// IsZero reports whether the identifier is unset.
func (id ID) IsZero() bool {
	return id.value == "" && !id.numeric
}

// Value returns the identifier as a JSON-compatible scalar: json.Number for
// numeric ids, string otherwise.
func (id ID) Value() any {
	if id.numeric {
		return json.Number(id.value)
	}
	return id.value
}

// MarshalJSON implements json.Marshaler.
func (id ID) MarshalJSON() ([]byte, error) {
	if id.numeric {
		return []byte(id.value), nil
	}
	return json.Marshal(id.value)
}

// UnmarshalJSON implements json.Unmarshaler.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = StringID(s)
		return nil
	}

	parsed, err := NumericID(string(data))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func isJSONNumber(text string) bool {
	if text == "" {
		return false
	}
	var n json.Number
	dec := json.NewDecoder(bytes.NewReader([]byte(text)))
	dec.UseNumber()
	if err := dec.Decode(&n); err != nil {
		return false
	}
	return n.String() == text && !dec.More()
}
