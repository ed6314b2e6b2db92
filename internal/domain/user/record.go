// Package user holds the user directory: records loaded once at startup and
// never mutated afterwards.
package user

import (
	"encoding/json"
	"fmt"

	"github.com/lllypuk/dwidmapper/internal/domain/errs"
)

// Record is one known user of the directory.
type Record struct {
	id   ID
	name string
}

// NewRecord creates a record. The username may be any string, including the
// empty one; only the identifier is required.
func NewRecord(id ID, name string) (Record, error) {
	if id.IsZero() {
		return Record{}, fmt.Errorf("%w: user %q has no id", errs.ErrInvalidInput, name)
	}
	return Record{id: id, name: name}, nil
}

// ID returns the user identifier.
func (r Record) ID() ID {
	return r.id
}

// Name returns the username.
func (r Record) Name() string {
	return r.name
}

// recordJSON is the dataset representation of a record.
type recordJSON struct {
	UserID   *ID     `json:"userID"`
	UserName *string `json:"userName"`
}

// MarshalJSON implements json.Marshaler using the dataset field names.
func (r Record) MarshalJSON() ([]byte, error) {
	name := r.name
	id := r.id
	return json.Marshal(recordJSON{UserID: &id, UserName: &name})
}

// DecodeRecordJSON decodes a dataset record. key is the map key the record was
// stored under and is used as the username when the record omits one.
func DecodeRecordJSON(data []byte, key string) (Record, error) {
	var raw recordJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return Record{}, fmt.Errorf("decode user %q: %w", key, err)
	}
	if raw.UserID == nil {
		return Record{}, fmt.Errorf("%w: user %q has no userID", errs.ErrInvalidInput, key)
	}

	name := key
	if raw.UserName != nil {
		name = *raw.UserName
	}
	return NewRecord(*raw.UserID, name)
}
