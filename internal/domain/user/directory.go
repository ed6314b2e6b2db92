package user

import (
	"fmt"

	"github.com/lllypuk/dwidmapper/internal/domain/errs"
)

// Directory is the immutable set of known users: a username index plus the
// records in dataset order.
type Directory struct {
	byName  map[string]Record
	ordered []Record
}

// NewDirectory builds a directory from records in dataset order.
// It fails on an empty record set and on duplicate usernames.
func NewDirectory(records []Record) (*Directory, error) {
	if len(records) == 0 {
		return nil, errs.ErrEmptyDirectory
	}

	d := &Directory{
		byName:  make(map[string]Record, len(records)),
		ordered: make([]Record, 0, len(records)),
	}

	for _, r := range records {
		if r.id.IsZero() {
			return nil, fmt.Errorf("%w: user %q has no id", errs.ErrInvalidInput, r.name)
		}
		if _, exists := d.byName[r.name]; exists {
			return nil, fmt.Errorf("%w: duplicate username %q", errs.ErrAlreadyExists, r.name)
		}
		d.byName[r.name] = r
		d.ordered = append(d.ordered, r)
	}

	return d, nil
}

// Lookup returns the record stored under name.
func (d *Directory) Lookup(name string) (Record, bool) {
	r, ok := d.byName[name]
	return r, ok
}

// At returns the i-th record in dataset order. It panics when i is out of range.
func (d *Directory) At(i int) Record {
	return d.ordered[i]
}

// Len returns the number of records.
func (d *Directory) Len() int {
	return len(d.ordered)
}

// Records returns a copy of the records in dataset order.
func (d *Directory) Records() []Record {
	out := make([]Record, len(d.ordered))
	copy(out, d.ordered)
	return out
}
