package dataset

import (
	"cmp"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/lllypuk/dwidmapper/internal/domain/errs"
	"github.com/lllypuk/dwidmapper/internal/domain/user"
)

// KeyOrder decides the order of records decoded from a keyed (object) dataset.
type KeyOrder string

// Key orders.
const (
	// KeyOrderDocument keeps the order in which keys appear in the file.
	KeyOrderDocument KeyOrder = "document"

	// KeyOrderECMAScript puts array-index keys ("0", "17", ...) first in
	// ascending numeric order, then the remaining keys in document order.
	// This is the property order a JavaScript object iterates in.
	KeyOrderECMAScript KeyOrder = "ecmascript"
)

// maxArrayIndex is the largest ECMAScript array index (2^32 - 2).
const maxArrayIndex = 1<<32 - 2

// ParseKeyOrder converts a config value into a KeyOrder. Empty selects document order.
func ParseKeyOrder(s string) (KeyOrder, error) {
	switch KeyOrder(strings.ToLower(s)) {
	case "", KeyOrderDocument:
		return KeyOrderDocument, nil
	case KeyOrderECMAScript:
		return KeyOrderECMAScript, nil
	default:
		return "", fmt.Errorf("%w: key order %q", errs.ErrInvalidInput, s)
	}
}

// keyedRecord is a record together with the key it was stored under.
type keyedRecord struct {
	key    string
	record user.Record
}

// arrayIndex reports whether key is a canonical array index and returns its value.
func arrayIndex(key string) (uint64, bool) {
	if key == "" || (len(key) > 1 && key[0] == '0') {
		return 0, false
	}
	n, err := strconv.ParseUint(key, 10, 64)
	if err != nil || n > maxArrayIndex {
		return 0, false
	}
	return n, true
}

// sortKeyed reorders entries according to order and returns the bare records.
func sortKeyed(entries []keyedRecord, order KeyOrder) []user.Record {
	if order == KeyOrderECMAScript {
		slices.SortStableFunc(entries, func(a, b keyedRecord) int {
			ai, aok := arrayIndex(a.key)
			bi, bok := arrayIndex(b.key)
			switch {
			case aok && bok:
				return cmp.Compare(ai, bi)
			case aok:
				return -1
			case bok:
				return 1
			default:
				return 0
			}
		})
	}

	records := make([]user.Record, len(entries))
	for i, e := range entries {
		records[i] = e.record
	}
	return records
}
