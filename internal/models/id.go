package models

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// ObjectID identifies an object in the entity store and in the edited-object
// arena. It is either a persisted ID assigned by the backend or a placeholder
// for an object that has not been saved yet.
//
// On the wire placeholders travel as non-positive integers; the sign convention
// is confined to FromWire and Wire.
type ObjectID struct {
	n     int
	isNew bool
}

// PersistedID returns the ID of an object stored by the backend. n must be positive.
func PersistedID(n int) ObjectID {
	return ObjectID{n: n}
}

// NewID returns a placeholder ID. NewID(0) is the draft of the "new object"
// page; subobjects created in a composite get NewID(1), NewID(2), ...
func NewID(n int) ObjectID {
	return ObjectID{n: n, isNew: true}
}

// FromWire converts a backend integer ID.
func FromWire(v int) ObjectID {
	if v > 0 {
		return PersistedID(v)
	}
	return NewID(-v)
}

// Wire returns the integer representation used by the backend API and the
// local draft storage keys.
func (id ObjectID) Wire() int {
	if id.isNew {
		return -id.n
	}
	return id.n
}

// IsNew reports whether id is a placeholder that has no persisted twin.
func (id ObjectID) IsNew() bool { return id.isNew }

// Seq returns the placeholder sequence number or the persisted number.
func (id ObjectID) Seq() int { return id.n }

// IsZero reports whether id is the zero value, which names no object.
func (id ObjectID) IsZero() bool { return id == ObjectID{} }

func (id ObjectID) String() string {
	if id.isNew {
		return "new:" + strconv.Itoa(id.n)
	}
	return strconv.Itoa(id.n)
}

func (id ObjectID) MarshalJSON() ([]byte, error) {
	return json.Marshal(id.Wire())
}

func (id *ObjectID) UnmarshalJSON(data []byte) error {
	var v int
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("object id: %w", err)
	}
	*id = FromWire(v)
	return nil
}

// MarshalText lets ObjectID key JSON objects, e.g. composite subobject maps.
func (id ObjectID) MarshalText() ([]byte, error) {
	return []byte(strconv.Itoa(id.Wire())), nil
}

func (id *ObjectID) UnmarshalText(text []byte) error {
	v, err := strconv.Atoi(string(text))
	if err != nil {
		return fmt.Errorf("object id %q: %w", text, err)
	}
	*id = FromWire(v)
	return nil
}

// Less orders IDs by their wire value.
func Less(a, b ObjectID) bool { return a.Wire() < b.Wire() }

// CompareIDs is a cmp-style comparator for slices.SortFunc.
func CompareIDs(a, b ObjectID) int { return a.Wire() - b.Wire() }
