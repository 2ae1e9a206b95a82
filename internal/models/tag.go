package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// TagToken references a tag either by persisted ID or by name. Names are used
// for tags that may not exist yet; the backend creates them on save.
type TagToken struct {
	ID   int
	Name string
}

// TagByID returns a token referencing an existing tag.
func TagByID(id int) TagToken { return TagToken{ID: id} }

// TagByName returns a token referencing a tag by name.
func TagByName(name string) TagToken { return TagToken{Name: name} }

// IsName reports whether the token carries a name rather than an ID.
func (t TagToken) IsName() bool { return t.Name != "" }

func (t TagToken) String() string {
	if t.IsName() {
		return t.Name
	}
	return strconv.Itoa(t.ID)
}

func (t TagToken) MarshalJSON() ([]byte, error) {
	if t.IsName() {
		return json.Marshal(t.Name)
	}
	return json.Marshal(t.ID)
}

func (t *TagToken) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var name string
		if err := json.Unmarshal(data, &name); err != nil {
			return fmt.Errorf("tag token: %w", err)
		}
		*t = TagByName(name)
		return nil
	}
	var id int
	if err := json.Unmarshal(data, &id); err != nil {
		return fmt.Errorf("tag token: %w", err)
	}
	*t = TagByID(id)
	return nil
}
