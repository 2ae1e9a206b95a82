package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromWire(t *testing.T) {
	assert.Equal(t, PersistedID(5), FromWire(5))
	assert.Equal(t, NewID(0), FromWire(0))
	assert.Equal(t, NewID(3), FromWire(-3))

	assert.True(t, FromWire(0).IsNew())
	assert.False(t, FromWire(1).IsNew())
	assert.Equal(t, -3, NewID(3).Wire())
}

func TestObjectIDAsMapKey(t *testing.T) {
	data := CompositeData{
		Subobjects: map[ObjectID]SubobjectEntry{
			NewID(1):       NewSubobjectEntry(0, 0),
			PersistedID(7): NewSubobjectEntry(1, 0),
		},
		DisplayMode: DisplayModeBasic,
	}

	raw, err := json.Marshal(data)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"-1":`)
	assert.Contains(t, string(raw), `"7":`)

	var decoded CompositeData
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, data, decoded)
}

func TestTagTokenJSON(t *testing.T) {
	tokens := []TagToken{TagByID(3), TagByName("go")}
	raw, err := json.Marshal(tokens)
	require.NoError(t, err)
	assert.JSONEq(t, `[3, "go"]`, string(raw))

	var decoded []TagToken
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, tokens, decoded)
}

func TestEditedObjectClone(t *testing.T) {
	orig := DefaultEditedObject(NewID(1))
	orig.Composite.Subobjects[PersistedID(2)] = NewSubobjectEntry(0, 0)

	cp := orig.Clone()
	cp.Composite.Subobjects[PersistedID(3)] = NewSubobjectEntry(1, 0)
	cp.AddedTags = append(cp.AddedTags, TagByName("x"))

	assert.Len(t, orig.Composite.Subobjects, 1)
	assert.Empty(t, orig.AddedTags)
	assert.Equal(t, NewID(1), cp.ObjectID)
}
