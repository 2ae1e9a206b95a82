package drafts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gsoldatov/site-frontend/editor-mcp/internal/entities"
	"github.com/gsoldatov/site-frontend/editor-mcp/internal/models"
)

func newToDoListModel(t *testing.T) (*Model, models.ObjectID) {
	t.Helper()
	m := New(entities.New())
	id := models.NewID(0)
	m.Reset(id)
	require.NoError(t, m.Update(id, Patch{ObjectType: ptr(models.ObjectTypeToDoList)}))
	return m, id
}

func TestToDoListAddAndDelete(t *testing.T) {
	m, id := newToDoListModel(t)

	for _, cmd := range []ToDoListCommand{
		AddItem{ItemNumber: 10, Position: -1, Item: models.ToDoListItem{ItemText: "first"}},
		AddItem{ItemNumber: 11, Position: -1, Item: models.ToDoListItem{ItemText: "child", Indent: 1}},
		AddItem{ItemNumber: 12, Position: -1, Item: models.ToDoListItem{ItemText: "grandchild", Indent: 9}},
		AddItem{ItemNumber: 13, Position: -1, Item: models.ToDoListItem{ItemText: "second"}},
		AddItem{ItemNumber: 14, Position: 0, Item: models.ToDoListItem{ItemText: "zeroth"}},
	} {
		require.NoError(t, m.UpdateToDoList(id, cmd))
	}

	obj, _ := m.Get(id)
	assert.Equal(t, []int{14, 10, 11, 12, 13}, obj.ToDoList.ItemOrder)
	assert.Equal(t, models.ItemStateActive, obj.ToDoList.Items[10].ItemState)
	assert.Equal(t, MaxIndent, obj.ToDoList.Items[12].Indent)

	err := m.UpdateToDoList(id, AddItem{ItemNumber: 10})
	assert.ErrorIs(t, err, ErrDuplicateItemNumber)

	require.NoError(t, m.UpdateToDoList(id, DeleteItem{ItemNumber: 10, DeleteChildren: true}))
	obj, _ = m.Get(id)
	assert.Equal(t, []int{14, 13}, obj.ToDoList.ItemOrder)
	assert.NotContains(t, obj.ToDoList.Items, 11)
	assert.NotContains(t, obj.ToDoList.Items, 12)
	assert.Equal(t, "second", obj.ToDoList.Items[13].ItemText, "other items keep their identity")
}

func TestToDoListUpdateAndMove(t *testing.T) {
	m, id := newToDoListModel(t)
	require.NoError(t, m.UpdateToDoList(id, AddItem{ItemNumber: 0, Position: -1, Item: models.ToDoListItem{ItemText: "a"}}))
	require.NoError(t, m.UpdateToDoList(id, AddItem{ItemNumber: 1, Position: -1, Item: models.ToDoListItem{ItemText: "b"}}))

	require.NoError(t, m.UpdateToDoList(id, UpdateItem{
		ItemNumber: 1,
		ItemState:  ptr(models.ItemStateCompleted),
		Commentary: ptr("done"),
	}))
	require.NoError(t, m.UpdateToDoList(id, MoveItem{ItemNumber: 1, Position: 0}))
	require.NoError(t, m.UpdateToDoList(id, SetSortType{SortType: models.SortTypeState}))

	obj, _ := m.Get(id)
	assert.Equal(t, []int{1, 0}, obj.ToDoList.ItemOrder)
	assert.Equal(t, "b", obj.ToDoList.Items[1].ItemText)
	assert.Equal(t, models.ItemStateCompleted, obj.ToDoList.Items[1].ItemState)
	assert.Equal(t, models.SortTypeState, obj.ToDoList.SortType)
	assert.Equal(t, 2, NextItemNumber(obj.ToDoList))

	// Missing items are ignored.
	assert.NoError(t, m.UpdateToDoList(id, UpdateItem{ItemNumber: 99, ItemText: ptr("x")}))
	assert.NoError(t, m.UpdateToDoList(id, DeleteItem{ItemNumber: 99}))
	assert.Error(t, m.UpdateToDoList(id, SetSortType{SortType: "random"}))
}
