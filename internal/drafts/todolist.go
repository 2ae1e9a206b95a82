package drafts

import (
	"errors"
	"fmt"
	"slices"

	"github.com/gsoldatov/site-frontend/editor-mcp/internal/models"
)

// MaxIndent is the deepest nesting level of a to-do list item.
const MaxIndent = 5

var (
	ErrUnknownToDoListCommand = errors.New("unknown to-do list command")
	ErrDuplicateItemNumber    = errors.New("item number is already used")
)

// ToDoListCommand is a structural change of a to-do list. The set of commands
// is closed: AddItem, UpdateItem, DeleteItem, MoveItem and SetSortType.
type ToDoListCommand interface {
	toDoListCommand()
}

// AddItem inserts Item under ItemNumber at Position in the display order.
// A negative Position or one past the end appends.
type AddItem struct {
	ItemNumber int
	Position   int
	Item       models.ToDoListItem
}

// UpdateItem changes the non-nil fields of an item.
type UpdateItem struct {
	ItemNumber int
	ItemState  *models.ToDoListItemState
	ItemText   *string
	Commentary *string
	Indent     *int
	IsExpanded *bool
}

// DeleteItem removes an item and, if DeleteChildren is set, the items
// indented below it.
type DeleteItem struct {
	ItemNumber     int
	DeleteChildren bool
}

// MoveItem moves an item to Position in the display order.
type MoveItem struct {
	ItemNumber int
	Position   int
}

// SetSortType changes the display sort of the list.
type SetSortType struct {
	SortType models.ToDoListSortType
}

func (AddItem) toDoListCommand()     {}
func (UpdateItem) toDoListCommand()  {}
func (DeleteItem) toDoListCommand()  {}
func (MoveItem) toDoListCommand()    {}
func (SetSortType) toDoListCommand() {}

// NextItemNumber returns an item number not used in l.
func NextItemNumber(l models.ToDoListData) int {
	next := 0
	for n := range l.Items {
		if n >= next {
			next = n + 1
		}
	}
	return next
}

// UpdateToDoList applies cmd to the to-do list data of the draft of id.
// Commands that reference a missing item are no-ops.
func (m *Model) UpdateToDoList(id models.ObjectID, cmd ToDoListCommand) error {
	cur, ok := m.objects[id]
	if !ok {
		return fmt.Errorf("update to-do list %s: %w", id, ErrNoEditedObject)
	}

	obj := cur.Clone()
	l := &obj.ToDoList
	if l.Items == nil {
		l.Items = map[int]models.ToDoListItem{}
	}

	switch c := cmd.(type) {
	case AddItem:
		if _, exists := l.Items[c.ItemNumber]; exists {
			return fmt.Errorf("add item %d: %w", c.ItemNumber, ErrDuplicateItemNumber)
		}
		item := c.Item
		if item.ItemState == "" {
			item.ItemState = models.ItemStateActive
		}
		item.Indent = clampIndent(item.Indent)
		l.Items[c.ItemNumber] = item
		l.ItemOrder = insertAt(l.ItemOrder, c.Position, c.ItemNumber)

	case UpdateItem:
		item, exists := l.Items[c.ItemNumber]
		if !exists {
			return nil
		}
		setIf(&item.ItemState, c.ItemState)
		setIf(&item.ItemText, c.ItemText)
		setIf(&item.Commentary, c.Commentary)
		setIf(&item.Indent, c.Indent)
		setIf(&item.IsExpanded, c.IsExpanded)
		item.Indent = clampIndent(item.Indent)
		l.Items[c.ItemNumber] = item

	case DeleteItem:
		pos := slices.Index(l.ItemOrder, c.ItemNumber)
		if pos < 0 {
			return nil
		}
		end := pos + 1
		if c.DeleteChildren {
			indent := l.Items[c.ItemNumber].Indent
			for end < len(l.ItemOrder) && l.Items[l.ItemOrder[end]].Indent > indent {
				end++
			}
		}
		for _, n := range l.ItemOrder[pos:end] {
			delete(l.Items, n)
		}
		l.ItemOrder = slices.Delete(l.ItemOrder, pos, end)

	case MoveItem:
		pos := slices.Index(l.ItemOrder, c.ItemNumber)
		if pos < 0 {
			return nil
		}
		l.ItemOrder = slices.Delete(l.ItemOrder, pos, pos+1)
		l.ItemOrder = insertAt(l.ItemOrder, c.Position, c.ItemNumber)

	case SetSortType:
		if c.SortType != models.SortTypeDefault && c.SortType != models.SortTypeState {
			return fmt.Errorf("set sort type: unknown sort type %q", c.SortType)
		}
		l.SortType = c.SortType

	default:
		return fmt.Errorf("%w: %T", ErrUnknownToDoListCommand, cmd)
	}

	m.Put(id, obj)
	return nil
}

func insertAt(order []int, pos, n int) []int {
	if pos < 0 || pos > len(order) {
		pos = len(order)
	}
	return slices.Insert(order, pos, n)
}

func clampIndent(v int) int {
	return min(max(v, 0), MaxIndent)
}
