package composite

import (
	"cmp"
	"slices"

	"github.com/gsoldatov/site-frontend/editor-mcp/internal/models"
)

// grid groups subobject IDs into columns ordered by column number, each
// column ordered by row. Column numbers are compacted: an empty column number
// does not produce an empty slice.
func grid(subobjects map[models.ObjectID]models.SubobjectEntry) [][]models.ObjectID {
	ids := make([]models.ObjectID, 0, len(subobjects))
	for id := range subobjects {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b models.ObjectID) int {
		ea, eb := subobjects[a], subobjects[b]
		if c := cmp.Compare(ea.Column, eb.Column); c != 0 {
			return c
		}
		if c := cmp.Compare(ea.Row, eb.Row); c != 0 {
			return c
		}
		return models.CompareIDs(a, b)
	})

	var columns [][]models.ObjectID
	for i, id := range ids {
		if i == 0 || subobjects[id].Column != subobjects[ids[i-1]].Column {
			columns = append(columns, nil)
		}
		columns[len(columns)-1] = append(columns[len(columns)-1], id)
	}
	return columns
}

// columnIndex maps a column number to its index in grid(subobjects). A number
// greater than every used column maps past the end.
func columnIndex(subobjects map[models.ObjectID]models.SubobjectEntry, columns [][]models.ObjectID, column int) int {
	for i, col := range columns {
		if subobjects[col[0]].Column >= column {
			return i
		}
	}
	return len(columns)
}

// renumber writes contiguous row and column numbers from columns into
// subobjects, skipping empty columns.
func renumber(subobjects map[models.ObjectID]models.SubobjectEntry, columns [][]models.ObjectID) {
	c := 0
	for _, col := range columns {
		if len(col) == 0 {
			continue
		}
		for r, id := range col {
			e := subobjects[id]
			e.Column, e.Row = c, r
			subobjects[id] = e
		}
		c++
	}
}

// insert places id at row in column, shifting the entries below it.
func insert(subobjects map[models.ObjectID]models.SubobjectEntry, id models.ObjectID, row, column int) {
	columns := grid(subobjects)
	ci := columnIndex(subobjects, columns, max(column, 0))
	if ci == len(columns) || subobjects[columns[ci][0]].Column != column {
		columns = slices.Insert(columns, ci, nil)
	}
	col := columns[ci]
	r := min(max(row, 0), len(col))
	columns[ci] = slices.Insert(col, r, id)

	subobjects[id] = models.NewSubobjectEntry(r, column)
	renumber(subobjects, columns)
}

// drop moves c.SubobjectID according to the drop parameters and renumbers the
// affected columns so rows stay contiguous.
func drop(subobjects map[models.ObjectID]models.SubobjectEntry, c UpdatePositionsOnDrop) {
	columns := grid(subobjects)
	target := columnIndex(subobjects, columns, max(c.NewColumn, 0))
	targetExists := target < len(columns) && subobjects[columns[target][0]].Column == c.NewColumn

	// Remove the dragged entry but keep its column slot, so indexes computed
	// above stay valid.
	for i, col := range columns {
		if j := slices.Index(col, c.SubobjectID); j >= 0 {
			columns[i] = slices.Delete(col, j, j+1)
			break
		}
	}

	switch {
	case c.IsDroppedToTheLeft || c.IsDroppedToTheRight:
		at := target
		if c.IsDroppedToTheRight && targetExists {
			at++
		}
		columns = slices.Insert(columns, min(at, len(columns)), []models.ObjectID{c.SubobjectID})

	case !targetExists:
		columns = slices.Insert(columns, min(target, len(columns)), []models.ObjectID{c.SubobjectID})

	default:
		col := columns[target]
		pos := min(max(c.NewRow, 0), len(col))
		if !c.DropTargetSubobjectID.IsZero() {
			if j := slices.Index(col, c.DropTargetSubobjectID); j >= 0 {
				pos = j
			}
		}
		columns[target] = slices.Insert(col, pos, c.SubobjectID)
	}

	renumber(subobjects, columns)
}
