package changes

import (
	"maps"
	"slices"

	"github.com/gsoldatov/site-frontend/editor-mcp/internal/drafts"
	"github.com/gsoldatov/site-frontend/editor-mcp/internal/models"
)

// Graph is the composite reference graph reachable from one root, with every
// node classified as modified or not.
type Graph struct {
	Root models.ObjectID
	// Nodes lists the reachable IDs in traversal order, root first.
	Nodes []models.ObjectID

	parents  map[models.ObjectID][]models.ObjectID
	modified map[models.ObjectID]bool
}

// IsModified reports whether id, or anything reachable from it, has changes
// that are not persisted. IDs outside the graph are reported as modified.
func (g *Graph) IsModified(id models.ObjectID) bool {
	m, ok := g.modified[id]
	return m || !ok
}

// Contains reports whether id is reachable from the root.
func (g *Graph) Contains(id models.ObjectID) bool {
	_, ok := g.modified[id]
	return ok
}

// Parents returns the composites in the graph referencing id.
func (g *Graph) Parents(id models.ObjectID) []models.ObjectID {
	return g.parents[id]
}

// Analyze walks the composite references from root and classifies every
// reachable node.
//
// A node is modified when it is new, its draft or entity is missing, it
// failed to load, a parent marks it for deletion, its draft differs from its
// entity, or any of its subobjects is modified.
func Analyze(m *drafts.Model, root models.ObjectID) *Graph {
	g := &Graph{
		Root:     root,
		parents:  make(map[models.ObjectID][]models.ObjectID),
		modified: make(map[models.ObjectID]bool),
	}

	// Iterative DFS; g.modified doubles as the visited set.
	stack := []models.ObjectID{root}
	g.modified[root] = false
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		g.Nodes = append(g.Nodes, id)

		obj, ok := m.Get(id)
		if !ok || !obj.IsComposite() {
			continue
		}
		for _, subID := range slices.SortedFunc(maps.Keys(obj.Composite.Subobjects), models.CompareIDs) {
			g.parents[subID] = append(g.parents[subID], id)
			if _, seen := g.modified[subID]; !seen {
				g.modified[subID] = false
				stack = append(stack, subID)
			}
		}
	}

	var queue []models.ObjectID
	for _, id := range g.Nodes {
		if selfModified(m, g, id) {
			g.modified[id] = true
			queue = append(queue, id)
		}
	}

	// Propagate to ancestors. Each node enters the queue at most once, so
	// cycles terminate.
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, p := range g.parents[id] {
			if !g.modified[p] {
				g.modified[p] = true
				queue = append(queue, p)
			}
		}
	}
	return g
}

func selfModified(m *drafts.Model, g *Graph, id models.ObjectID) bool {
	obj, ok := m.Get(id)
	if !ok || id.IsNew() || obj.FetchError != "" {
		return true
	}
	for _, p := range g.parents[id] {
		parent, _ := m.Get(p)
		entry := parent.Composite.Subobjects[id]
		if entry.DeleteMode.IsPending() || entry.FetchError != "" {
			return true
		}
	}
	return DiffersFromEntity(m.Entities(), obj)
}

// ClearUnchangedEditedObjects removes the drafts reachable from root that
// have no unsaved changes and returns the removed IDs in wire order.
//
// A node is kept when it is modified, listed in excluded, or referenced by a
// composite draft outside the reachable graph. Excluding a node keeps only
// that node; its subobjects are judged on their own. Drafts are never
// removed from composite subobject maps.
func ClearUnchangedEditedObjects(m *drafts.Model, root models.ObjectID, excluded ...models.ObjectID) []models.ObjectID {
	g := Analyze(m, root)

	retained := make(map[models.ObjectID]bool, len(excluded))
	for _, id := range excluded {
		retained[id] = true
	}
	for _, id := range m.IDs() {
		if g.Contains(id) {
			continue
		}
		obj, _ := m.Get(id)
		if !obj.IsComposite() {
			continue
		}
		for subID := range obj.Composite.Subobjects {
			retained[subID] = true
		}
	}

	var removed []models.ObjectID
	for _, id := range g.Nodes {
		if g.IsModified(id) || retained[id] || !m.Has(id) {
			continue
		}
		removed = append(removed, id)
	}
	slices.SortFunc(removed, models.CompareIDs)
	m.Delete(removed...)
	return removed
}
