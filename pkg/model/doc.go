// Package model defines the diagram data model shared by every flowcore package.
//
// # Overview
//
// A diagram is a flat arena of [Node] and [Edge] values plus [Metadata] (the
// viewport and middleware-scoped configuration). Together they form a [State],
// the single committed snapshot owned by a model adapter. Nodes reference
// their parent group by id ([Node.GroupID]), never by pointer, so cycles are
// possible data errors rather than something the type system prevents.
//
// # Sparse Updates
//
// Every mutation is expressed as a [StateUpdate]: lists of entities to add,
// partial updates ([NodeUpdate], [EdgeUpdate], [MetadataUpdate]) and ids to
// remove. Partial updates use pointer fields where nil means "unchanged":
//
//	update := model.StateUpdate{
//	    NodesToUpdate: []model.NodeUpdate{{ID: "n1", Selected: model.Ptr(true)}},
//	}
//	next := model.Apply(state, update)
//
// [Apply] never mutates its input. [MergeUpdates] folds many updates into one,
// which is how a transaction turns its queue into a single state transition.
//
// # Geometry
//
// [Rect], [Point] and [Size] carry the geometry used by spatial queries.
// [Rect.Intersects] is strict: rectangles that only share an edge do not
// intersect. [OrientedIntersect] implements the separating axis test for
// rotated nodes.
package model
