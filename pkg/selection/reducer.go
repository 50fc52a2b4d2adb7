package selection

// ActionType enumerates reducer actions.
type ActionType int

// Reducer actions.
const (
	ActionSelectSource ActionType = iota
	ActionChangeSource
	ActionReset
)

// Action is a change applied to a selection by Reduce.
type Action struct {
	Type    ActionType
	Payload Selection
}

// Reduce returns the selection that results from applying a to state. The
// input is never modified.
//
// SelectSource overlays every non-empty payload field on the current state.
// ChangeSource replaces only the source name and description. Anything else
// clears the selection.
func Reduce(state *Selection, a Action) *Selection {
	next := state.Clone()
	if next == nil {
		next = &Selection{}
	}

	switch a.Type {
	case ActionSelectSource:
		merge(next, &a.Payload)
		return next
	case ActionChangeSource:
		next.Name = a.Payload.Name
		next.Description = a.Payload.Description
		return next
	default:
		return nil
	}
}

func merge(dst, src *Selection) {
	if src.Name != "" {
		dst.Name = src.Name
	}
	if src.Description != "" {
		dst.Description = src.Description
	}
	if src.DB != nil {
		db := *src.DB
		dst.DB = &db
	}
	if src.Catalog != "" {
		dst.Catalog = src.Catalog
	}
	if src.Schema != "" {
		dst.Schema = src.Schema
	}
	if src.TableName != "" {
		dst.TableName = src.TableName
	}
}
