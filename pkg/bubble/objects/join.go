package objects

import (
	"context"
	"errors"

	bubbleerrors "github.com/diwise/bubble-client/pkg/bubble/errors"
	"github.com/diwise/bubble-client/pkg/bubble/types"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
)

type targetKind int

const (
	cursorTarget targetKind = iota
	typeTarget
)

// JoinTarget is where a join looks up referenced objects, either by scanning
// a cursor or by fetching from a type by identity.
type JoinTarget struct {
	kind   targetKind
	cursor *Cursor
	thing  *Type
}

// OnCursor resolves references by scanning c from the start. The cursor is
// switched to caching so that repeated scans are served from its buffer.
func OnCursor(c *Cursor) JoinTarget {
	return JoinTarget{kind: cursorTarget, cursor: c}
}

// OnType resolves references with one by-identity read per unique id
func OnType(t *Type) JoinTarget {
	return JoinTarget{kind: typeTarget, thing: t}
}

// Join replaces a reference field with the object(s) it refers to. Resolved
// objects, and ids that could not be found, are memoized for the lifetime
// of the join.
type Join struct {
	field  string
	target JoinTarget
	memo   map[string]types.Entity
}

func NewJoin(field string, target JoinTarget) *Join {
	if target.kind == cursorTarget && target.cursor != nil {
		target.cursor.Cache(true)
	}

	return &Join{
		field:  field,
		target: target,
		memo:   map[string]types.Entity{},
	}
}

func (j *Join) Field() string {
	return j.field
}

// Resolve returns the object with the given id, or nil if there is none
func (j *Join) Resolve(ctx context.Context, id string) (types.Entity, error) {
	if e, ok := j.memo[id]; ok {
		return e, nil
	}

	var e types.Entity
	var err error

	switch j.target.kind {
	case cursorTarget:
		e, err = j.scan(ctx, id)
	case typeTarget:
		e, err = j.target.thing.GetByID(ctx, id, Params{})
	}

	if err != nil {
		return nil, err
	}

	if e == nil {
		logging.GetFromContext(ctx).Debug("unresolved reference", "field", j.field, "id", id)
	}

	j.memo[id] = e

	return e, nil
}

// ResolveAll resolves ids in order. Ids that can not be found are
// represented by a nil entry at the same index.
func (j *Join) ResolveAll(ctx context.Context, ids []string) ([]types.Entity, error) {
	resolved := make([]types.Entity, 0, len(ids))

	for _, id := range ids {
		e, err := j.Resolve(ctx, id)
		if err != nil {
			return nil, err
		}
		resolved = append(resolved, e)
	}

	return resolved, nil
}

// Apply replaces the join field of e with the referenced object, or list of
// objects, in place. An absent or empty field is left untouched.
func (j *Join) Apply(ctx context.Context, e types.Entity) (types.Entity, error) {
	value, ok := e.Get(j.field)
	if !ok || value == nil {
		return e, nil
	}

	switch ref := value.(type) {
	case string:
		if ref == "" {
			return e, nil
		}

		resolved, err := j.Resolve(ctx, ref)
		if err != nil {
			return nil, err
		}

		e.Set(j.field, resolved)

	case []string:
		if len(ref) == 0 {
			return e, nil
		}

		resolved, err := j.ResolveAll(ctx, ref)
		if err != nil {
			return nil, err
		}

		e.Set(j.field, resolved)

	case []any:
		if len(ref) == 0 {
			return e, nil
		}

		resolved, err := j.resolveItems(ctx, ref)
		if err != nil {
			return nil, err
		}

		e.Set(j.field, resolved)
	}

	return e, nil
}

// resolveItems resolves the string items of a decoded json list. The result
// is a []types.Entity unless the list holds items that are neither ids nor
// entities, in which case those items are kept as they are in a []any.
func (j *Join) resolveItems(ctx context.Context, items []any) (any, error) {
	resolved := make([]types.Entity, 0, len(items))
	mixed := false

	for _, item := range items {
		switch v := item.(type) {
		case string:
			r, err := j.Resolve(ctx, v)
			if err != nil {
				return nil, err
			}
			resolved = append(resolved, r)
		case types.Entity:
			resolved = append(resolved, v)
		default:
			mixed = true
			resolved = append(resolved, nil)
		}
	}

	if !mixed {
		return resolved, nil
	}

	kept := make([]any, len(items))
	for i, item := range items {
		if resolved[i] != nil {
			kept[i] = resolved[i]
			continue
		}

		if _, ok := item.(string); ok {
			kept[i] = nil
			continue
		}

		kept[i] = item
	}

	return kept, nil
}

func (j *Join) scan(ctx context.Context, id string) (types.Entity, error) {
	c := j.target.cursor

	c.Rewind()
	defer c.Rewind()

	for {
		e, err := c.Next(ctx)
		if errors.Is(err, bubbleerrors.ErrEndOfSequence) {
			return nil, nil
		}

		if err != nil {
			return nil, err
		}

		if e.ID() == id {
			return e, nil
		}
	}
}
