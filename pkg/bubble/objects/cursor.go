package objects

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"github.com/diwise/bubble-client/pkg/bubble"
	bubbleerrors "github.com/diwise/bubble-client/pkg/bubble/errors"
	"github.com/diwise/bubble-client/pkg/bubble/types"
	"github.com/diwise/bubble-client/pkg/bubble/types/entities"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Cursor is a lazily paginating sequence over the objects of a type. A
// Cursor must not be advanced from more than one goroutine at a time.
type Cursor struct {
	target *Type
	params Params

	position int
	page     *bubble.Page

	joins  []*Join
	cache  bool
	buffer []types.Entity
}

func newCursor(target *Type, params Params) *Cursor {
	return &Cursor{
		target: target,
		params: params,
	}
}

// Next returns the entity at the current position and advances the cursor.
// errors.ErrEndOfSequence is returned when the sequence is exhausted.
func (c *Cursor) Next(ctx context.Context) (types.Entity, error) {
	if c.cache && c.position < len(c.buffer) {
		e := c.buffer[c.position]
		c.position++
		return e, nil
	}

	limit := c.params.Limit()
	if limit > 0 && c.position >= limit {
		return nil, bubbleerrors.ErrEndOfSequence
	}

	offset := c.params.Start() + c.position

	if c.page == nil || !c.page.Holds(offset) {
		if c.page != nil && c.page.Last() && offset >= c.page.Cursor+len(c.page.Results) {
			return nil, bubbleerrors.ErrEndOfSequence
		}

		page, err := c.fetch(ctx, offset, c.remaining())
		if err != nil {
			return nil, err
		}

		c.page = page
	}

	if !c.page.Holds(offset) {
		return nil, bubbleerrors.ErrEndOfSequence
	}

	e := entities.NewFromMap(c.target.Name(), c.page.Results[offset-c.page.Cursor])

	for _, j := range c.joins {
		if _, err := j.Apply(ctx, e); err != nil {
			return nil, fmt.Errorf("failed to join %s on %s: %w", j.Field(), c.target.Name(), err)
		}
	}

	if c.cache && c.position == len(c.buffer) {
		c.buffer = append(c.buffer, e)
	}

	c.position++

	return e, nil
}

// All drains the cursor from its current position
func (c *Cursor) All(ctx context.Context) iter.Seq2[types.Entity, error] {
	return func(yield func(types.Entity, error) bool) {
		for {
			e, err := c.Next(ctx)
			if errors.Is(err, bubbleerrors.ErrEndOfSequence) {
				return
			}

			if !yield(e, err) || err != nil {
				return
			}
		}
	}
}

// Count reports the total number of objects matching the query as declared
// by the remote store. At most one page, holding a single result, is fetched.
func (c *Cursor) Count(ctx context.Context) (int, error) {
	if c.page == nil {
		page, err := c.fetch(ctx, c.params.Start()+c.position, 1)
		if err != nil {
			return 0, err
		}

		c.page = page
	}

	return c.page.Total(), nil
}

// Rewind resets the position to zero. Buffered entities are replayed before
// any further page is fetched.
func (c *Cursor) Rewind() {
	c.position = 0
}

// Join attaches a reference resolution that is applied, in attachment
// order, to every entity the cursor produces.
func (c *Cursor) Join(field string, target JoinTarget) *Cursor {
	c.joins = append(c.joins, NewJoin(field, target))
	return c
}

func (c *Cursor) Cache(enabled bool) *Cursor {
	c.cache = enabled
	if !enabled {
		c.buffer = nil
	}
	return c
}

func (c *Cursor) Position() int {
	return c.position
}

func (c *Cursor) remaining() int {
	limit := c.params.Limit()
	if limit == 0 {
		return 0
	}

	return limit - c.position
}

func (c *Cursor) fetch(ctx context.Context, offset, limit int) (page *bubble.Page, err error) {
	ctx, span := tracer.Start(ctx, "fetch-page",
		trace.WithAttributes(attribute.String(TraceAttributeObjectType, c.target.Name())),
		trace.WithAttributes(attribute.Int(TraceAttributeCursor, offset)),
	)
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	query := c.params.Query()
	query[CursorParam] = offset
	delete(query, LimitParam)
	if limit > 0 {
		query[LimitParam] = limit
	}

	body, err := c.target.client.Get(ctx, c.target.Path(), query)
	if err != nil {
		return nil, err
	}

	page, err = bubble.NewPageFromJSON(body)
	if err != nil {
		return nil, fmt.Errorf("%s (%w)", err.Error(), bubbleerrors.ErrBadResponse)
	}

	logging.GetFromContext(ctx).Debug("fetched page",
		"type", c.target.Name(), "cursor", page.Cursor, "count", page.Count, "remaining", page.Remaining,
	)

	return page, nil
}
