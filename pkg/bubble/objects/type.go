package objects

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"reflect"

	"github.com/diwise/bubble-client/pkg/bubble"
	"github.com/diwise/bubble-client/pkg/bubble/cache"
	"github.com/diwise/bubble-client/pkg/bubble/client"
	bubbleerrors "github.com/diwise/bubble-client/pkg/bubble/errors"
	"github.com/diwise/bubble-client/pkg/bubble/types"
	"github.com/diwise/bubble-client/pkg/bubble/types/entities"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
	"github.com/ettle/strcase"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	TraceAttributeObjectType string = "object-type"
	TraceAttributeObjectID   string = "object-id"
	TraceAttributeCursor     string = "cursor"
)

var tracer = otel.Tracer("bubble-client/objects")

// TypeNamer can be implemented by record types whose remote type name does
// not follow from their Go type name.
type TypeNamer interface {
	TypeName() string
}

// TypeNameOf returns the remote type name for v: the result of TypeName
// when v implements TypeNamer, otherwise the snake cased name of its type.
func TypeNameOf(v any) string {
	if namer, ok := v.(TypeNamer); ok {
		return namer.TypeName()
	}

	t := reflect.TypeOf(v)
	if t == nil {
		return ""
	}

	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	return strcase.ToSnake(t.Name())
}

// Type is the read/write surface of one object type in the remote store
type Type struct {
	name   string
	client client.Client
	cache  *cache.Cache
}

type TypeOption func(t *Type)

// WithEncoder serializes requests of this type with enc instead of the
// encoder of the client.
func WithEncoder(enc client.Encoder) TypeOption {
	return func(t *Type) {
		t.client = t.client.WithEncoder(enc)
	}
}

// WithCache makes by-identity reads go through c
func WithCache(c *cache.Cache) TypeOption {
	return func(t *Type) {
		t.cache = c
	}
}

func NewType(c client.Client, name string, options ...TypeOption) *Type {
	t := &Type{
		name:   name,
		client: c,
	}

	for _, option := range options {
		option(t)
	}

	return t
}

// For returns the Type of the record type T
func For[T any](c client.Client, options ...TypeOption) *Type {
	return NewType(c, TypeNameOf(new(T)), options...)
}

func (t *Type) Name() string {
	return t.name
}

func (t *Type) Path() string {
	return bubble.ObjectsPath + "/" + url.PathEscape(t.name)
}

func (t *Type) objectPath(id string) string {
	return t.Path() + "/" + url.PathEscape(id)
}

// New creates an entity of this type that has not been saved yet
func (t *Type) New(decorators ...entities.EntityDecoratorFunc) types.Entity {
	return entities.New(t.name, decorators...)
}

// Get returns a cursor over the objects matching params. No request is made
// until the cursor is advanced.
func (t *Type) Get(params Params) *Cursor {
	return newCursor(t, params)
}

// GetByID fetches a single object. A missing object is reported as nil
// without error.
func (t *Type) GetByID(ctx context.Context, id string, params Params) (types.Entity, error) {
	if t.cache != nil && len(params.Query()) == 0 {
		return t.cache.GetOrFetch(ctx, cache.Key(t.name, id), func(ctx context.Context) (types.Entity, error) {
			return t.getByID(ctx, id, params)
		})
	}

	return t.getByID(ctx, id, params)
}

func (t *Type) getByID(ctx context.Context, id string, params Params) (e types.Entity, err error) {
	ctx, span := tracer.Start(ctx, "get-by-id",
		trace.WithAttributes(attribute.String(TraceAttributeObjectType, t.name)),
		trace.WithAttributes(attribute.String(TraceAttributeObjectID, id)),
	)
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	body, err := t.client.Get(ctx, t.objectPath(id), params.Query())
	if err != nil {
		if errors.Is(err, bubbleerrors.ErrNotFound) {
			err = nil
			logging.GetFromContext(ctx).Debug("object not found", "type", t.name, "id", id)
			return nil, nil
		}
		return nil, err
	}

	raw, err := bubble.NewObjectFromJSON(body)
	if err != nil {
		return nil, fmt.Errorf("%s (%w)", err.Error(), bubbleerrors.ErrBadResponse)
	}

	if raw == nil {
		return nil, nil
	}

	return entities.NewFromMap(t.name, raw), nil
}

// GetFirst returns the first object matching params, or nil if there is none
func (t *Type) GetFirst(ctx context.Context, params Params) (types.Entity, error) {
	e, err := t.Get(params.With(Limit(1))).Next(ctx)
	if errors.Is(err, bubbleerrors.ErrEndOfSequence) {
		return nil, nil
	}

	return e, err
}

// GetOne returns the object with the given id, or the first object matching
// params when id is empty.
func (t *Type) GetOne(ctx context.Context, id string, params Params) (types.Entity, error) {
	if id != "" {
		return t.GetByID(ctx, id, params)
	}

	return t.GetFirst(ctx, params)
}

// Save creates e if it has no identity and replaces it otherwise
func (t *Type) Save(ctx context.Context, e types.Entity) error {
	if e.ID() == "" {
		return t.Create(ctx, e)
	}

	return t.Update(ctx, e)
}

// Create stores e as a new object and assigns the identity returned by the
// remote store to it.
func (t *Type) Create(ctx context.Context, e types.Entity) (err error) {
	ctx, span := tracer.Start(ctx, "create-object",
		trace.WithAttributes(attribute.String(TraceAttributeObjectType, t.name)),
	)
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	body, err := t.client.Post(ctx, t.Path(), nil, e)
	if err != nil {
		return err
	}

	result, err := bubble.NewCreateResultFromJSON(body)
	if err != nil {
		return fmt.Errorf("%s (%w)", err.Error(), bubbleerrors.ErrBadResponse)
	}

	e.Set(entities.IdentityField, result.ID)

	logging.GetFromContext(ctx).Debug("object created", "type", t.name, "id", result.ID)

	return nil
}

// Update replaces the stored object with the view of e
func (t *Type) Update(ctx context.Context, e types.Entity) (err error) {
	id := e.ID()

	ctx, span := tracer.Start(ctx, "update-object",
		trace.WithAttributes(attribute.String(TraceAttributeObjectType, t.name)),
		trace.WithAttributes(attribute.String(TraceAttributeObjectID, id)),
	)
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	if id == "" {
		err = bubbleerrors.NewBadRequestError("an object without identity can not be updated")
		return err
	}

	_, err = t.client.Put(ctx, t.objectPath(id), nil, e)
	t.invalidate(id)

	return err
}

// Modify changes the given fields of a stored object, leaving the rest as is
func (t *Type) Modify(ctx context.Context, id string, fields map[string]any) (err error) {
	ctx, span := tracer.Start(ctx, "modify-object",
		trace.WithAttributes(attribute.String(TraceAttributeObjectType, t.name)),
		trace.WithAttributes(attribute.String(TraceAttributeObjectID, id)),
	)
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	_, err = t.client.Patch(ctx, t.objectPath(id), nil, fields)
	t.invalidate(id)

	return err
}

func (t *Type) Delete(ctx context.Context, id string) (err error) {
	ctx, span := tracer.Start(ctx, "delete-object",
		trace.WithAttributes(attribute.String(TraceAttributeObjectType, t.name)),
		trace.WithAttributes(attribute.String(TraceAttributeObjectID, id)),
	)
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	_, err = t.client.Delete(ctx, t.objectPath(id), nil)
	t.invalidate(id)

	return err
}

func (t *Type) invalidate(id string) {
	if t.cache != nil {
		t.cache.Delete(cache.Key(t.name, id))
	}
}
