package sandbox

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/diwise/bubble-client/pkg/bubble"
	"github.com/diwise/bubble-client/pkg/bubble/errors"
	"github.com/diwise/bubble-client/pkg/bubble/types/entities"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
	"github.com/google/uuid"
	"github.com/hashicorp/go-memdb"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("bubble-sandbox/store")

// Query describes a list request against a single type
type Query struct {
	Constraints []Constraint
	SortField   string
	Descending  bool
	Cursor      int
	Limit       int
}

// Store keeps objects in memory and serves them with the semantics of the
// remote data api.
type Store interface {
	Query(ctx context.Context, typeName string, q Query) (*bubble.Page, error)
	Find(ctx context.Context, typeName, id string) (map[string]any, error)
	Create(ctx context.Context, typeName string, fields map[string]any) (string, error)
	Replace(ctx context.Context, typeName, id string, fields map[string]any) error
	Modify(ctx context.Context, typeName, id string, fields map[string]any) error
	Delete(ctx context.Context, typeName, id string) error
}

const (
	tableObject = "object"
	indexID     = "id"
	indexType   = "type"
)

var schema = &memdb.DBSchema{
	Tables: map[string]*memdb.TableSchema{
		tableObject: {
			Name: tableObject,
			Indexes: map[string]*memdb.IndexSchema{
				indexID: {
					Name:   indexID,
					Unique: true,
					Indexer: &memdb.CompoundIndex{
						Indexes: []memdb.Indexer{
							&memdb.StringFieldIndex{Field: "Type"},
							&memdb.StringFieldIndex{Field: "ID"},
						},
					},
				},
				indexType: {
					Name:    indexType,
					Unique:  false,
					Indexer: &memdb.StringFieldIndex{Field: "Type"},
				},
			},
		},
	},
}

type object struct {
	Type   string
	ID     string
	Seq    uint64
	Fields map[string]any
}

type memStore struct {
	db       *memdb.MemDB
	seq      atomic.Uint64
	pageSize int
	now      func() time.Time
}

func New(ctx context.Context, cfg Config) (Store, error) {
	db, err := memdb.NewMemDB(schema)
	if err != nil {
		return nil, fmt.Errorf("failed to create object database: %w", err)
	}

	s := &memStore{
		db:       db,
		pageSize: cfg.PageSize,
		now:      time.Now,
	}

	if s.pageSize <= 0 || s.pageSize > MaxPageSize {
		s.pageSize = DefaultPageSize
	}

	log := logging.GetFromContext(ctx)

	for _, seed := range cfg.Seed {
		for _, fields := range seed.Objects {
			id, err := s.Create(ctx, seed.Type, fields)
			if err != nil {
				return nil, fmt.Errorf("failed to seed %s: %w", seed.Type, err)
			}
			log.Debug("seeded object", "type", seed.Type, "id", id)
		}
	}

	return s, nil
}

func (s *memStore) Query(ctx context.Context, typeName string, q Query) (page *bubble.Page, err error) {
	_, span := tracer.Start(ctx, "query-objects",
		trace.WithAttributes(attribute.String("object-type", typeName)),
	)
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	txn := s.db.Txn(false)
	defer txn.Abort()

	it, err := txn.Get(tableObject, indexType, typeName)
	if err != nil {
		return nil, errors.NewInternalError(500, err.Error())
	}

	matching := []*object{}

	for raw := it.Next(); raw != nil; raw = it.Next() {
		obj := raw.(*object)
		if matchesAll(obj.Fields, q.Constraints) {
			matching = append(matching, obj)
		}
	}

	slices.SortStableFunc(matching, func(a, b *object) int {
		return cmp.Compare(a.Seq, b.Seq)
	})

	if q.SortField != "" {
		slices.SortStableFunc(matching, func(a, b *object) int {
			c := orderOf(a.Fields[q.SortField], b.Fields[q.SortField])
			if q.Descending {
				return -c
			}
			return c
		})
	}

	limit := q.Limit
	if limit <= 0 || limit > s.pageSize {
		limit = s.pageSize
	}

	start := min(max(q.Cursor, 0), len(matching))
	end := min(start+limit, len(matching))

	results := make([]map[string]any, 0, end-start)
	for _, obj := range matching[start:end] {
		results = append(results, clone(obj.Fields))
	}

	return &bubble.Page{
		Cursor:    start,
		Results:   results,
		Count:     len(results),
		Remaining: len(matching) - end,
	}, nil
}

func (s *memStore) Find(ctx context.Context, typeName, id string) (map[string]any, error) {
	txn := s.db.Txn(false)
	defer txn.Abort()

	obj, err := first(txn, typeName, id)
	if err != nil {
		return nil, err
	}

	return clone(obj.Fields), nil
}

func (s *memStore) Create(ctx context.Context, typeName string, fields map[string]any) (string, error) {
	if strings.TrimSpace(typeName) == "" {
		return "", errors.NewBadRequestError("missing object type")
	}

	seq := s.seq.Add(1)

	id, _ := fields[entities.IdentityField].(string)
	if id == "" {
		id = newObjectID(seq)
	}

	now := s.timestamp()

	obj := &object{
		Type:   typeName,
		ID:     id,
		Seq:    seq,
		Fields: withoutMetadata(fields),
	}

	obj.Fields[entities.IdentityField] = id
	obj.Fields[entities.CreatedDateField] = stringOr(fields[entities.CreatedDateField], now)
	obj.Fields[entities.ModifiedDateField] = stringOr(fields[entities.ModifiedDateField], now)

	txn := s.db.Txn(true)
	defer txn.Abort()

	if existing, _ := txn.First(tableObject, indexID, typeName, id); existing != nil {
		return "", errors.NewBadRequestError(fmt.Sprintf("%s %s already exists", typeName, id))
	}

	if err := txn.Insert(tableObject, obj); err != nil {
		return "", errors.NewInternalError(500, err.Error())
	}

	txn.Commit()

	logging.GetFromContext(ctx).Debug("object created", "type", typeName, "id", id)

	return id, nil
}

func (s *memStore) Replace(ctx context.Context, typeName, id string, fields map[string]any) error {
	return s.update(ctx, typeName, id, func(current map[string]any) map[string]any {
		replaced := withoutMetadata(fields)
		for _, name := range []string{entities.IdentityField, entities.CreatedDateField, entities.CreatedByField} {
			if v, ok := current[name]; ok {
				replaced[name] = v
			}
		}
		return replaced
	})
}

func (s *memStore) Modify(ctx context.Context, typeName, id string, fields map[string]any) error {
	return s.update(ctx, typeName, id, func(current map[string]any) map[string]any {
		modified := clone(current)
		maps.Copy(modified, withoutMetadata(fields))
		return modified
	})
}

func (s *memStore) update(ctx context.Context, typeName, id string, change func(map[string]any) map[string]any) error {
	txn := s.db.Txn(true)
	defer txn.Abort()

	obj, err := first(txn, typeName, id)
	if err != nil {
		return err
	}

	updated := &object{
		Type:   obj.Type,
		ID:     obj.ID,
		Seq:    obj.Seq,
		Fields: change(obj.Fields),
	}
	updated.Fields[entities.ModifiedDateField] = s.timestamp()

	if err := txn.Insert(tableObject, updated); err != nil {
		return errors.NewInternalError(500, err.Error())
	}

	txn.Commit()

	logging.GetFromContext(ctx).Debug("object updated", "type", typeName, "id", id)

	return nil
}

func (s *memStore) Delete(ctx context.Context, typeName, id string) error {
	txn := s.db.Txn(true)
	defer txn.Abort()

	obj, err := first(txn, typeName, id)
	if err != nil {
		return err
	}

	if err := txn.Delete(tableObject, obj); err != nil {
		return errors.NewInternalError(500, err.Error())
	}

	txn.Commit()

	logging.GetFromContext(ctx).Debug("object deleted", "type", typeName, "id", id)

	return nil
}

func (s *memStore) timestamp() string {
	return s.now().UTC().Format("2006-01-02T15:04:05.000Z")
}

func first(txn *memdb.Txn, typeName, id string) (*object, error) {
	raw, err := txn.First(tableObject, indexID, typeName, id)
	if err != nil {
		return nil, errors.NewInternalError(500, err.Error())
	}

	if raw == nil {
		return nil, errors.NewNotFoundError(fmt.Sprintf("%s %s does not exist", typeName, id))
	}

	return raw.(*object), nil
}

func matchesAll(fields map[string]any, constraints []Constraint) bool {
	for _, c := range constraints {
		if !c.Matches(fields) {
			return false
		}
	}
	return true
}

// orderOf sorts absent values first and unorderable values by their
// string form
func orderOf(a, b any) int {
	if a == nil || b == nil {
		switch {
		case a == nil && b == nil:
			return 0
		case a == nil:
			return -1
		}
		return 1
	}

	if c, ok := compare(a, b); ok {
		return c
	}

	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

// newObjectID returns an id in the style of the remote store, a sortable
// prefix followed by a random suffix
func newObjectID(seq uint64) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return fmt.Sprintf("%013dx%s", seq, suffix)
}

func withoutMetadata(fields map[string]any) map[string]any {
	m := clone(fields)
	for name := range m {
		if entities.IsMetadata(name) {
			delete(m, name)
		}
	}
	return m
}

func stringOr(v any, def string) string {
	if s, ok := v.(string); ok && s != "" {
		return s
	}
	return def
}

func clone(fields map[string]any) map[string]any {
	if fields == nil {
		return map[string]any{}
	}
	return cloneValue(fields).(map[string]any)
}

func cloneValue(value any) any {
	switch v := value.(type) {
	case map[string]any:
		m := make(map[string]any, len(v))
		for key, item := range v {
			m[key] = cloneValue(item)
		}
		return m
	case []any:
		list := make([]any, 0, len(v))
		for _, item := range v {
			list = append(list, cloneValue(item))
		}
		return list
	default:
		return value
	}
}
