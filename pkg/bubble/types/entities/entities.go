package entities

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/diwise/bubble-client/pkg/bubble/types"
)

// Field names managed by the remote store
const (
	IdentityField     string = "_id"
	CreatedDateField  string = "Created Date"
	ModifiedDateField string = "Modified Date"
	CreatedByField    string = "Created By"
)

var metadataFields = map[string]struct{}{
	IdentityField:     {},
	CreatedDateField:  {},
	ModifiedDateField: {},
	CreatedByField:    {},
}

// IsMetadata reports whether wireName is a server managed field that is never
// sent back to the remote store.
func IsMetadata(wireName string) bool {
	_, ok := metadataFields[wireName]
	return ok
}

// Alias returns the lookup-safe attribute name for a wire field name. Names
// without whitespace are returned unchanged.
func Alias(wireName string) string {
	if !strings.ContainsFunc(wireName, unicode.IsSpace) {
		return wireName
	}

	return strings.ToLower(strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return '_'
		}
		return r
	}, wireName))
}

type EntityDecoratorFunc func(e *EntityImpl)

func New(entityType string, decorators ...EntityDecoratorFunc) types.Entity {
	e := newEntity(entityType)

	for _, decorator := range decorators {
		decorator(e)
	}

	return e
}

// NewFromMap normalizes a decoded payload into an entity of the given type
func NewFromMap(entityType string, raw map[string]any) types.Entity {
	e := newEntity(entityType)
	e.normalize(raw)
	return e
}

func NewFromJSON(entityType string, body []byte) (types.Entity, error) {
	raw, err := decodeObject(body)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal entity: %w", err)
	}

	return NewFromMap(entityType, raw), nil
}

func newEntity(entityType string) *EntityImpl {
	return &EntityImpl{
		entityType: entityType,
		attributes: map[string]any{},
		wireNames:  map[string]string{},
	}
}

type EntityImpl struct {
	entityType string

	attributes map[string]any
	wireNames  map[string]string
}

func (e *EntityImpl) ID() string {
	id, _ := e.attributes[IdentityField].(string)
	return id
}

func (e *EntityImpl) Type() string {
	return e.entityType
}

// Get looks up an attribute by alias or by its original wire name
func (e *EntityImpl) Get(name string) (any, bool) {
	if v, ok := e.attributes[name]; ok {
		return v, true
	}

	v, ok := e.attributes[Alias(name)]
	return v, ok
}

func (e *EntityImpl) Set(name string, value any) {
	alias := Alias(name)
	if alias != name {
		e.wireNames[alias] = name
	}

	e.attributes[alias] = value
}

func (e *EntityImpl) Remove(name string) {
	alias := Alias(name)
	delete(e.attributes, alias)
	delete(e.wireNames, alias)
}

func (e *EntityImpl) ForEachAttribute(callback func(name string, value any)) {
	for _, alias := range e.aliases() {
		callback(alias, e.attributes[alias])
	}
}

// WireName returns the original field name behind an alias
func (e *EntityImpl) WireName(alias string) string {
	if wire, ok := e.wireNames[alias]; ok {
		return wire
	}
	return alias
}

func (e *EntityImpl) View() map[string]any {
	view := make(map[string]any, len(e.attributes))

	for alias, value := range e.attributes {
		wire := e.WireName(alias)
		if IsMetadata(wire) {
			continue
		}

		view[wire] = viewOf(value)
	}

	return view
}

func viewOf(value any) any {
	switch v := value.(type) {
	case types.Entity:
		return v.View()
	case []types.Entity:
		views := make([]any, 0, len(v))
		for _, item := range v {
			views = append(views, viewOf(item))
		}
		return views
	case []any:
		views := make([]any, 0, len(v))
		for _, item := range v {
			views = append(views, viewOf(item))
		}
		return views
	case map[string]any:
		views := make(map[string]any, len(v))
		for key, item := range v {
			views[key] = viewOf(item)
		}
		return views
	default:
		return value
	}
}

func (e *EntityImpl) MarshalJSON() ([]byte, error) {
	contents := make(map[string]any, len(e.attributes))

	for alias, value := range e.attributes {
		contents[e.WireName(alias)] = value
	}

	return json.Marshal(&contents)
}

func (e *EntityImpl) UnmarshalJSON(data []byte) error {
	raw, err := decodeObject(data)
	if err != nil {
		return err
	}

	e.attributes = map[string]any{}
	e.wireNames = map[string]string{}
	e.normalize(raw)

	return nil
}

func (e *EntityImpl) normalize(raw map[string]any) {
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	// on alias collisions the later key wins together with its own wire name
	for _, k := range keys {
		if Alias(k) == k {
			delete(e.wireNames, k)
		}
		e.Set(k, raw[k])
	}
}

func (e *EntityImpl) aliases() []string {
	aliases := make([]string, 0, len(e.attributes))
	for alias := range e.attributes {
		aliases = append(aliases, alias)
	}
	sort.Strings(aliases)
	return aliases
}

func decodeObject(body []byte) (map[string]any, error) {
	d := json.NewDecoder(bytes.NewReader(body))
	d.UseNumber()

	var raw any
	if err := d.Decode(&raw); err != nil {
		return nil, err
	}

	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected a json object but got %T", raw)
	}

	return obj, nil
}

// Decode copies the attributes of an entity into a record type, matching
// struct tags against attribute aliases.
func Decode(e types.Entity, v any) error {
	contents := map[string]any{}
	e.ForEachAttribute(func(name string, value any) {
		contents[name] = value
	})

	b, err := json.Marshal(contents)
	if err != nil {
		return fmt.Errorf("failed to marshal attributes: %w", err)
	}

	err = json.Unmarshal(b, v)
	if err != nil {
		return fmt.Errorf("failed to decode %s entity: %w", e.Type(), err)
	}

	return nil
}

// A decorates an entity with an attribute
func A(name string, value any) EntityDecoratorFunc {
	return func(e *EntityImpl) {
		e.Set(name, value)
	}
}

func ID(id string) EntityDecoratorFunc {
	return A(IdentityField, id)
}
