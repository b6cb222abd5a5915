package types

// Entity is a normalized record mirroring a single object in the remote store.
// Attribute names are lookup-safe aliases of the wire field names.
type Entity interface {
	ID() string
	Type() string

	Get(name string) (any, bool)
	Set(name string, value any)
	Remove(name string)
	ForEachAttribute(func(name string, value any))

	// View returns the wire format projection used for write requests
	View() map[string]any
	MarshalJSON() ([]byte, error)
}
