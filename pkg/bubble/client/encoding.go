package client

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/diwise/bubble-client/pkg/bubble/types"
)

// Encoder serializes request bodies and non-scalar query values
type Encoder interface {
	Encode(v any) ([]byte, error)
}

type EncoderFunc func(v any) ([]byte, error)

func (f EncoderFunc) Encode(v any) ([]byte, error) {
	return f(v)
}

// DefaultEncoder renders time values as ISO-8601 strings and entities as
// their wire view before encoding to JSON.
var DefaultEncoder Encoder = EncoderFunc(func(v any) ([]byte, error) {
	return json.Marshal(Prepare(v))
})

// Prepare replaces values that have no natural JSON form with their wire
// representation, recursing into maps and slices.
func Prepare(v any) any {
	switch value := v.(type) {
	case time.Time:
		return value.Format(time.RFC3339Nano)
	case *time.Time:
		if value == nil {
			return nil
		}
		return value.Format(time.RFC3339Nano)
	case types.Entity:
		return Prepare(value.View())
	case []types.Entity:
		list := make([]any, 0, len(value))
		for _, e := range value {
			list = append(list, Prepare(e))
		}
		return list
	case map[string]any:
		m := make(map[string]any, len(value))
		for k, item := range value {
			m[k] = Prepare(item)
		}
		return m
	case []any:
		list := make([]any, 0, len(value))
		for _, item := range value {
			list = append(list, Prepare(item))
		}
		return list
	default:
		return v
	}
}

// EncodeQuery converts query parameters to url values. Strings and numbers
// are sent as is, nil values are skipped and everything else is encoded
// with enc.
func EncodeQuery(query map[string]any, enc Encoder) (url.Values, error) {
	values := url.Values{}

	keys := make([]string, 0, len(query))
	for k := range query {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		v := query[k]
		if v == nil {
			continue
		}

		if s, ok := scalar(v); ok {
			values.Set(k, s)
			continue
		}

		b, err := enc.Encode(v)
		if err != nil {
			return nil, fmt.Errorf("failed to encode query parameter %s: %w", k, err)
		}
		values.Set(k, string(b))
	}

	return values, nil
}

func scalar(v any) (string, bool) {
	switch n := v.(type) {
	case string:
		return n, true
	case json.Number:
		return n.String(), true
	case int:
		return strconv.Itoa(n), true
	case int8:
		return strconv.FormatInt(int64(n), 10), true
	case int16:
		return strconv.FormatInt(int64(n), 10), true
	case int32:
		return strconv.FormatInt(int64(n), 10), true
	case int64:
		return strconv.FormatInt(n, 10), true
	case uint:
		return strconv.FormatUint(uint64(n), 10), true
	case uint8:
		return strconv.FormatUint(uint64(n), 10), true
	case uint16:
		return strconv.FormatUint(uint64(n), 10), true
	case uint32:
		return strconv.FormatUint(uint64(n), 10), true
	case uint64:
		return strconv.FormatUint(n, 10), true
	case float32:
		return strconv.FormatFloat(float64(n), 'f', -1, 32), true
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64), true
	}

	return "", false
}
