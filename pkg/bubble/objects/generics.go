package objects

import (
	"context"

	"github.com/diwise/bubble-client/pkg/bubble/types/entities"
)

// Each drains c, decoding every entity into a T before passing it to
// callback. It returns the number of entities handled.
func Each[T any](ctx context.Context, c *Cursor, callback func(t T)) (count int, err error) {
	for e, nextErr := range c.All(ctx) {
		if nextErr != nil {
			return count, nextErr
		}

		var t T
		if err = entities.Decode(e, &t); err != nil {
			return count, err
		}

		callback(t)
		count++
	}

	return count, nil
}
