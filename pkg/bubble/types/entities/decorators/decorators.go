package decorators

import (
	"time"

	"github.com/diwise/bubble-client/pkg/bubble/types/entities"
)

func Bool(name string, value bool) entities.EntityDecoratorFunc {
	return entities.A(name, value)
}

func Date(name string, value time.Time) entities.EntityDecoratorFunc {
	return entities.A(name, value)
}

func Number(name string, value float64) entities.EntityDecoratorFunc {
	return entities.A(name, value)
}

func Text(name string, value string) entities.EntityDecoratorFunc {
	return entities.A(name, value)
}

func TextList(name string, values []string) entities.EntityDecoratorFunc {
	list := make([]any, 0, len(values))
	for _, v := range values {
		list = append(list, v)
	}
	return entities.A(name, list)
}

// Ref stores the identity of another object, to be resolved by a join
func Ref(name string, id string) entities.EntityDecoratorFunc {
	return Text(name, id)
}

func RefList(name string, ids []string) entities.EntityDecoratorFunc {
	return TextList(name, ids)
}

func Email(email string) entities.EntityDecoratorFunc {
	return Text("email", email)
}
