package bubble

import (
	"strings"
	"time"

	"github.com/diwise/bubble-client/pkg/bubble/client"
	"github.com/diwise/bubble-client/pkg/bubble/objects"
	"github.com/diwise/bubble-client/pkg/bubble/types"
	"github.com/diwise/bubble-client/pkg/bubble/types/entities"
	ed "github.com/diwise/bubble-client/pkg/bubble/types/entities/decorators"
)

// User is the record form of the user objects every application has.
// Fields that are not known here remain available through the entity.
type User struct {
	ID           string    `json:"_id"`
	Email        string    `json:"email,omitempty"`
	CreatedDate  time.Time `json:"created_date"`
	ModifiedDate time.Time `json:"modified_date"`
}

func (User) TypeName() string {
	return UserTypeName
}

func Users(c client.Client, options ...objects.TypeOption) *objects.Type {
	return objects.For[User](c, options...)
}

func NewUser(email string, decorators ...entities.EntityDecoratorFunc) types.Entity {
	decorators = append(decorators, ed.Email(strings.ToLower(strings.TrimSpace(email))))
	return entities.New(UserTypeName, decorators...)
}

func AsUser(e types.Entity) (*User, error) {
	u := &User{}
	if err := entities.Decode(e, u); err != nil {
		return nil, err
	}

	if u.Email == "" {
		if v, ok := e.Get(UserEmailField); ok {
			u.Email, _ = v.(string)
		}
	}

	return u, nil
}
