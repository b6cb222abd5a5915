package bubble

import (
	"testing"
	"time"

	"github.com/diwise/bubble-client/pkg/bubble/client"
	"github.com/diwise/bubble-client/pkg/bubble/types/entities"
	"github.com/matryer/is"
)

func TestNewUser(t *testing.T) {
	is := is.New(t)

	u := NewUser(" Ada@Example.com ")

	is.Equal(u.Type(), "user")
	is.Equal(u.ID(), "")
	is.Equal(u.View(), map[string]any{"email": "ada@example.com"})
}

func TestAsUser(t *testing.T) {
	is := is.New(t)

	e, err := entities.NewFromJSON(UserTypeName, []byte(userJSON))
	is.NoErr(err)

	u, err := AsUser(e)
	is.NoErr(err)

	is.Equal(u.ID, "1700000000000x1")
	is.Equal(u.Email, "ada@example.com")
	is.Equal(u.CreatedDate, time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC))
}

func TestUsersTypeName(t *testing.T) {
	is := is.New(t)

	users := Users(client.NewClient("https://app.example.com", "token"))

	is.Equal(users.Name(), "user")
	is.Equal(users.Path(), "/api/1.1/obj/user")
}

const userJSON string = `{
	"_id": "1700000000000x1",
	"Created Date": "2024-03-01T09:30:00Z",
	"Modified Date": "2024-03-02T10:00:00Z",
	"authentication.email.email": "ada@example.com",
	"user_signed_up": true
}`
