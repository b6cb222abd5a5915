package objects

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/diwise/bubble-client/pkg/bubble/client"
	bubbleerrors "github.com/diwise/bubble-client/pkg/bubble/errors"
	testutils "github.com/diwise/service-chassis/pkg/test/http"
	"github.com/diwise/service-chassis/pkg/test/http/expects"
	"github.com/diwise/service-chassis/pkg/test/http/response"
	"github.com/matryer/is"
)

func TestDrainingPagedCollectionYieldsAllObjectsThenEnds(t *testing.T) {
	is, s := setupCursorTest(t, 2)
	ctx := context.Background()

	c := NewType(s.client(), "user").Get(NewParams())

	ids := []string{}
	for range 5 {
		e, err := c.Next(ctx)
		is.NoErr(err)
		ids = append(ids, e.ID())
	}

	_, err := c.Next(ctx)

	is.True(errors.Is(err, bubbleerrors.ErrEndOfSequence))
	is.Equal(ids, []string{"u1", "u2", "u3", "u4", "u5"})
	is.Equal(s.requestCount(), 3) // pages of 2, 2 and 1 objects

	queries := s.requestsTo("/api/1.1/obj/user")
	is.Equal(queries[0].Get("cursor"), "0")
	is.Equal(queries[1].Get("cursor"), "2")
	is.Equal(queries[2].Get("cursor"), "4")
}

func TestDrainIsIndependentOfPageSize(t *testing.T) {
	for _, pageSize := range []int{1, 3, 5, 100} {
		is, s := setupCursorTest(t, pageSize)

		ids := idsOf(t, NewType(s.client(), "user").Get(NewParams()))
		is.Equal(ids, []string{"u1", "u2", "u3", "u4", "u5"})
	}
}

func TestRewindReplaysCachedObjectsWithoutFetching(t *testing.T) {
	is, s := setupCursorTest(t, 2)
	ctx := context.Background()

	c := NewType(s.client(), "user").Get(NewParams()).Cache(true)

	first, err := c.Next(ctx)
	is.NoErr(err)
	is.Equal(len(idsOf(t, c)), 4)
	is.Equal(s.requestCount(), 3)

	c.Rewind()
	is.Equal(c.Position(), 0)

	replayed, err := c.Next(ctx)
	is.NoErr(err)
	is.True(first == replayed) // rewound cursor should replay the buffered entity
	is.Equal(len(idsOf(t, c)), 4)
	is.Equal(s.requestCount(), 3) // no further fetches after an exhaustive drain
}

func TestRewindWithoutCacheFetchesAgain(t *testing.T) {
	is, s := setupCursorTest(t, 2)

	c := NewType(s.client(), "user").Get(NewParams())
	is.Equal(len(idsOf(t, c)), 5)

	c.Rewind()

	is.Equal(idsOf(t, c), []string{"u1", "u2", "u3", "u4", "u5"})
	is.Equal(s.requestCount(), 6)
}

func TestCountFetchesASinglePageOfOne(t *testing.T) {
	is, s := setupCursorTest(t, 2)
	ctx := context.Background()

	c := NewType(s.client(), "user").Get(NewParams())

	count, err := c.Count(ctx)
	is.NoErr(err)
	is.Equal(count, 5)
	is.Equal(s.requestCount(), 1)
	is.Equal(s.requestsTo("/api/1.1/obj/user")[0].Get("limit"), "1")

	e, err := c.Next(ctx)
	is.NoErr(err)
	is.Equal(e.ID(), "u1")
	is.Equal(s.requestCount(), 1) // first object is served from the counted page
}

func TestLimitCapsTheNumberOfObjects(t *testing.T) {
	is, s := setupCursorTest(t, 2)

	ids := idsOf(t, NewType(s.client(), "user").Get(NewParams(Limit(3))))

	is.Equal(ids, []string{"u1", "u2", "u3"})
	is.Equal(s.requestCount(), 2)

	queries := s.requestsTo("/api/1.1/obj/user")
	is.Equal(queries[0].Get("limit"), "3")
	is.Equal(queries[1].Get("limit"), "1")
}

func TestStartAtSkipsLeadingObjects(t *testing.T) {
	is, s := setupCursorTest(t, 2)

	ids := idsOf(t, NewType(s.client(), "user").Get(NewParams(StartAt(2))))

	is.Equal(ids, []string{"u3", "u4", "u5"})
}

func TestQueryParamsAreSentWithEveryPage(t *testing.T) {
	is, s := setupCursorTest(t, 2)

	c := NewType(s.client(), "user").Get(NewParams(
		Where("age", GreaterThan, 30),
		SortBy("name", true),
	))
	is.Equal(len(idsOf(t, c)), 5)

	for _, q := range s.requestsTo("/api/1.1/obj/user") {
		is.Equal(q.Get("constraints"), `[{"constraint_type":"greater than","key":"age","value":30}]`)
		is.Equal(q.Get("sort_field"), "name")
		is.Equal(q.Get("descending"), "true")
	}
}

func TestTransportErrorsArePropagated(t *testing.T) {
	is := is.New(t)

	ms := testutils.NewMockServiceThat(
		testutils.Expects(is, expects.AnyInput()),
		testutils.Returns(response.Code(http.StatusInternalServerError)),
	)
	defer ms.Close()

	c := NewType(client.NewClient(ms.URL(), "token"), "user").Get(NewParams())

	_, err := c.Next(context.Background())

	is.True(errors.Is(err, bubbleerrors.ErrInternal))
	is.Equal(c.Position(), 0)
}

func TestEachDecodesIntoRecordType(t *testing.T) {
	is, s := setupCursorTest(t, 2)

	type person struct {
		ID          string `json:"_id"`
		Name        string `json:"name"`
		CreatedDate string `json:"created_date"`
	}

	names := []string{}
	count, err := Each(context.Background(), NewType(s.client(), "user").Get(NewParams()), func(p person) {
		names = append(names, p.Name)
	})

	is.NoErr(err)
	is.Equal(count, 5)
	is.Equal(names, []string{"Ada", "Grace", "Edsger", "Barbara", "Donald"})
}

func setupCursorTest(t *testing.T, pageSize int) (*is.I, *collectionServer) {
	is := is.New(t)

	s := newCollectionServer(t, pageSize).with("user",
		record("u1", "name", "Ada", "Created Date", "2024-01-01T00:00:00Z"),
		record("u2", "name", "Grace", "Created Date", "2024-01-02T00:00:00Z"),
		record("u3", "name", "Edsger", "Created Date", "2024-01-03T00:00:00Z"),
		record("u4", "name", "Barbara", "Created Date", "2024-01-04T00:00:00Z"),
		record("u5", "name", "Donald", "Created Date", "2024-01-05T00:00:00Z"),
	)

	return is, s
}
