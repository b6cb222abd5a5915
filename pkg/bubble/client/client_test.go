package client

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	bubbleerrors "github.com/diwise/bubble-client/pkg/bubble/errors"
	"github.com/diwise/bubble-client/pkg/bubble/types/entities"
	testutils "github.com/diwise/service-chassis/pkg/test/http"
	"github.com/diwise/service-chassis/pkg/test/http/expects"
	"github.com/diwise/service-chassis/pkg/test/http/response"

	"github.com/matryer/is"
)

var Expects = testutils.Expects
var Returns = testutils.Returns
var anyInput = expects.AnyInput
var method = expects.RequestMethod
var path = expects.RequestPath
var body = expects.RequestBody

func TestGetSendsBearerTokenAndEncodedQuery(t *testing.T) {
	is := is.New(t)

	s := testutils.NewMockServiceThat(
		Expects(
			is,
			method(http.MethodGet),
			path("/api/1.1/obj/user"),
			HeaderEquals("Authorization", "Bearer s3cr3t"),
			QueryParamEquals("cursor", "10"),
			QueryParamEquals("sort_field", "name"),
			QueryParamEquals("descending", "true"),
			QueryParamEquals("constraints", `[{"constraint_type":"greater than","key":"age","value":30}]`),
		),
		Returns(
			response.ContentType("application/json"),
			response.Code(http.StatusOK),
			response.Body([]byte(`{"response":{"cursor":10,"results":[],"count":0,"remaining":0}}`)),
		),
	)
	defer s.Close()

	c := NewClient(s.URL(), "s3cr3t")

	_, err := c.Get(context.Background(), "/api/1.1/obj/user", map[string]any{
		"cursor":     10,
		"sort_field": "name",
		"descending": true,
		"constraints": []map[string]any{
			{"key": "age", "constraint_type": "greater than", "value": 30},
		},
	})

	is.NoErr(err)
	is.Equal(s.RequestCount(), 1)
}

func TestAuthorizationHeaderCanBeOverridden(t *testing.T) {
	is := is.New(t)

	s := testutils.NewMockServiceThat(
		Expects(is, HeaderEquals("Authorization", "Basic abc"), HeaderEquals("X-Tenant", "t1")),
		Returns(response.Code(http.StatusOK)),
	)
	defer s.Close()

	c := NewClient(s.URL(), "ignored", Headers(map[string]string{"authorization": "Basic abc", "X-Tenant": "t1"}))

	_, err := c.Get(context.Background(), "/api/1.1/obj/user", nil)
	is.NoErr(err)
}

func TestPostEncodesDatesAndEntities(t *testing.T) {
	is := is.New(t)

	s := testutils.NewMockServiceThat(
		Expects(
			is,
			method(http.MethodPost),
			path("/api/1.1/obj/order"),
			body(`{"customer":{"name":"Ada"},"placed":"2024-05-01T12:30:00Z"}`),
			HeaderEquals("Content-Type", "application/json"),
		),
		Returns(
			response.Code(http.StatusCreated),
			response.Body([]byte(`{"status":"success","id":"1x1"}`)),
		),
	)
	defer s.Close()

	c := NewClient(s.URL(), "token")

	customer := entities.New("customer", entities.ID("c1"), entities.A("name", "Ada"))
	placed := time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)

	b, err := c.Post(context.Background(), "/api/1.1/obj/order", nil, map[string]any{
		"customer": customer,
		"placed":   placed,
	})

	is.NoErr(err)
	is.Equal(string(b), `{"status":"success","id":"1x1"}`)
}

func TestCustomEncoderIsUsedForBodies(t *testing.T) {
	is := is.New(t)

	s := testutils.NewMockServiceThat(
		Expects(is, method(http.MethodPut), body(`custom`)),
		Returns(response.Code(http.StatusNoContent)),
	)
	defer s.Close()

	c := NewClient(s.URL(), "token").WithEncoder(EncoderFunc(func(v any) ([]byte, error) {
		return []byte("custom"), nil
	}))

	_, err := c.Put(context.Background(), "/api/1.1/obj/order/1x1", nil, map[string]any{"a": 1})
	is.NoErr(err)
}

func TestNonSuccessStatusIsReturnedAsError(t *testing.T) {
	is := is.New(t)

	s := testutils.NewMockServiceThat(
		Expects(is, anyInput()),
		Returns(
			response.ContentType("application/json"),
			response.Code(http.StatusBadRequest),
			response.Body([]byte(`{"statusCode":400,"body":{"status":"INVALID_DATA","message":"bad constraint"}}`)),
		),
	)
	defer s.Close()

	c := NewClient(s.URL(), "token")

	_, err := c.Get(context.Background(), "/api/1.1/obj/user", nil)

	is.True(err != nil)
	is.True(errors.Is(err, bubbleerrors.ErrBadRequest))
	is.Equal(err.Error(), "[code: 400, status: INVALID_DATA] bad constraint")
}

func TestServerErrorIsNotRetried(t *testing.T) {
	is := is.New(t)

	s := testutils.NewMockServiceThat(
		Expects(is, anyInput()),
		Returns(response.Code(http.StatusServiceUnavailable)),
	)
	defer s.Close()

	c := NewClient(s.URL(), "token")

	_, err := c.Delete(context.Background(), "/api/1.1/obj/user/1x1", nil)

	is.True(errors.Is(err, bubbleerrors.ErrInternal))
	is.Equal(bubbleerrors.StatusCode(err), http.StatusServiceUnavailable)
	is.Equal(s.RequestCount(), 1)
}

func TestUnconfiguredClientFailsAtPointOfUse(t *testing.T) {
	is := is.New(t)

	c := NewClient("", "token")

	_, err := c.Get(context.Background(), "/api/1.1/obj/user", nil)

	is.True(errors.Is(err, bubbleerrors.ErrNotConfigured))
}

func HeaderEquals(name, value string) func(*is.I, *http.Request) {
	return func(is *is.I, r *http.Request) {
		is.Equal(r.Header.Get(name), value) // header should match
	}
}

func QueryParamEquals(name, value string) func(*is.I, *http.Request) {
	return func(is *is.I, r *http.Request) {
		is.True(r.URL.Query().Has(name))         // query param should exist
		is.Equal(r.URL.Query().Get(name), value) // query param should match
	}
}
