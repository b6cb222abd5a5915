package main

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/diwise/bubble-client/internal/pkg/presentation/api/dataapi/auth"
	testutils "github.com/diwise/service-chassis/pkg/test/http"
	"github.com/diwise/service-chassis/pkg/test/http/expects"
	"github.com/diwise/service-chassis/pkg/test/http/response"
	"github.com/matryer/is"
)

var Expects = testutils.Expects
var Returns = testutils.Returns

func testFlags() FlagMap {
	flags := defaultFlags()
	flags[apiToken] = "t0ken"
	return flags
}

func TestSeededObjectsAreServed(t *testing.T) {
	is := is.New(t)

	handler, stop, err := initialize(context.Background(), testFlags(), strings.NewReader(seed), strings.NewReader(auth.DefaultPolicy))
	is.NoErr(err)
	defer stop()

	ts := httptest.NewServer(handler)
	defer ts.Close()

	resp, body := testRequest(is, ts.URL+"/api/1.1/obj/city/c1", "t0ken", http.MethodGet, nil)
	is.Equal(resp.StatusCode, http.StatusOK)
	is.True(strings.Contains(body, `"name":"Lund"`))
}

func TestChangesArePostedToNotifyEndpoint(t *testing.T) {
	is := is.New(t)

	ms := testutils.NewMockServiceThat(
		Expects(is, expects.RequestMethod(http.MethodPost), expects.RequestBodyContaining(`"event":"updated"`)),
		Returns(response.Code(http.StatusOK)),
	)
	defer ms.Close()

	flags := testFlags()
	flags[notifyEndpoint] = ms.URL()

	handler, stop, err := initialize(context.Background(), flags, strings.NewReader(seed), strings.NewReader(auth.DefaultPolicy))
	is.NoErr(err)

	ts := httptest.NewServer(handler)
	defer ts.Close()

	resp, _ := testRequest(is, ts.URL+"/api/1.1/obj/city/c1", "t0ken", http.MethodPatch, strings.NewReader(`{"population":125000}`))
	is.Equal(resp.StatusCode, http.StatusNoContent)

	stop()
	is.Equal(ms.RequestCount(), 1)
}

func TestTokenIsRequired(t *testing.T) {
	is := is.New(t)

	_, _, err := initialize(context.Background(), defaultFlags(), strings.NewReader(seed), strings.NewReader(auth.DefaultPolicy))
	is.True(err != nil)
}

func testRequest(is *is.I, url, token, method string, body io.Reader) (*http.Response, string) {
	req, _ := http.NewRequest(method, url, body)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	is.NoErr(err)
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	return resp, string(respBody)
}

const seed string = `
seed:
  - type: city
    objects:
      - _id: c1
        name: Lund
`
