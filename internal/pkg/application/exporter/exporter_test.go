package exporter

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/diwise/bubble-client/internal/pkg/application/sandbox"
	"github.com/diwise/bubble-client/internal/pkg/infrastructure/router"
	"github.com/diwise/bubble-client/internal/pkg/presentation/api/dataapi"
	"github.com/diwise/bubble-client/internal/pkg/presentation/api/dataapi/auth"
	"github.com/diwise/bubble-client/pkg/bubble/cache"
	"github.com/diwise/bubble-client/pkg/bubble/client"
	"github.com/matryer/is"
)

func TestExportResolvesReferences(t *testing.T) {
	is, c := setupTest(t)

	cfg, err := LoadConfiguration(strings.NewReader(exportConfig))
	is.NoErr(err)

	objectCache, err := cache.New(cache.DefaultConfig())
	is.NoErr(err)

	buf := &bytes.Buffer{}
	count, err := New(c, *cfg, WithCache(objectCache)).Export(context.Background(), buf)
	is.NoErr(err)
	is.Equal(count, 4)

	records := decodeLines(is, buf)
	is.Equal(len(records), 4)

	is.Equal(records[0]["type"], "order")
	first := records[0]["object"].(map[string]any)
	is.Equal(first["_id"], "o1")
	is.Equal(first["Placed By"].(map[string]any)["name"], "Ada")
	is.Equal(len(first["Reviewers"].([]any)), 2)

	second := records[1]["object"].(map[string]any)
	is.Equal(second["_id"], "o2")
	is.Equal(second["Placed By"], nil)

	is.Equal(records[2]["type"], "user")
	is.Equal(records[3]["object"].(map[string]any)["name"], "Grace")

	// only the single reference is read through the cache, the list is scanned
	is.Equal(objectCache.Size(), 1)
}

func TestExportAppliesConstraints(t *testing.T) {
	is, c := setupTest(t)

	cfg, err := LoadConfiguration(strings.NewReader(`
exports:
  - type: user
    constraints:
      - key: age
        type: greater than
        value: 50
    omit: [age, Created Date]
`))
	is.NoErr(err)

	buf := &bytes.Buffer{}
	count, err := New(c, *cfg).Export(context.Background(), buf)
	is.NoErr(err)
	is.Equal(count, 1)

	records := decodeLines(is, buf)
	grace := records[0]["object"].(map[string]any)
	is.Equal(grace["_id"], "u2")

	_, hasAge := grace["age"]
	is.True(!hasAge)
	_, hasCreated := grace["Created Date"]
	is.True(!hasCreated)
}

func TestExportFailsForUnauthorizedClient(t *testing.T) {
	is, url := setupSandbox(t)

	cfg, _ := LoadConfiguration(strings.NewReader("exports:\n  - type: user\n"))

	_, err := New(client.NewClient(url, "wrong"), *cfg).Export(context.Background(), &bytes.Buffer{})
	is.True(err != nil)
}

func TestInvalidConfigurationIsRejected(t *testing.T) {
	is := is.New(t)

	_, err := LoadConfiguration(strings.NewReader("exports:\n  - joins:\n      - field: x\n"))
	is.True(err != nil)

	_, err = LoadConfiguration(strings.NewReader("exports:\n  - type: order\n    joins:\n      - field: Placed By\n"))
	is.True(err != nil)
}

func decodeLines(is *is.I, buf *bytes.Buffer) []map[string]any {
	records := []map[string]any{}

	d := json.NewDecoder(buf)
	for d.More() {
		r := map[string]any{}
		is.NoErr(d.Decode(&r))
		records = append(records, r)
	}

	return records
}

func setupTest(t *testing.T) (*is.I, client.Client) {
	is, url := setupSandbox(t)
	return is, client.NewClient(url, "s3cr3t")
}

func setupSandbox(t *testing.T) (*is.I, string) {
	is := is.New(t)
	ctx := context.Background()

	cfg, err := sandbox.LoadConfiguration(strings.NewReader(seed))
	is.NoErr(err)

	store, err := sandbox.New(ctx, *cfg)
	is.NoErr(err)

	r := router.New("test")
	is.NoErr(dataapi.RegisterHandlers(ctx, r, strings.NewReader(auth.DefaultPolicy), "s3cr3t", store))

	ts := httptest.NewServer(r)
	t.Cleanup(ts.Close)

	return is, ts.URL
}

const exportConfig string = `
exports:
  - type: order
    sortField: Created Date
    joins:
      - field: Placed By
        type: user
      - field: Reviewers
        type: user
        scan: true
  - type: user
`

const seed string = `
seed:
  - type: user
    objects:
      - _id: u1
        name: Ada
        age: 36
      - _id: u2
        name: Grace
        age: 85
  - type: order
    objects:
      - _id: o1
        Placed By: u1
        Reviewers: [u1, u2]
        Created Date: "2024-01-01T00:00:00.000Z"
      - _id: o2
        Created Date: "2024-01-02T00:00:00.000Z"
`
