package objects

import (
	"encoding/json"
	"maps"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"testing"

	"github.com/diwise/bubble-client/pkg/bubble/client"
)

// collectionServer serves fixed collections the way the data api does,
// splitting list results into pages of at most pageSize objects.
type collectionServer struct {
	mu          sync.Mutex
	pageSize    int
	collections map[string][]map[string]any
	failing     map[string]bool
	requests    []*url.URL

	server *httptest.Server
}

func newCollectionServer(t *testing.T, pageSize int) *collectionServer {
	s := &collectionServer{
		pageSize:    pageSize,
		collections: map[string][]map[string]any{},
		failing:     map[string]bool{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/1.1/obj/{type}", s.list)
	mux.HandleFunc("GET /api/1.1/obj/{type}/{id}", s.find)
	mux.HandleFunc("PATCH /api/1.1/obj/{type}/{id}", s.modify)

	s.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		u := *r.URL
		s.requests = append(s.requests, &u)
		s.mu.Unlock()

		mux.ServeHTTP(w, r)
	}))

	t.Cleanup(s.server.Close)

	return s
}

func (s *collectionServer) with(typeName string, records ...map[string]any) *collectionServer {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.collections[typeName] = append(s.collections[typeName], records...)
	return s
}

// failOn makes reads of the given ids answer with an internal server error
func (s *collectionServer) failOn(ids ...string) *collectionServer {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range ids {
		s.failing[id] = true
	}
	return s
}

func (s *collectionServer) client() client.Client {
	return client.NewClient(s.server.URL, "token")
}

func (s *collectionServer) requestCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.requests)
}

func (s *collectionServer) requestsTo(path string) []url.Values {
	s.mu.Lock()
	defer s.mu.Unlock()

	var queries []url.Values
	for _, u := range s.requests {
		if u.Path == path {
			queries = append(queries, u.Query())
		}
	}

	return queries
}

func (s *collectionServer) list(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	records := s.collections[r.PathValue("type")]
	s.mu.Unlock()

	cursor, _ := strconv.Atoi(r.URL.Query().Get("cursor"))
	limit := s.pageSize
	if l, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && l < limit {
		limit = l
	}

	start := min(cursor, len(records))
	end := min(start+limit, len(records))
	results := records[start:end]

	writeJSON(w, http.StatusOK, map[string]any{
		"response": map[string]any{
			"cursor":    cursor,
			"results":   results,
			"count":     len(results),
			"remaining": len(records) - end,
		},
	})
}

func (s *collectionServer) find(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failing[r.PathValue("id")] {
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"statusCode": 500,
			"body":       map[string]any{"status": "ERROR", "message": "database unavailable"},
		})
		return
	}

	for _, record := range s.collections[r.PathValue("type")] {
		if record["_id"] == r.PathValue("id") {
			writeJSON(w, http.StatusOK, map[string]any{"response": record})
			return
		}
	}

	writeJSON(w, http.StatusNotFound, map[string]any{
		"statusCode": 404,
		"body":       map[string]any{"status": "NOT_FOUND", "message": "missing object"},
	})
}

func (s *collectionServer) modify(w http.ResponseWriter, r *http.Request) {
	fields := map[string]any{}
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i, record := range s.collections[r.PathValue("type")] {
		if record["_id"] == r.PathValue("id") {
			updated := maps.Clone(record)
			maps.Copy(updated, fields)
			s.collections[r.PathValue("type")][i] = updated
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}

	w.WriteHeader(http.StatusNotFound)
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

func record(id string, kv ...any) map[string]any {
	r := map[string]any{"_id": id}
	for i := 0; i+1 < len(kv); i += 2 {
		r[kv[i].(string)] = kv[i+1]
	}
	return r
}

func idsOf(t *testing.T, c *Cursor) []string {
	t.Helper()

	ids := []string{}
	for e, err := range c.All(t.Context()) {
		if err != nil {
			t.Fatalf("unexpected error: %s", err.Error())
		}
		ids = append(ids, e.ID())
	}

	return ids
}
