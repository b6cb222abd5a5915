package bubble

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ObjectsPath is the root of the data api object endpoints
const ObjectsPath string = "/api/1.1/obj"

// Page is one batch of results from a list request
type Page struct {
	Cursor    int              `json:"cursor"`
	Results   []map[string]any `json:"results"`
	Count     int              `json:"count"`
	Remaining int              `json:"remaining"`
}

// Total is the number of objects the remote store reports for the query
func (p Page) Total() int {
	return p.Cursor + p.Count + p.Remaining
}

// Holds reports whether the result at the absolute offset is part of this page
func (p Page) Holds(offset int) bool {
	return offset >= p.Cursor && offset < p.Cursor+len(p.Results)
}

// Last reports whether the remote store has nothing beyond this page
func (p Page) Last() bool {
	return p.Remaining <= 0
}

func NewPageFromJSON(body []byte) (*Page, error) {
	envelope := struct {
		Response *Page `json:"response"`
	}{}

	if err := decode(body, &envelope); err != nil {
		return nil, fmt.Errorf("failed to unmarshal page: %w", err)
	}

	if envelope.Response == nil {
		return nil, fmt.Errorf("response envelope missing from page")
	}

	page := envelope.Response
	if page.Count == 0 && len(page.Results) > 0 {
		page.Count = len(page.Results)
	}

	return page, nil
}

type CreateResult struct {
	Status string `json:"status"`
	ID     string `json:"id"`
}

func NewCreateResultFromJSON(body []byte) (*CreateResult, error) {
	result := &CreateResult{}
	if err := json.Unmarshal(body, result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal create result: %w", err)
	}

	if result.ID == "" {
		return nil, fmt.Errorf("create result did not contain an id")
	}

	return result, nil
}

// NewObjectFromJSON decodes a single object response, either wrapped in a
// response envelope or as the raw record. An empty response yields nil.
func NewObjectFromJSON(body []byte) (map[string]any, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, nil
	}

	var obj map[string]any
	if err := decode(body, &obj); err != nil {
		return nil, fmt.Errorf("failed to unmarshal object: %w", err)
	}

	if inner, ok := obj["response"]; ok && len(obj) == 1 {
		if inner == nil {
			return nil, nil
		}

		innerObj, ok := inner.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("unexpected response type %T", inner)
		}
		obj = innerObj
	}

	if len(obj) == 0 {
		return nil, nil
	}

	return obj, nil
}

func decode(body []byte, v any) error {
	d := json.NewDecoder(bytes.NewReader(body))
	d.UseNumber()
	return d.Decode(v)
}
