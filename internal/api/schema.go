package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/Daniel-Ric/PlayFab-Purchase-Service/internal/domain"
	"github.com/xeipuuv/gojsonschema"
)

const purchaseFields = `
	"xuid": {"type": "string"},
	"correlationId": {"type": "string"},
	"deviceSessionId": {"type": "string"},
	"seq": {"type": "integer"},
	"buildPlat": {"type": "integer"},
	"clientIdPurchase": {"type": "string"},
	"editionType": {"type": "string"}`

const flexBool = `{"enum": [true, false, "true", "false"]}`

var (
	quoteSchema = mustSchema(`{
		"type": "object",
		"required": ["offerId", "price"],
		"additionalProperties": false,
		"properties": {
			"offerId": {"type": "string"},
			"price": {"type": "number", "minimum": 0},
			"details": {"type": "object"}
		}
	}`)

	virtualSchema = mustSchema(`{
		"type": "object",
		"required": ["offerId", "price"],
		"additionalProperties": false,
		"properties": {
			"offerId": {"type": "string"},
			"price": {"type": "number", "minimum": 0},` + purchaseFields + `,
			"includePostState": ` + flexBool + `
		}
	}`)

	bulkSchema = mustSchema(`{
		"type": "object",
		"required": ["items"],
		"additionalProperties": false,
		"properties": {
			"items": {
				"type": "array",
				"minItems": 1,
				"items": {
					"type": "object",
					"required": ["offerId", "price"],
					"additionalProperties": false,
					"properties": {
						"offerId": {"type": "string"},
						"price": {"type": "number", "minimum": 0},` + purchaseFields + `
					}
				}
			},` + purchaseFields + `,
			"includePostState": ` + flexBool + `
		}
	}`)

	ratingSchema = mustSchema(`{
		"type": "object",
		"required": ["itemId", "rating"],
		"additionalProperties": false,
		"properties": {
			"itemId": {"type": "string", "minLength": 1},
			"rating": {"type": "integer", "minimum": 1, "maximum": 5},
			"isInstalled": ` + flexBool + `
		}
	}`)
)

func mustSchema(src string) *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		panic(fmt.Sprintf("invalid request schema: %v", err))
	}
	return s
}

// decodeBody validates the request body against schema and decodes it into
// dst. An empty body is validated as {}.
func decodeBody(r *http.Request, schema *gojsonschema.Schema, dst any) error {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return domain.BadRequest("Request body too large")
		}
		return domain.BadRequest("Unable to read request body")
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		body = []byte(`{}`)
	}
	if !json.Valid(body) {
		return domain.BadRequest("Invalid JSON body")
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return domain.BadRequest("Invalid JSON body")
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return domain.BadRequest(strings.Join(msgs, "; "))
	}

	body, err = wholeNumbers(body)
	if err != nil {
		return domain.BadRequest("Invalid JSON body")
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return domain.BadRequest("Invalid JSON body")
	}
	return nil
}

// wholeNumbers rewrites integral numbers written with a fraction or exponent
// (5.0, 1e1) in plain integer form, so the schema's "integer" fields decode
// into Go ints.
func wholeNumbers(body []byte) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return json.Marshal(normalizeNumbers(v))
}

func normalizeNumbers(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, child := range t {
			t[k] = normalizeNumbers(child)
		}
	case []any:
		for i, child := range t {
			t[i] = normalizeNumbers(child)
		}
	case json.Number:
		if !strings.ContainsAny(string(t), ".eE") {
			return t
		}
		f, err := t.Float64()
		if err == nil && f == math.Trunc(f) && math.Abs(f) <= 1<<53 {
			return json.Number(strconv.FormatInt(int64(f), 10))
		}
	}
	return v
}

// optionalBool accepts true/false or "true"/"false" and remembers whether it
// was present.
type optionalBool struct {
	set   bool
	value bool
}

func (b *optionalBool) UnmarshalJSON(data []byte) error {
	switch string(data) {
	case "true", `"true"`:
		*b = optionalBool{set: true, value: true}
	case "false", `"false"`:
		*b = optionalBool{set: true, value: false}
	case "null":
	default:
		return fmt.Errorf("invalid boolean %s", data)
	}
	return nil
}

func (b optionalBool) or(def bool) bool {
	if b.set {
		return b.value
	}
	return def
}
