// Package normalize maps raw provider responses onto the canonical models.
// Raw provider JSON never leaves this package.
package normalize

import (
	"bytes"
	"strings"

	json "github.com/goccy/go-json"

	apperrors "github.com/Hrushikesh9921/AIStockAnalyser/internal/errors"
)

// Variant is the closed set of response shapes providers use.
type Variant int

const (
	// BareArray is a top-level JSON array.
	BareArray Variant = iota + 1
	// BareObject is a top-level JSON object without a status wrapper.
	BareObject
	// StatusWrapped is Kite's {"status": ..., "data": ...} envelope.
	StatusWrapped
	// CSVTable is a comma-separated dump with a header row.
	CSVTable
)

func (v Variant) String() string {
	switch v {
	case BareArray:
		return "BareArray"
	case BareObject:
		return "BareObject"
	case StatusWrapped:
		return "StatusWrapped"
	case CSVTable:
		return "CSVTable"
	}
	return "Unknown"
}

// Envelope is a classified response body.
type Envelope struct {
	Variant Variant

	// Array is set for BareArray.
	Array []any
	// Object is set for BareObject.
	Object map[string]any

	// Status, Data, Message and ErrorType are set for StatusWrapped.
	Status    string
	Data      any
	Message   string
	ErrorType string

	// Table is set for CSVTable.
	Table []byte
}

// Classify decodes body and matches it against the known variants.
// Anything else is a SchemaError.
func Classify(contentType string, body []byte) (Envelope, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return Envelope{}, apperrors.NewSchemaError("envelope", "", "empty response body")
	}

	if strings.Contains(strings.ToLower(contentType), "csv") {
		return Envelope{Variant: CSVTable, Table: trimmed}, nil
	}
	if trimmed[0] != '{' && trimmed[0] != '[' {
		return Envelope{}, apperrors.NewSchemaError("envelope", "",
			"unexpected "+mediaType(contentType)+" body: "+snippet(trimmed))
	}

	var raw any
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return Envelope{}, apperrors.NewSchemaError("envelope", "", "malformed JSON: "+err.Error())
	}
	return classifyValue(raw)
}

func classifyValue(raw any) (Envelope, error) {
	switch v := raw.(type) {
	case []any:
		return Envelope{Variant: BareArray, Array: v}, nil
	case map[string]any:
		status, hasStatus := v["status"].(string)
		_, hasData := v["data"]
		if hasStatus && (hasData || status == "error") {
			env := Envelope{Variant: StatusWrapped, Status: status, Data: v["data"]}
			env.Message, _ = v["message"].(string)
			env.ErrorType, _ = v["error_type"].(string)
			return env, nil
		}
		return Envelope{Variant: BareObject, Object: v}, nil
	}
	return Envelope{}, apperrors.NewSchemaError("envelope", "", "top-level value is neither an object, an array nor CSV")
}

// Payload unwraps a successful status envelope and passes bare shapes
// through. A wrapped "error" status surfaces as an HTTPError carrying the
// provider's message, since some gateways answer 200 with an error body.
func (e Envelope) Payload() (any, error) {
	switch e.Variant {
	case BareArray:
		return e.Array, nil
	case BareObject:
		return e.Object, nil
	case StatusWrapped:
		if e.Status != "success" {
			return nil, apperrors.NewHTTPError(200, e.ErrorType, e.Message, "")
		}
		return e.Data, nil
	case CSVTable:
		return e.Table, nil
	}
	return nil, apperrors.NewSchemaError("envelope", "", "unclassified envelope")
}

// PayloadObject returns the payload, requiring it to be an object.
func (e Envelope) PayloadObject(entity string) (map[string]any, error) {
	p, err := e.Payload()
	if err != nil {
		return nil, err
	}
	obj, ok := p.(map[string]any)
	if !ok {
		return nil, apperrors.NewSchemaError(entity, "", "expected an object payload, got "+e.Variant.String()+" "+typeName(p))
	}
	return obj, nil
}

// PayloadArray returns the payload, requiring it to be an array.
func (e Envelope) PayloadArray(entity string) ([]any, error) {
	p, err := e.Payload()
	if err != nil {
		return nil, err
	}
	arr, ok := p.([]any)
	if !ok {
		return nil, apperrors.NewSchemaError(entity, "", "expected an array payload, got "+typeName(p))
	}
	return arr, nil
}

func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	case string:
		return "string"
	case float64:
		return "number"
	case bool:
		return "bool"
	case []byte:
		return "table"
	}
	return "unknown"
}

func mediaType(contentType string) string {
	mt, _, _ := strings.Cut(contentType, ";")
	if mt = strings.TrimSpace(mt); mt == "" {
		return "untyped"
	}
	return mt
}

// snippet returns the start of body for error messages.
func snippet(body []byte) string {
	const n = 64
	if len(body) > n {
		return string(body[:n]) + "..."
	}
	return string(body)
}
