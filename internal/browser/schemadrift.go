package browser

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// SchemaDrift learns the field-and-type shape of an upstream JSON response
// and flags subsequent responses that structurally diverge from it.
//
// Adapted from the teacher's payload.Validator: the upstream auction API
// changes response shape without notice (fields renamed, a new required
// field added, a number turned into a string), any of which can silently
// corrupt the typed projection in extractLotSearch/extractLotImages. This is
// not a hard failure per spec §4.4 — the response is still decoded and
// emitted — Validate only returns the mismatches to its caller, and
// extractLotSearch, its one caller, discards them without logging.
//
// Safe for concurrent use: the baseline is behind a sync.RWMutex, since a
// worker's hijack handler can run for several requests at once and all of
// them share that worker's one SchemaDrift (used for lot search bodies only).
type DriftKind string

const (
	DriftMissing    DriftKind = "missing_field"
	DriftAdded      DriftKind = "added_field"
	DriftTypeChange DriftKind = "type_change"
)

// Mismatch describes one structural difference from the learned baseline.
type Mismatch struct {
	Kind         DriftKind
	Field        string
	BaselineType string
	CurrentType  string
}

func (m Mismatch) String() string {
	switch m.Kind {
	case DriftMissing:
		return fmt.Sprintf("schema drift [%s] field %q missing (was %s)", m.Kind, m.Field, m.BaselineType)
	case DriftAdded:
		return fmt.Sprintf("schema drift [%s] field %q added (type %s)", m.Kind, m.Field, m.CurrentType)
	case DriftTypeChange:
		return fmt.Sprintf("schema drift [%s] field %q type changed %s -> %s", m.Kind, m.Field, m.BaselineType, m.CurrentType)
	default:
		return fmt.Sprintf("schema drift [%s] field %q", m.Kind, m.Field)
	}
}

type fieldSchema map[string]string

// SchemaDrift detects structural drift in a stream of same-shaped JSON
// responses against a learned baseline.
type SchemaDrift struct {
	mu       sync.RWMutex
	baseline fieldSchema
}

// NewSchemaDrift creates a SchemaDrift with no baseline; the first call to
// Validate establishes it.
func NewSchemaDrift() *SchemaDrift {
	return &SchemaDrift{}
}

// Validate compares data against the baseline, learning it first if absent.
// Returns an error only if data is not a JSON object.
func (d *SchemaDrift) Validate(data []byte) ([]Mismatch, error) {
	current, err := extractFieldSchema(data)
	if err != nil {
		return nil, fmt.Errorf("browser: schema drift validate: %w", err)
	}

	d.mu.Lock()
	if d.baseline == nil {
		d.baseline = current
		d.mu.Unlock()
		return nil, nil
	}
	baseline := copyFieldSchema(d.baseline)
	d.mu.Unlock()

	return diffFieldSchemas(baseline, current), nil
}

func extractFieldSchema(data []byte) (fieldSchema, error) {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("unmarshal: %w", err)
	}
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected JSON object, got %T", raw)
	}
	s := make(fieldSchema)
	flattenFieldSchema(obj, "", s)
	return s, nil
}

func flattenFieldSchema(obj map[string]any, prefix string, s fieldSchema) {
	for k, v := range obj {
		path := k
		if prefix != "" {
			path = prefix + "." + k
		}
		switch val := v.(type) {
		case map[string]any:
			s[path] = "object"
			flattenFieldSchema(val, path, s)
		case []any:
			s[path] = "array"
		case string:
			s[path] = "string"
		case float64:
			s[path] = "number"
		case bool:
			s[path] = "bool"
		case nil:
			s[path] = "null"
		default:
			s[path] = "unknown"
		}
	}
}

func diffFieldSchemas(baseline, current fieldSchema) []Mismatch {
	var mismatches []Mismatch
	for field, bType := range baseline {
		cType, ok := current[field]
		if !ok {
			mismatches = append(mismatches, Mismatch{Kind: DriftMissing, Field: field, BaselineType: bType})
			continue
		}
		if cType != bType {
			mismatches = append(mismatches, Mismatch{Kind: DriftTypeChange, Field: field, BaselineType: bType, CurrentType: cType})
		}
	}
	for field, cType := range current {
		if _, ok := baseline[field]; !ok {
			mismatches = append(mismatches, Mismatch{Kind: DriftAdded, Field: field, CurrentType: cType})
		}
	}
	sort.Slice(mismatches, func(i, j int) bool {
		if mismatches[i].Field != mismatches[j].Field {
			return mismatches[i].Field < mismatches[j].Field
		}
		return string(mismatches[i].Kind) < string(mismatches[j].Kind)
	})
	return mismatches
}

func copyFieldSchema(s fieldSchema) fieldSchema {
	out := make(fieldSchema, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}
