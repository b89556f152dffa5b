// pkg/recordschema/schema.go
package recordschema

// Registry holds the JSON Schema each staged record payload must satisfy.
type Registry struct {
	Version     string         `json:"version"`
	LastUpdated string         `json:"lastUpdated"`
	Schemas     []RecordSchema `json:"schemas"`
}

type RecordSchema struct {
	EntityType  string                 `json:"entityType"`
	Version     string                 `json:"version"`
	Description string                 `json:"description"`
	Schema      map[string]interface{} `json:"schema"`
}

// Violation is one schema failure on a payload.
type Violation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}
