package domain

import "encoding/json"

// AttributeType is the declared type of a stored attribute value.
type AttributeType string

const (
	AttributeTypeBoolean AttributeType = "BOOLEAN"
	AttributeTypeLong    AttributeType = "LONG"
	AttributeTypeDouble  AttributeType = "DOUBLE"
	AttributeTypeString  AttributeType = "STRING"
	AttributeTypeJSON    AttributeType = "JSON"
)

// AttributeKv is one typed attribute key/value pair. Exactly one of the
// value fields is meaningful, selected by Type; StrV doubles as the
// fallback string rendering for unrecognized types.
type AttributeKv struct {
	Key     string
	Type    AttributeType
	BoolV   bool
	LongV   int64
	DoubleV float64
	StrV    string
}

// Value returns the attribute value using its native type, or the
// string rendering for unrecognized types.
func (a AttributeKv) Value() interface{} {
	switch a.Type {
	case AttributeTypeBoolean:
		return a.BoolV
	case AttributeTypeLong:
		return a.LongV
	case AttributeTypeDouble:
		return a.DoubleV
	default:
		return a.StrV
	}
}

// RelationDirection selects which endpoint of a relation the queried
// entity occupies.
type RelationDirection string

const (
	RelationDirectionFrom RelationDirection = "FROM"
	RelationDirectionTo   RelationDirection = "TO"
)

// Relation is a directed, typed link between two domain objects.
type Relation struct {
	From EntityID `json:"from"`
	To   EntityID `json:"to"`
	Type string   `json:"type"`
}

// AdminSetting is one configuration snapshot keyed by a well-known name.
type AdminSetting struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
}
