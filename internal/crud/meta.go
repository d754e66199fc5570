package crud

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// ModelMeta describes the models a Client may operate on.
//
// Models is keyed by the lower-camel model name ("user", "blogPost"),
// which is also the first segment of an RPC path.
type ModelMeta struct {
	Models map[string]*ModelInfo
}

// ModelInfo maps one model onto a table.
type ModelInfo struct {
	Name     string
	Table    string
	Fields   map[string]*FieldInfo
	IDFields []string
}

// FieldInfo maps one model field onto a column.
type FieldInfo struct {
	Name   string
	Column string
	Type   string
	IsID   bool

	// Optional fields may be omitted on create.
	Optional bool
}

// Lookup finds a model by name. Both "User" and "user" resolve to the same model.
func (m *ModelMeta) Lookup(name string) (*ModelInfo, bool) {
	if m == nil || name == "" {
		return nil, false
	}
	info, ok := m.Models[LowerFirst(name)]
	return info, ok
}

// Field finds a field by name.
func (mi *ModelInfo) Field(name string) (*FieldInfo, bool) {
	f, ok := mi.Fields[name]
	return f, ok
}

// ColumnName returns the column for f, defaulting to the field name.
func (f *FieldInfo) ColumnName() string {
	if f.Column != "" {
		return f.Column
	}
	return f.Name
}

// TableName returns the table for mi, defaulting to the lower-cased model name.
func (mi *ModelInfo) TableName() string {
	if mi.Table != "" {
		return mi.Table
	}
	return strings.ToLower(mi.Name)
}

// LowerFirst lower-cases the first rune of s.
func LowerFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToLower(r)) + s[size:]
}
