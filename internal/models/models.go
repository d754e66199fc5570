// Package models declares the models served by the model API.
//
// Meta maps every model onto its table (see database/migrations), and
// Schemas holds the input rules for create and update payloads. Schemas
// is registered as the default bundle when the package is loaded.
package models

import (
	"github.com/deppfellow/go-crud-api/internal/crud"
	"github.com/deppfellow/go-crud-api/internal/schema"
)

func init() {
	schema.RegisterDefault(Schemas)
}

// Meta describes the user and post models.
var Meta = &crud.ModelMeta{
	Models: map[string]*crud.ModelInfo{
		"user": {
			Name:     "User",
			Table:    "users",
			IDFields: []string{"id"},
			Fields: map[string]*crud.FieldInfo{
				"id":        {Name: "id", Type: "BigInt", IsID: true, Optional: true},
				"email":     {Name: "email", Type: "String"},
				"name":      {Name: "name", Type: "String", Optional: true},
				"role":      {Name: "role", Type: "String", Optional: true},
				"createdAt": {Name: "createdAt", Column: "created_at", Type: "DateTime", Optional: true},
				"updatedAt": {Name: "updatedAt", Column: "updated_at", Type: "DateTime", Optional: true},
			},
		},
		"post": {
			Name:     "Post",
			Table:    "posts",
			IDFields: []string{"id"},
			Fields: map[string]*crud.FieldInfo{
				"id":        {Name: "id", Type: "BigInt", IsID: true, Optional: true},
				"title":     {Name: "title", Type: "String"},
				"content":   {Name: "content", Type: "String", Optional: true},
				"published": {Name: "published", Type: "Boolean", Optional: true},
				"views":     {Name: "views", Type: "Int", Optional: true},
				"authorId":  {Name: "authorId", Column: "author_id", Type: "BigInt"},
				"createdAt": {Name: "createdAt", Column: "created_at", Type: "DateTime", Optional: true},
				"updatedAt": {Name: "updatedAt", Column: "updated_at", Type: "DateTime", Optional: true},
			},
		},
	},
}

// Schemas validates user and post input.
var Schemas = schema.NewBundle(map[string]schema.ModelSchemas{
	"user": {
		Create: schema.Rules{
			"email": "required,email,max=255",
			"name":  "omitempty,min=1,max=100",
			"role":  "omitempty,oneof=user admin",
		},
		Update: schema.Rules{
			"email": "required,email,max=255",
			"name":  "omitempty,min=1,max=100",
			"role":  "omitempty,oneof=user admin",
		},
	},
	"post": {
		Create: schema.Rules{
			"title":    "required,min=1,max=200",
			"views":    "omitempty,min=0",
			"authorId": "required,min=1",
		},
		Update: schema.Rules{
			"title": "required,min=1,max=200",
			"views": "omitempty,min=0",
		},
	},
})
