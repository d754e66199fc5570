// Package repository handles all interactions with the database.
//
// The model API does not use hand-written queries per table: a single
// database.Client renders SQL for every model declared in models.Meta.
package repository
