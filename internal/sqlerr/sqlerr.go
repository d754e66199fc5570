// Package sqlerr turns data-access failures into errs.HTTPError values.
//
// Postgres constraint violations become 400s with a code such as
// USER_ALREADY_EXISTS and a message naming the offending field; the
// sentinels of the crud client map onto 400 and 404. Everything else is
// hidden behind a generic 500.
package sqlerr
