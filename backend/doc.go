// Package backend holds the database-agnostic building blocks shared by backend adapters:
// a statement intermediate representation (select/insert/update/delete plus a condition tree),
// result DTOs, transaction enums and the sentinel errors every adapter maps its driver errors onto.
//
// The types in this package are pure data. Rendering them into a concrete SQL dialect and
// executing them is the job of an engine package such as postgresengine.
package backend
