// Package store provides the relational domain model and repositories for
// users, projects, modes, cross-project access edges, sessions, and
// personalized prompts.
//
// Storage is GORM-backed with selectable drivers (sqlite, mysql, postgres).
// Cascading deletes are expressed as explicit, ordered deletes in the
// repository layer rather than ORM relationship flags, so the operation is
// auditable and storage-agnostic. Session history is a structured value at
// the domain layer and is serialized to JSON only at this boundary.
package store
