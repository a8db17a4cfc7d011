// Package form defines the records managed by the console catalog. A Record
// pairs the human facing name of a form with the routing path used by the
// form hosting service and an opaque Schema blob produced by the visual
// builder. Identifiers are derived once from the name at creation time and
// never recomputed, so renaming a form does not move its published address.
package form
