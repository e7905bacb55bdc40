// Package model provides the data model for metasync.
//
// This package contains type definitions and the small amount of behaviour
// that belongs to them (value coercion, Pending Export status aggregation).
// All other internal packages import model; model imports nothing internal.
//
// Key design constraints:
//   - Attribute values are a sealed union (Value); one concrete type per DataType
//   - Cross-aggregate references are ids (int attribute ids, uuid object ids),
//     never pointers, so rules and objects stay plain values
//   - A PendingExport exclusively owns its AttributeChanges
//   - All JSON tags use snake_case
package model
