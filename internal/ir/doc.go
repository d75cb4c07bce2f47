// Package ir provides the foundational value and declaration types for REWIND.
//
// This package contains type definitions only. All other internal packages
// import ir; ir imports nothing internal. This keeps the value layer free of
// circular dependencies.
//
// Key design constraints:
//   - Time is float64 seconds everywhere
//   - Option[T] is the only representation of "absent" (never nil pointers)
//   - GraphSpec is plain data; building it into live nodes is internal/graph's job
//   - All JSON and CUE field names use snake_case
package ir
