/*
Package errors provides structured error handling for the system.

It defines a standard AppError type that includes:
  - Error Code (standardized strings like NOT_FOUND, INTERNAL)
  - Message (human-readable description)
  - Underlying Error (chaining)

It also provides helpers for wrapping errors (Wrap), matching them (Is, As)
and extracting an error's code (CodeOf). Mapping codes to HTTP status is
left to callers.
*/
package errors
