// Package resource implements budgets shared by indexes in one process.
//
// A Controller governs three resources:
//
//   - Memory: decoded payload bytes held by caches (non-blocking, fail-fast)
//   - Concurrency: slots for background decode passes
//   - IO: a token bucket throttling archive reads
//
// All methods are safe for concurrent use, and a nil *Controller is a valid
// unlimited controller.
package resource
