// Package cache provides the byte-budgeted LRU that holds decoded archive
// payloads.
//
// Eviction drops only the cached value; callers keep whatever metadata they
// need to recompute it. Optionally the retained bytes are also reserved on
// a resource.Controller so several caches can share one process-wide limit.
package cache
