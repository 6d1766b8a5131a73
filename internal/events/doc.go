// Package events provides job lifecycle events and handler interfaces.
//
// The job manager emits an event at every lifecycle transition (submitted,
// started, completed, failed, cancelled, requeued) without knowing which
// handlers will process it. Handlers are registered at startup; the default
// setup attaches a structured-logging handler.
package events
