// Package domain contains the core entities of the speaker-split service:
// processing jobs and the per-speaker tracks they produce.
package domain
