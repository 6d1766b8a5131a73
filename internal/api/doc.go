// Package api contains the HTTP handlers for the job endpoints, their
// request/response models, and the mapping from service errors to HTTP
// status codes.
package api
