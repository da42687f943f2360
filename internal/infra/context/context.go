// Package context holds the request-scoped values shared between transport,
// services and logging.
package context

type contextKey string
