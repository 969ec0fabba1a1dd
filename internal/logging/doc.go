// Package logging provides slog construction helpers, shared attribute
// keys, and a console handler tuned for operator-facing output.
package logging
