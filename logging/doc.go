// Package logging builds the zap loggers used by the threshold signing
// engine and the zero-knowledge proof protocol.
//
// Secret values (key shares, nonces, prime factors, blinding values) must
// never be passed as fields. Use Redacted when a log line needs to record
// that a secret was involved.
package logging
