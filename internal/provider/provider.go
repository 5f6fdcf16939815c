// Package provider contains external lookup client implementations.
//
// The Lookup interface is defined in internal/suggest (suggest.Lookup),
// following the Go convention of defining interfaces where they are consumed.
// Each sub-package here implements that interface for a specific service.
package provider
