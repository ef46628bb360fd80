// Package testdoubles provides spies and in-memory fakes shared by the package tests.
//
// The spies capture log records, metrics and tracing calls so observability instrumentation
// can be asserted without a backend. The fakes implement the change log store and the
// catalog lookups in memory, honoring the same semantics as the Postgres implementations.
package testdoubles
