// Package testutil provides test utilities, including:
//   - an in-process ephemeris engine (engine.go)
//   - an httptest remote segment store (segments.go)
//   - Miniredis helpers for unit tests (miniredis.go)
//   - Redis container helpers for integration tests (redis.go)
//
// Integration test utilities require Docker and are gated behind the "integration"
// build tag. To run integration tests:
//
//	go test -tags=integration ./...
//
// Unit test helpers do not require Docker and work with regular tests.
package testutil
