// Package test provides infrastructure for integration testing of cloudjob.
//
// A Suite wires the real pieces together: a file based SQLite ledger, the
// fiber API server behind httptest, the Go API client and DigitalOcean
// services answered by test/mocks. Tests drive jobs through the client and
// script provider behaviour through the mocks.
//
// Example Usage:
//
//	func TestExample(t *testing.T) {
//	    suite := test.NewSuite(t)
//	    defer suite.Cleanup()
//
//	    // Use suite.APIClient to await jobs
//	    // Use suite.MockDO to configure provider behavior
//	}
package test
