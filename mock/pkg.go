// Package mock has fixtures shared by the unit tests: the sample manifests that the
// service is exercised with, helpers to build the request bodies a client would
// POST, and throwaway TLS material for the server TLS tests.
package mock
