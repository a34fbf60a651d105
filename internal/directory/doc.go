// Package directory implements the key directory used to exchange public key
// bundles.
//
// Client is the HTTP implementation of domain.DirectoryClient. Server is a
// development directory that speaks the same protocol, backed by either
// MemoryBackend or RedisBackend:
//
//	POST /keys/upload/{accountId}   upload bundle with the one-time pre-key batch
//	GET  /keys/{accountId}          bundle with at most one one-time pre-key, or 404
//	GET  /health
//
// All requests are JSON over HTTP and accept a context for cancellation and
// deadlines. Non-2xx statuses are returned as *HTTPError carrying the method,
// path and status text.
package directory
