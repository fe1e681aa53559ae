// Package client is a thin gRPC client for the dirlist service. It maps
// transport status codes back to the errors callers can act on.
package client
