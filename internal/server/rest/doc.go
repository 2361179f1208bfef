// Package rest exposes palletkeeper over HTTP/JSON using gorilla/mux. It
// maps service errors to status codes and guards protected routes with a
// bearer-token middleware that hands the resolved identity to the handler.
package rest
