// Package api is a minimal REST client for the exchange HTTP API. The
// collector uses it once at startup: to check exchange status and to resolve
// event tickers into the market tickers a stream session will subscribe to.
// Requests are signed with the same RSA key as the WebSocket handshake.
package api
