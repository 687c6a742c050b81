// Package connection provides the raw WebSocket transport. A Client owns one
// gorilla/websocket connection: it dials with signed auth headers, pumps
// every inbound frame onto a timestamped message channel, and reports
// transport faults on an error channel. Command correlation and reconnect
// policy live one layer up, in the session package.
package connection
