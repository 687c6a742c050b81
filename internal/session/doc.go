// Package session runs one stream collection session over a single WebSocket
// connection. The session subscribes every tracked market on the orderbook,
// trade and lifecycle channels, pumps every inbound frame through the
// dispatcher in one goroutine, and reconnects with exponential backoff when
// the transport fails. It exits on its own when the lifecycle tracker reports
// that every market has been unsubscribed.
//
// Outbound commands are correlated by ID but never awaited inline: the
// dispatcher triggers unsubscribes from within the receive loop, and blocking
// there on a response the same loop must read would deadlock. Responses are
// matched to pending commands as they arrive; a rejected subscribe that was
// part of session startup is fatal, anything else is logged.
package session
