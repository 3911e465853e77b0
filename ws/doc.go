// Package ws provides the WebSocket transport for libchat.
//
// It wraps gorilla/websocket connections behind the libchat.Conn interface
// and exposes an http.Handler that runs the connect/read/disconnect
// lifecycle against a DeliveryEngine. Each accepted socket gets a bounded
// outbound queue drained by a dedicated write pump, so a slow client can
// never block the delivery path.
package ws
