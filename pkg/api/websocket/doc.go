// Package websocket provides real-time commit streaming via WebSocket.
//
// Clients can connect to /api/v1/graphs/:id/ws to receive a notification
// each time a patch is committed to that graph.
package websocket
