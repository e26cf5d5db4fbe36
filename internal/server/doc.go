// Package server implements the relay side of chatrelay: the Hub that owns
// the live-connection set, the per-connection read and write pumps, and the
// HTTP surface that upgrades browsers and terminal clients to WebSocket.
//
// Inbound events (newuser, exituser, chat) are decoded by a dispatch table
// and re-emitted as update or chat events to every connection except the
// one they came from.
package server
