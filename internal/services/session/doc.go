// Package session establishes sessions with the handshake.
//
// The initiator fetches the contact's bundle from the key directory; the
// responder consumes the header attached to the first message. Both commit
// the derived chain key under the per-contact lock shared with the message
// service.
package session
