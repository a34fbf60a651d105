package types

// SessionState is the per-contact ratchet position. Version increases by one
// on every committed overwrite, including re-handshakes.
//
// Handshake is the header that created the session, on both sides. The
// initiator keeps Pending set and attaches Handshake to outgoing envelopes
// until the first message from the contact decrypts, which proves the
// contact accepted it. The responder uses Handshake to recognise repeats of
// a header it already accepted.
type SessionState struct {
	ChainKey  ChainKey         `json:"chain_key"`
	Version   uint64           `json:"version"`
	Handshake *HandshakeHeader `json:"handshake,omitempty"`
	Pending   bool             `json:"pending,omitempty"`
}

// Wipe zeroes the chain key.
func (s *SessionState) Wipe() { clear(s.ChainKey[:]) }

// PendingHandshake returns the header to attach to the next outgoing
// envelope, or nil once the contact has answered.
func (s SessionState) PendingHandshake() *HandshakeHeader {
	if !s.Pending || s.Handshake == nil {
		return nil
	}
	h := *s.Handshake
	return &h
}

// Advance returns the state after one ratchet step. A step driven by a
// received message clears Pending.
func (s SessionState) Advance(next ChainKey, received bool) SessionState {
	return SessionState{
		ChainKey:  next,
		Version:   s.Version + 1,
		Handshake: s.Handshake,
		Pending:   s.Pending && !received,
	}
}

// HandshakeHeader carries the initiator's handshake parameters in the first
// message of a new session. There is no separate handshake message.
type HandshakeHeader struct {
	IdentityKey     X25519Public     `json:"identity_key"`
	EphemeralKey    X25519Public     `json:"ephemeral_key"`
	OneTimePreKeyID *OneTimePreKeyID `json:"onetime_prekey_id,omitempty"`
}

// SameHandshake reports whether h and o describe the same handshake. The
// ephemeral key is fresh per attempt, so it identifies the attempt.
func (h *HandshakeHeader) SameHandshake(o *HandshakeHeader) bool {
	if h == nil || o == nil {
		return false
	}
	return h.IdentityKey == o.IdentityKey && h.EphemeralKey == o.EphemeralKey
}
