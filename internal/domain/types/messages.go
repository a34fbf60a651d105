package types

// Envelope is the application-level message handed to the transport.
// Handshake is present only on the first message of a session.
type Envelope struct {
	From       AccountID        `json:"from"`
	To         AccountID        `json:"to"`
	Handshake  *HandshakeHeader `json:"handshake,omitempty"`
	Ciphertext []byte           `json:"ciphertext"`
	Nonce      Nonce            `json:"nonce"`
}
