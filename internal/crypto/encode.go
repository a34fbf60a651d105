package crypto

import "cipherlink/internal/util/memzero"

// Wipe zeroes b. It is best-effort: the runtime may already hold copies.
func Wipe(b []byte) { memzero.Zero(b) }
