package crypto

import "crypto/subtle"

// ConstantTimeEq reports whether a and b are byte-identical without
// branching on intermediate byte contents. A length mismatch returns
// false immediately; lengths are not treated as secret. Every
// comparison of identity material, MACs, or proof-derived values goes
// through this function.
func ConstantTimeEq(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}
