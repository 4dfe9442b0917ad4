// Package jwks builds the published JSON Web Key Set.
package jwks

import (
	"github.com/matheuscscp/technews-auth/internal/keys"
)

type KeySet struct {
	Keys []keys.PublicKey `json:"keys"`
}

// ToKeySet maps each key to its public descriptor, preserving order. The
// result always marshals "keys" as an array, never null.
func ToKeySet(ks []keys.Key) KeySet {
	set := KeySet{Keys: make([]keys.PublicKey, 0, len(ks))}
	for _, k := range ks {
		set.Keys = append(set.Keys, k.PublicKey())
	}
	return set
}
