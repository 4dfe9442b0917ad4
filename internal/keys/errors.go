package keys

import "errors"

var (
	ErrMalformedKeyData     = errors.New("malformed key data")
	ErrKeyCreationFailed    = errors.New("key creation failed")
	ErrUnsupportedAlgorithm = errors.New("unsupported algorithm")
)
