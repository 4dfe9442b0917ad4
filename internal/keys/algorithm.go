package keys

import (
	"fmt"
	"strings"

	"github.com/lestrrat-go/jwx/v3/jwa"
)

type Algorithm string

const (
	AlgorithmRS256 Algorithm = "RS256"
	AlgorithmES512 Algorithm = "ES512"
)

func Algorithms() []Algorithm {
	return []Algorithm{AlgorithmRS256, AlgorithmES512}
}

func ParseAlgorithm(s string) (Algorithm, error) {
	for _, a := range Algorithms() {
		if strings.EqualFold(s, string(a)) {
			return a, nil
		}
	}
	return "", fmt.Errorf("%w: '%s'", ErrUnsupportedAlgorithm, s)
}

func (a Algorithm) String() string { return string(a) }

func (a Algorithm) signatureAlgorithm() (jwa.SignatureAlgorithm, error) {
	switch a {
	case AlgorithmRS256:
		return jwa.RS256(), nil
	case AlgorithmES512:
		return jwa.ES512(), nil
	default:
		var none jwa.SignatureAlgorithm
		return none, fmt.Errorf("%w: '%s'", ErrUnsupportedAlgorithm, a)
	}
}
