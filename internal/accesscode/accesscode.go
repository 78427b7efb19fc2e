// Package accesscode mints the human-shareable codes that identify a support
// session: nine uniform random digits in three space-separated groups.
package accesscode

import (
	"crypto/rand"
	"math/big"
	"regexp"
	"strings"
)

const (
	groupCount = 3
	groupLen   = 3
)

var (
	ten     = big.NewInt(10)
	pattern = regexp.MustCompile(`^\d{3} \d{3} \d{3}$`)
)

// Generate returns a fresh code in "DDD DDD DDD" form. It makes no uniqueness
// guarantee; callers retry against the store on collision.
func Generate() (string, error) {
	var b strings.Builder
	for i := 0; i < groupCount; i++ {
		if i > 0 {
			b.WriteByte(' ')
		}
		for j := 0; j < groupLen; j++ {
			n, err := rand.Int(rand.Reader, ten)
			if err != nil {
				return "", err
			}
			b.WriteByte('0' + byte(n.Int64()))
		}
	}
	return b.String(), nil
}

// Valid reports whether s is in access-code form.
func Valid(s string) bool {
	return pattern.MatchString(s)
}
