package vocabulary

import (
	"fmt"
	"strings"
)

// Normalize builds the dedup key for a term: surrounding whitespace is
// trimmed, inner runs collapse to one space and letters are lower-cased.
func Normalize(term string) (string, error) {
	key := strings.ToLower(strings.Join(strings.Fields(term), " "))
	if key == "" {
		return "", fmt.Errorf("%w: empty after normalization", ErrInvalidTerm)
	}
	return key, nil
}
