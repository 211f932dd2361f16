package storage

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/tgvault/tgvault/internal/apperrors"
)

var (
	invalidChars   = regexp.MustCompile(`[\\/:"*?<>|]`)
	wrappedPattern = regexp.MustCompile(`^\((\d+)\)\.(.+)$`)
)

// ValidateNames rejects folder and file names containing characters that
// would break paths or the share URLs built from them.
func ValidateNames(names ...string) error {
	for _, name := range names {
		if invalidChars.MatchString(name) {
			return apperrors.BadName(name)
		}
	}
	return nil
}

// ResolveName returns a display name for candidate that collides with none
// of the existing names. Conflicts are wrapped as "(N).<candidate>": a
// plain duplicate reserves index 1, and every wrapped occurrence of the
// candidate pushes the next index to its own number plus one. The highest
// reservation wins, so the first duplicate becomes "(1)." and later ones
// count up from the largest wrapped index seen. Candidates that already
// look like "(N).base" are matched literally and never re-wrapped; client
// code depends on this exact numbering.
func ResolveName(existing []string, candidate string) string {
	maxNum := 0
	for _, name := range existing {
		if name == candidate {
			if maxNum < 1 {
				maxNum = 1
			}
			continue
		}
		m := wrappedPattern.FindStringSubmatch(name)
		if m != nil && m[2] == candidate {
			num, _ := strconv.Atoi(m[1])
			if num+1 > maxNum {
				maxNum = num + 1
			}
		}
	}
	if maxNum > 0 {
		return fmt.Sprintf("(%d).%s", maxNum, candidate)
	}
	return candidate
}
