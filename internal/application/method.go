package application

import (
	"strings"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/cases"

	"github.com/ahrav/go-normdev/internal/domain"
)

// maxSuggestionDistance is the largest edit distance for which an unknown
// method name gets a "did you mean" suggestion.
const maxSuggestionDistance = 3

// ParseMethod resolves a user-supplied method name. Matching ignores case and
// surrounding whitespace. Unknown names yield a *domain.ConfigError wrapping
// domain.ErrUnknownMethod, with the closest known method as a suggestion.
func ParseMethod(name string) (domain.Method, error) {
	// A Caser is stateful, so each call gets its own.
	folded := cases.Fold().String(strings.TrimSpace(name))

	for _, m := range domain.Methods() {
		if folded == m.String() {
			return m, nil
		}
	}

	cerr := domain.NewConfigError("method", name, domain.ErrUnknownMethod)
	cerr.Suggestion = suggestMethod(folded, domain.Methods())
	return "", cerr
}

// suggestMethod returns the candidate closest to name, or "" when none is
// close enough.
func suggestMethod(name string, candidates []domain.Method) string {
	best, bestDist := "", maxSuggestionDistance+1
	for _, m := range candidates {
		if d := levenshtein.ComputeDistance(name, m.String()); d < bestDist {
			best, bestDist = m.String(), d
		}
	}
	return best
}
