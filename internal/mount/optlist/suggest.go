package optlist

import (
	"github.com/xrash/smetrics"

	"github.com/blkcore/blkmount/internal/utils/logger"
)

// suggestFor returns the best Jaro-Winkler match for name among
// candidates, or "" if candidates is empty. This is a diagnostics-only
// addition (spec.md §4.5 [ADD]): it never changes parse results, only
// what LastSuggestion() reports for an unknown token.
func suggestFor(name string, candidates []string) string {
	best := ""
	bestScore := 0.0
	for _, c := range candidates {
		score := smetrics.JaroWinkler(name, c, 0.7, 4)
		if score > bestScore {
			bestScore = score
			best = c
		}
	}
	if bestScore < 0.75 {
		return ""
	}
	return best
}

func logUnknownOption(name, suggestion string) {
	log := logger.Logger()
	if suggestion != "" {
		log.Debugf("unrecognized mount option %q (did you mean %q?)", name, suggestion)
	} else {
		log.Debugf("unrecognized mount option %q", name)
	}
}
