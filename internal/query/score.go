package query

import (
	"privata/internal/gate"
	"privata/internal/schema"
)

// Score rates how protective a query's configuration was, from 0 to 100. It
// is reported with results and never gates anything.
func Score(mode gate.Mode, classes map[string]schema.Class, requireConsent bool) int {
	score := 100
	var pii, phi bool
	for _, c := range classes {
		switch c {
		case schema.ClassPII:
			pii = true
		case schema.ClassPHI:
			phi = true
		}
	}
	if pii && !requireConsent {
		score -= 10
	}
	if phi && !requireConsent {
		score -= 15
	}
	switch mode {
	case gate.ModeDisabled:
		score -= 50
	case gate.ModeStrict:
		score += 10
	}
	if requireConsent {
		score += 15
	}
	return min(max(score, 0), 100)
}
