package audit

import "time"

// DefaultRetentionDays is seven years, the longest of the GDPR/HIPAA
// retention expectations the sink is configured for.
const DefaultRetentionDays = 2555

// RetentionPolicy maps each framework to how long its events are kept.
// Frameworks without an entry use DefaultRetentionDays.
type RetentionPolicy struct {
	days map[Framework]int
}

// NewRetentionPolicy builds a policy from per-framework overrides.
// Non-positive overrides are ignored.
func NewRetentionPolicy(overrides map[Framework]int) RetentionPolicy {
	days := map[Framework]int{
		FrameworkGDPR:  DefaultRetentionDays,
		FrameworkHIPAA: DefaultRetentionDays,
	}
	for f, d := range overrides {
		if d > 0 {
			days[f] = d
		}
	}
	return RetentionPolicy{days: days}
}

// Days returns the retention period for f.
func (p RetentionPolicy) Days(f Framework) int {
	if d, ok := p.days[f]; ok {
		return d
	}
	return DefaultRetentionDays
}

// RetentionDate computes the date an event written at ts under f may be purged.
func (p RetentionPolicy) RetentionDate(f Framework, ts time.Time) time.Time {
	return ts.AddDate(0, 0, p.Days(f))
}
