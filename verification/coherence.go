package verification

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/georgepadayatti/goxades/properties"
)

// verifyTimeStampCoherence checks the order of the verified timestamps:
// data object timestamps precede signature timestamps, which precede
// SigAndRefs timestamps, which precede archive timestamps.
func verifyTimeStampCoherence(result *Result) error {
	times := func(names ...string) []time.Time {
		var out []time.Time
		for _, n := range names {
			for _, p := range result.Find(n) {
				if ts, ok := p.Property.(properties.TimeStampProperty); ok {
					out = append(out, ts.Timestamp())
				}
			}
		}
		return out
	}

	steps := []struct {
		earlier, later []string
	}{
		{
			[]string{properties.AllDataObjectsTimeStampName, properties.IndividualDataObjectsTimeStampName},
			[]string{properties.SignatureTimeStampName},
		},
		{
			[]string{properties.SignatureTimeStampName},
			[]string{properties.SigAndRefsTimeStampName},
		},
		{
			[]string{properties.SigAndRefsTimeStampName},
			[]string{properties.ArchiveTimeStampName},
		},
	}
	for _, s := range steps {
		for _, later := range times(s.later...) {
			for _, earlier := range times(s.earlier...) {
				if later.Before(earlier) {
					return newError(KindTimeCoherence, s.later[0],
						fmt.Sprintf("time %s is before %s time %s",
							formatTime(later), s.earlier[0], formatTime(earlier)), nil)
				}
			}
		}
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// TimeStampCoherenceVerifier applies the ordering rules between the
// timestamps of a signature. New installs it ahead of any other
// SignatureVerifier.
type TimeStampCoherenceVerifier struct{}

// VerifySignature implements SignatureVerifier.
func (TimeStampCoherenceVerifier) VerifySignature(_ context.Context, result *Result) error {
	return verifyTimeStampCoherence(result)
}

// GracePeriodVerifier requires the grace period to have elapsed since the
// earliest signature timestamp, so that revocation information published
// after signing can be taken into account.
type GracePeriodVerifier struct {
	Period time.Duration
	Clock  clockwork.Clock
}

// VerifySignature implements SignatureVerifier. Signatures without a
// signature timestamp pass.
func (g GracePeriodVerifier) VerifySignature(_ context.Context, result *Result) error {
	var earliest time.Time
	for _, p := range result.Find(properties.SignatureTimeStampName) {
		ts, ok := p.Property.(properties.TimeStampProperty)
		if !ok {
			continue
		}
		if earliest.IsZero() || ts.Timestamp().Before(earliest) {
			earliest = ts.Timestamp()
		}
	}
	if earliest.IsZero() {
		return nil
	}
	clock := g.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if end := earliest.Add(g.Period); end.After(clock.Now()) {
		return newError(KindTimeCoherence, properties.SignatureTimeStampName,
			fmt.Sprintf("grace period ends at %s", formatTime(end)), nil)
	}
	return nil
}
