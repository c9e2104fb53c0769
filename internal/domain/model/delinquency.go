package model

import (
	"fmt"
	"sort"
	"strings"
)

// DelinquencyFlags are the actions attached to a delinquency bucket.
type DelinquencyFlags struct {
	NotifyClient      bool `json:"notify_client"`
	NotifyStaff       bool `json:"notify_staff"`
	ApplyFine         bool `json:"apply_fine"`
	AffectCreditScore bool `json:"affect_credit_score"`
	ReportToBureau    bool `json:"report_to_bureau"`
}

// DelinquencyBucket covers the inclusive day range [DaysFrom, DaysTo]. The
// last bucket of a policy is unbounded and its DaysTo is ignored.
type DelinquencyBucket struct {
	Label string
	DelinquencyFlags
	DaysFrom int
	DaysTo   int
}

// DelinquencyPolicy is an ordered set of buckets that partitions [0, +inf).
// The first bucket is the performing bucket.
type DelinquencyPolicy struct {
	buckets []DelinquencyBucket
}

// NewDelinquencyPolicy validates buckets once. The set must start at day 0,
// contain no gaps or overlaps and carry a label on every bucket.
func NewDelinquencyPolicy(buckets []DelinquencyBucket) (DelinquencyPolicy, error) {
	if len(buckets) == 0 {
		return DelinquencyPolicy{}, NewConfigurationError("delinquency_buckets", "at least one bucket is required")
	}

	sorted := make([]DelinquencyBucket, len(buckets))
	copy(sorted, buckets)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].DaysFrom < sorted[j].DaysFrom })

	if sorted[0].DaysFrom != 0 {
		return DelinquencyPolicy{}, NewConfigurationError("delinquency_buckets",
			fmt.Sprintf("first bucket starts at day %d, want 0", sorted[0].DaysFrom))
	}

	labels := make(map[string]bool, len(sorted))
	for i, b := range sorted {
		if strings.TrimSpace(b.Label) == "" {
			return DelinquencyPolicy{}, NewConfigurationError("delinquency_buckets",
				fmt.Sprintf("bucket starting at day %d has no label", b.DaysFrom))
		}
		if labels[b.Label] {
			return DelinquencyPolicy{}, NewConfigurationError("delinquency_buckets",
				fmt.Sprintf("label %q used twice", b.Label))
		}
		labels[b.Label] = true

		if i == len(sorted)-1 {
			break
		}
		if b.DaysTo < b.DaysFrom {
			return DelinquencyPolicy{}, NewConfigurationError("delinquency_buckets",
				fmt.Sprintf("bucket %q ends (%d) before it starts (%d)", b.Label, b.DaysTo, b.DaysFrom))
		}
		next := sorted[i+1]
		switch {
		case next.DaysFrom <= b.DaysTo:
			return DelinquencyPolicy{}, NewConfigurationError("delinquency_buckets",
				fmt.Sprintf("buckets %q and %q overlap", b.Label, next.Label))
		case next.DaysFrom > b.DaysTo+1:
			return DelinquencyPolicy{}, NewConfigurationError("delinquency_buckets",
				fmt.Sprintf("gap between %q and %q (days %d-%d)", b.Label, next.Label, b.DaysTo+1, next.DaysFrom-1))
		}
	}

	return DelinquencyPolicy{buckets: sorted}, nil
}

// Buckets returns the buckets in ascending DaysFrom order.
func (p DelinquencyPolicy) Buckets() []DelinquencyBucket {
	out := make([]DelinquencyBucket, len(p.buckets))
	copy(out, p.buckets)
	return out
}

// Performing returns the first bucket.
func (p DelinquencyPolicy) Performing() DelinquencyBucket {
	if len(p.buckets) == 0 {
		return DelinquencyBucket{}
	}
	return p.buckets[0]
}

// IsPerforming reports whether label names the first bucket.
func (p DelinquencyPolicy) IsPerforming(label string) bool {
	return len(p.buckets) > 0 && p.buckets[0].Label == label
}

// IsZero reports whether the policy was never built.
func (p DelinquencyPolicy) IsZero() bool { return len(p.buckets) == 0 }
