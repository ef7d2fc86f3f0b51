package predict

import (
	"sort"

	"github.com/campusguard/argus/internal/domain"
)

// counter tallies labels. top orders by count, then label, so output is
// deterministic on ties.
type counter struct {
	counts map[string]int
	total  int
}

func newCounter() *counter {
	return &counter{counts: make(map[string]int)}
}

func (c *counter) add(label string) {
	c.counts[label]++
	c.total++
}

func (c *counter) top(n int) []domain.CountedLabel {
	out := make([]domain.CountedLabel, 0, len(c.counts))
	for label, count := range c.counts {
		out = append(out, domain.CountedLabel{Label: label, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Label < out[j].Label
	})
	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

func topHours(hours map[int]int, n int) []int {
	keys := make([]int, 0, len(hours))
	for h := range hours {
		keys = append(keys, h)
	}
	sort.Slice(keys, func(i, j int) bool {
		if hours[keys[i]] != hours[keys[j]] {
			return hours[keys[i]] > hours[keys[j]]
		}
		return keys[i] < keys[j]
	})
	if len(keys) > n {
		keys = keys[:n]
	}
	return keys
}

// aggregator sums model contributions per location.
type aggregator struct {
	order  []string
	scores map[string]*locationScore
}

type locationScore struct {
	probability float64
	evidence    []string
	methods     []string
}

func newAggregator() *aggregator {
	return &aggregator{scores: make(map[string]*locationScore)}
}

func (a *aggregator) add(location string, p float64, method, evidence string) {
	s, ok := a.scores[location]
	if !ok {
		s = &locationScore{}
		a.scores[location] = s
		a.order = append(a.order, location)
	}
	s.probability += p
	s.evidence = append(s.evidence, evidence)
	for _, m := range s.methods {
		if m == method {
			return
		}
	}
	s.methods = append(s.methods, method)
}

// predictions caps each sum at 1 and sorts by probability, then location.
func (a *aggregator) predictions() []domain.LocationPrediction {
	out := make([]domain.LocationPrediction, 0, len(a.order))
	for _, loc := range a.order {
		s := a.scores[loc]
		out = append(out, domain.LocationPrediction{
			Location:    loc,
			Probability: min(s.probability, 1.0),
			Confidence:  tier(s.probability),
			Evidence:    s.evidence,
			Methods:     s.methods,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Probability != out[j].Probability {
			return out[i].Probability > out[j].Probability
		}
		return out[i].Location < out[j].Location
	})
	return out
}

func tier(p float64) domain.ConfidenceTier {
	switch {
	case p > 0.7:
		return domain.TierHigh
	case p > 0.4:
		return domain.TierMedium
	default:
		return domain.TierLow
	}
}
