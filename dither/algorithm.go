package dither

import (
	"fmt"
	"strings"
)

type Algorithm int

const (
	AdaptiveHybrid Algorithm = iota
	Ordered
	Fast
	VeryFast
	AdaptiveRandom
	HybridFloyd
	RandomFloyd
)

// DefaultAlgorithm is used when the requested algorithm is unknown or
// cannot be set up.
const DefaultAlgorithm = AdaptiveHybrid

var algorithm_names = [...]string{
	AdaptiveHybrid: "Adaptive Hybrid",
	Ordered:        "Ordered",
	Fast:           "Fast",
	VeryFast:       "Very Fast",
	AdaptiveRandom: "Adaptive Random",
	HybridFloyd:    "Hybrid Floyd-Steinberg",
	RandomFloyd:    "Random Floyd-Steinberg",
}

func (a Algorithm) String() string {
	if a >= 0 && int(a) < len(algorithm_names) {
		return algorithm_names[a]
	}
	return fmt.Sprintf("Algorithm(%d)", int(a))
}

// Algorithms returns all algorithms in their canonical order.
func Algorithms() []Algorithm {
	ans := make([]Algorithm, len(algorithm_names))
	for i := range ans {
		ans[i] = Algorithm(i)
	}
	return ans
}

// ParseAlgorithm matches name against the algorithm names ignoring case,
// spaces, dashes and underscores, so "hybrid_floyd_steinberg" works too.
func ParseAlgorithm(name string) (Algorithm, error) {
	norm := func(s string) string {
		return strings.Map(func(r rune) rune {
			switch r {
			case ' ', '-', '_':
				return -1
			}
			return r
		}, strings.ToLower(s))
	}
	q := norm(name)
	for i, n := range algorithm_names {
		if norm(n) == q {
			return Algorithm(i), nil
		}
	}
	return DefaultAlgorithm, fmt.Errorf("%w: unknown dither algorithm %q", ErrConfig, name)
}

func (a Algorithm) error_diffusion() bool {
	switch a {
	case AdaptiveHybrid, AdaptiveRandom, HybridFloyd, RandomFloyd:
		return true
	}
	return false
}

func (a Algorithm) adaptive() bool { return a == AdaptiveHybrid || a == AdaptiveRandom }

func (a Algorithm) random() bool { return a == AdaptiveRandom || a == RandomFloyd }
