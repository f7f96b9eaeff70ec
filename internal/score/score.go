// Package score computes match confidence between a query record and a
// candidate surfaced by a source adapter.
//
// Confidence is cap(method) * similarity, so for the same underlying
// similarity the methods are strictly ordered:
// name_address ≥ name_city ≥ address_only ≥ fallback.
package score

import (
	"math"
	"strings"

	"github.com/TalkingHeadsJed/texasmotels/internal/model"
	"github.com/TalkingHeadsJed/texasmotels/internal/normalize"
)

// DefaultThreshold is the minimum confidence for a candidate to be accepted.
const DefaultThreshold = 0.75

// Per-method confidence ceilings. Fallback is intentionally capped lowest:
// rank heuristics are weaker evidence than field comparison.
const (
	capNameAddress = 1.0
	capNameCity    = 0.90
	capAddressOnly = 0.85
	capFallback    = 0.80
)

// fallbackRankDecay discounts each step down the search result list.
const fallbackRankDecay = 0.9

// minFieldSim is the similarity floor below which a field comparison is
// considered unreliable and the method degrades.
const minFieldSim = 0.3

// strongAddrSim is the address similarity needed to accept a match on
// address alone when the name is unreliable.
const strongAddrSim = 0.8

// Cap returns the confidence ceiling for a method.
func Cap(method model.MatchMethod) float64 {
	switch method {
	case model.MethodNameAddress:
		return capNameAddress
	case model.MethodNameCity:
		return capNameCity
	case model.MethodAddressOnly:
		return capAddressOnly
	default:
		return capFallback
	}
}

// Structured scores a candidate carrying provider name/address fields
// against the record. It picks the comparison method by field availability
// and reliability, per the priority order name_address > name_city >
// address_only.
func Structured(rec model.Record, cand model.Candidate) (float64, model.MatchMethod) {
	nameSim := Similarity(normalize.Name(rec.Name), normalize.Name(cand.Name))
	addrSim := Similarity(normalize.AddressBase(rec.Address), normalize.AddressBase(cand.Address))

	haveAddr := normalize.AddressBase(rec.Address) != "" && normalize.AddressBase(cand.Address) != ""

	// Full comparison when both sides carry a usable address.
	if haveAddr && addrSim >= minFieldSim && nameSim >= minFieldSim {
		raw := 0.6*nameSim + 0.4*addrSim
		return capNameAddress * raw, model.MethodNameAddress
	}

	// Name unreliable but the address matches strongly.
	if haveAddr && nameSim < minFieldSim && addrSim >= strongAddrSim {
		return capAddressOnly * addrSim, model.MethodAddressOnly
	}

	// Address unavailable or low-similarity: fall back to name + city.
	raw := nameSim
	if !cityMatches(rec, cand) {
		raw *= 0.7
	}
	return capNameCity * raw, model.MethodNameCity
}

// Fallback scores a web-search candidate with no structured counterpart to
// compare. Confidence decays with result rank and is capped below every
// structured method.
func Fallback(rank int) (float64, model.MatchMethod) {
	if rank < 0 {
		rank = 0
	}
	return capFallback * math.Pow(fallbackRankDecay, float64(rank)), model.MethodFallback
}

// Similarity is a token-set Jaccard measure: order-insensitive, with credit
// for partial tokens (one token being a prefix of the other, at least four
// characters). Inputs should already be normalized.
func Similarity(a, b string) float64 {
	tokensA := strings.Fields(a)
	tokensB := strings.Fields(b)
	if len(tokensA) == 0 || len(tokensB) == 0 {
		return 0
	}

	setA := toSet(tokensA)
	setB := toSet(tokensB)

	matched := 0
	used := make(map[string]bool, len(setB))
	for ta := range setA {
		if setB[ta] && !used[ta] {
			matched++
			used[ta] = true
			continue
		}
		for tb := range setB {
			if used[tb] {
				continue
			}
			if partialMatch(ta, tb) {
				matched++
				used[tb] = true
				break
			}
		}
	}

	union := len(setA) + len(setB) - matched
	if union == 0 {
		return 0
	}
	return float64(matched) / float64(union)
}

func toSet(tokens []string) map[string]bool {
	set := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		set[t] = true
	}
	return set
}

func partialMatch(a, b string) bool {
	if len(a) < 4 || len(b) < 4 {
		return false
	}
	return strings.HasPrefix(a, b) || strings.HasPrefix(b, a)
}

func cityMatches(rec model.Record, cand model.Candidate) bool {
	city := normalize.City(rec.City)
	if city == "" {
		return false
	}
	if normalize.City(cand.City) == city {
		return true
	}
	return strings.Contains(normalize.Address(cand.Address), city)
}
