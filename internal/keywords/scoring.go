package keywords

import "math"

const (
	volumeWeight      = 0.25
	intentWeight      = 0.30
	competitionWeight = 0.25
	cpcWeight         = 0.20

	competitionFloor = 0.01
	cheapCPCFloor    = 20.0
	costlyCPCFloor   = 10.0
	// Scores just under the in-range value so out-of-range never ties it.
	cpcEdgeScore = 99.0

	sweetSpotMaxCompetition = 0.25
	highValueMinIntent      = 70.0
	highValueMinCompetition = 40.0
	monitorMinVolume        = 50.0
	monitorMinIntent        = 50.0
)

var intentWeights = map[Intent]float64{
	IntentTransactional: 1.0,
	IntentCommercial:    0.75,
	IntentInformational: 0.3,
	IntentNavigational:  0.15,
}

// Score computes the four sub-scores, the weighted composite and the tier
// for one keyword. It never fails: out-of-range inputs are clamped.
func Score(keyword RawKeyword, cpcRange CPCRange) ScoredKeyword {
	keyword.Competition = clamp(keyword.Competition, 0, 1)
	if keyword.Volume < 0 {
		keyword.Volume = 0
	}
	if keyword.CPC < 0 {
		keyword.CPC = 0
	}
	breakdown := ScoreBreakdown{
		Volume:           volumeScore(keyword.Volume),
		Intent:           intentScore(keyword.Intent),
		Competition:      competitionScore(keyword.Competition),
		CPCAffordability: cpcAffordabilityScore(keyword.CPC, cpcRange),
	}
	composite := volumeWeight*breakdown.Volume +
		intentWeight*breakdown.Intent +
		competitionWeight*breakdown.Competition +
		cpcWeight*breakdown.CPCAffordability
	return ScoredKeyword{
		RawKeyword:     keyword,
		Score:          Round2(clamp(composite, 0, 100)),
		ScoreBreakdown: breakdown,
		Tier:           classify(keyword, breakdown, cpcRange),
	}
}

func volumeScore(volume int) float64 {
	v := math.Max(float64(volume), 1)
	return clamp(math.Log10(v)*25, 0, 100)
}

func intentScore(intent Intent) float64 {
	weight, ok := intentWeights[NormalizeIntent(string(intent))]
	if !ok {
		weight = intentWeights[IntentInformational]
	}
	return clamp(weight*100, 0, 100)
}

func competitionScore(competition float64) float64 {
	c := clamp(competition, competitionFloor, 1)
	return clamp((1/c)*10, 0, 100)
}

// cpcAffordabilityScore is 100 inside the range, rises linearly from 20
// toward the range minimum for cheap clicks, and decays linearly toward 10
// for expensive ones. The decay reaches its floor at twice the range maximum.
func cpcAffordabilityScore(cpc float64, cpcRange CPCRange) float64 {
	if cpcRange.Contains(cpc) {
		return 100
	}
	if cpc < cpcRange.Min {
		if cpcRange.Min <= 0 {
			return cheapCPCFloor
		}
		ratio := cpc / cpcRange.Min
		return clamp(cheapCPCFloor+(cpcEdgeScore-cheapCPCFloor)*ratio, cheapCPCFloor, cpcEdgeScore)
	}
	if cpcRange.Max <= 0 {
		return costlyCPCFloor
	}
	overshoot := (cpc - cpcRange.Max) / cpcRange.Max
	return clamp(cpcEdgeScore-(cpcEdgeScore-costlyCPCFloor)*overshoot, costlyCPCFloor, cpcEdgeScore)
}

func classify(keyword RawKeyword, breakdown ScoreBreakdown, cpcRange CPCRange) Tier {
	switch {
	case keyword.Competition < sweetSpotMaxCompetition && keyword.Intent.buyer() && cpcRange.Contains(keyword.CPC):
		return TierSweetSpot
	case breakdown.Intent >= highValueMinIntent && breakdown.Competition >= highValueMinCompetition:
		return TierHighValue
	case breakdown.Volume >= monitorMinVolume || breakdown.Intent >= monitorMinIntent:
		return TierMonitor
	default:
		return TierLowPriority
	}
}

func clamp(value, low, high float64) float64 {
	if math.IsNaN(value) {
		return low
	}
	return math.Min(high, math.Max(low, value))
}
