package votemapa

import (
	"math"
	"sort"
	"time"
)

// Tier is a discrete priority bucket used to filter call lists.
type Tier string

// Tier vocabulary. The dashboard's CRM filter string-matches these
// exact values, so they are exported constants rather than free text.
const (
	TierAlta  Tier = "ALTA"
	TierMedia Tier = "MEDIA"
	TierBaja  Tier = "BAJA"
)

// Contact is one person in the field-operations list. Lat/Lon are
// always populated after ingestion (see IngestResponse); LastContact
// is nil for a contact that has never been reached.
type Contact struct {
	ID            string
	Name          string
	Phone         string
	AffinityScore int
	Lat           float64
	Lon           float64
	LastContact   *time.Time
	LocationText  string

	// Set by Prioritize.
	PriorityScore float64
	PriorityTier  Tier
}

// StrategicPoint is a geographic target of campaign interest (rally
// site, crisis zone). Owned by the strategy layer; read-only here.
type StrategicPoint struct {
	Lat   float64
	Lon   float64
	Label string
}

// ScoringWeights controls the blend of the three priority sub-scores.
// The weights should sum to 1 so the final score stays on a 0-100
// scale.
type ScoringWeights struct {
	Affinity   float64 `yaml:"affinity"`
	Geographic float64 `yaml:"geographic"`
	Engagement float64 `yaml:"engagement"`
}

// DefaultScoringWeights is the production blend: affinity dominates,
// proximity to strategic points second, re-engagement recency last.
var DefaultScoringWeights = ScoringWeights{Affinity: 0.5, Geographic: 0.3, Engagement: 0.2}

// neverContactedDays is the days-since value assigned to contacts with
// no recorded contact date, putting them at the top of the
// re-engagement scale.
const neverContactedDays = 365

// Tier thresholds. Inclusive lower bounds: exactly 70 is ALTA,
// exactly 40 is MEDIA.
const (
	tierAltaMin  = 70
	tierMediaMin = 40
)

// TierFor buckets a priority score.
func TierFor(score float64) Tier {
	switch {
	case score >= tierAltaMin:
		return TierAlta
	case score >= tierMediaMin:
		return TierMedia
	default:
		return TierBaja
	}
}

// neutralScore is used for a sub-score when its inputs are absent for
// the whole batch (no strategic points, no contact dates): every
// contact gets 0.5 so the other factors decide the ordering.
const neutralScore = 0.5

// Prioritize scores and tiers contacts against the current strategic
// points, using DefaultScoringWeights and the current time. See
// PrioritizeAt for the scoring model.
func Prioritize(contacts []Contact, points []StrategicPoint) []Contact {
	return PrioritizeAt(contacts, points, DefaultScoringWeights, time.Now())
}

// PrioritizeAt computes a weighted 0-100 priority score and tier for
// each contact and returns a new slice sorted by descending score; the
// input slice is not modified.
//
// Sub-scores, each normalized to [0,1]:
//
//   - Affinity: the contact's raw affinity value / 100.
//   - Geographic: 1 minus the contact's minimum Euclidean distance (in
//     raw lat/lon degrees, deliberately not geodesic) to any strategic
//     point, normalized by the maximum such distance in the batch.
//     Neutral 0.5 when no points are given. Because normalization is
//     batch-relative, geographic scores are comparable only within one
//     call.
//   - Engagement: days since last contact normalized by the batch
//     maximum; never-contacted contacts count as neverContactedDays,
//     so they always land at the top of the re-engagement scale.
//     Neutral 0.5 only when the whole batch was contacted today (max
//     days is zero).
//
// now anchors the days-since computation so results are reproducible
// in tests.
func PrioritizeAt(contacts []Contact, points []StrategicPoint, w ScoringWeights, now time.Time) []Contact {
	if len(contacts) == 0 {
		return nil
	}

	out := make([]Contact, len(contacts))
	copy(out, contacts)

	geo := geoScores(out, points)
	engagement := engagementScores(out, now)

	for i := range out {
		affinity := float64(out[i].AffinityScore) / 100
		score := (affinity*w.Affinity + geo[i]*w.Geographic + engagement[i]*w.Engagement) * 100
		out[i].PriorityScore = score
		out[i].PriorityTier = TierFor(score)
	}

	// Stable sort with an ID tiebreaker so equal scores keep a fixed
	// order across runs.
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].PriorityScore != out[j].PriorityScore {
			return out[i].PriorityScore > out[j].PriorityScore
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// geoScores computes the batch-normalized proximity sub-score.
func geoScores(contacts []Contact, points []StrategicPoint) []float64 {
	scores := make([]float64, len(contacts))
	if len(points) == 0 {
		for i := range scores {
			scores[i] = neutralScore
		}
		return scores
	}

	dists := make([]float64, len(contacts))
	maxDist := 0.0
	for i, c := range contacts {
		dists[i] = minDistanceToPoints(c.Lat, c.Lon, points)
		if dists[i] > maxDist {
			maxDist = dists[i]
		}
	}
	for i := range scores {
		if maxDist > 0 {
			scores[i] = 1 - dists[i]/maxDist
		} else {
			// Every contact sits exactly on a strategic point.
			scores[i] = 1
		}
	}
	return scores
}

// minDistanceToPoints is the smallest Euclidean distance, in raw
// degrees, from a contact to any strategic point. Degree-space
// distance is a documented simplification: it is only ever compared
// within one batch, never converted to meters.
func minDistanceToPoints(lat, lon float64, points []StrategicPoint) float64 {
	min := math.Inf(1)
	for _, p := range points {
		d := math.Hypot(lat-p.Lat, lon-p.Lon)
		if d < min {
			min = d
		}
	}
	return min
}

// engagementScores computes the batch-normalized re-engagement
// sub-score: the longer since the last contact, the higher.
func engagementScores(contacts []Contact, now time.Time) []float64 {
	scores := make([]float64, len(contacts))

	days := make([]float64, len(contacts))
	maxDays := 0.0
	for i, c := range contacts {
		days[i] = neverContactedDays
		if c.LastContact != nil {
			days[i] = now.Sub(*c.LastContact).Hours() / 24
		}
		if days[i] > maxDays {
			maxDays = days[i]
		}
	}
	for i := range scores {
		if maxDays > 0 {
			scores[i] = days[i] / maxDays
		} else {
			scores[i] = neutralScore
		}
	}
	return scores
}
