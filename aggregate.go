package votemapa

import (
	"sort"
	"strings"
)

// StationAggregate is one row of the per-station results table: total
// votes, per-target-candidate votes, the resolved map position, and
// the station's normalized historical strength.
//
// VotesByCandidate is keyed by the target candidate names as given to
// Aggregate, restricted to those targets. VotesTotal sums every
// candidate in the input, so it is normally larger than the sum of
// VotesByCandidate; both numbers are correct and the divergence is
// part of the contract.
type StationAggregate struct {
	Zone               string
	Station            string
	VotesTotal         int
	VotesByCandidate   map[string]int
	Lat                float64
	Lon                float64
	Cell               string
	HistoricalStrength float64
}

// VoteColumn derives the presentation-layer column name for a target
// candidate: "Votos_" plus the name with spaces replaced by
// underscores. Downstream components select columns by this exact
// string, so the derivation must not change.
func VoteColumn(candidate string) string {
	return "Votos_" + strings.ReplaceAll(candidate, " ", "_")
}

// Row flattens an aggregate into the column map consumed by the
// presentation layer: Puesto, Zona, Votos_Total, one Votos_<Name> per
// target, lat, lon, historical_strength.
func (a StationAggregate) Row() map[string]any {
	row := map[string]any{
		"Puesto":              a.Station,
		"Zona":                a.Zone,
		"Votos_Total":         a.VotesTotal,
		"lat":                 a.Lat,
		"lon":                 a.Lon,
		"historical_strength": a.HistoricalStrength,
	}
	for candidate, votes := range a.VotesByCandidate {
		row[VoteColumn(candidate)] = votes
	}
	return row
}

// Aggregator turns normalized vote records into the per-station
// results table, enriching each row through a Resolver.
type Aggregator struct {
	geo *Resolver
}

// NewAggregator creates an Aggregator backed by the given Resolver.
func NewAggregator(geo *Resolver) *Aggregator {
	return &Aggregator{geo: geo}
}

// Aggregate groups records by (zone, station) and computes the
// results table. Empty input yields an empty table.
//
// Candidate attribution uses case- and accent-insensitive substring
// matching: a record counts toward a target when its candidate field
// contains the target name. Source files append ballot-list qualifiers
// and middle names to candidate strings, so exact matching silently
// loses votes. The flip side is an unresolved ambiguity: if one target
// name is a substring of another, records matching the longer name are
// credited to both. Changing that would change reported totals, so it
// stays as-is.
//
// The first target in the list is the primary candidate by convention:
// historical strength is each station's share of the primary's
// best-station vote count, scaled to 0-100.
//
// Output is sorted by (zone, station); identical input always produces
// identical output.
func (ag *Aggregator) Aggregate(records []RawVoteRecord, targets []string) []StationAggregate {
	if len(records) == 0 {
		return nil
	}

	targets = dedupeTargets(targets)
	targetKeys := make([]string, len(targets))
	for i, t := range targets {
		targetKeys[i] = NormalizeKey(t)
	}

	type stationKey struct {
		zone, station string
	}
	totals := make(map[stationKey]*StationAggregate)
	for _, rec := range records {
		key := stationKey{zone: padZone(rec.Zone), station: strings.TrimSpace(rec.Station)}
		agg, ok := totals[key]
		if !ok {
			agg = &StationAggregate{
				Zone:             key.zone,
				Station:          key.station,
				VotesByCandidate: make(map[string]int, len(targets)),
			}
			for _, t := range targets {
				agg.VotesByCandidate[t] = 0
			}
			totals[key] = agg
		}
		agg.VotesTotal += rec.Votes

		candidateKey := NormalizeKey(rec.Candidate)
		for i, target := range targets {
			if candidateKey != "" && strings.Contains(candidateKey, targetKeys[i]) {
				agg.VotesByCandidate[target] += rec.Votes
			}
		}
	}

	aggregates := make([]StationAggregate, 0, len(totals))
	for _, agg := range totals {
		p := ag.geo.Resolve(agg.Station, agg.Zone)
		agg.Lat = p.Lat
		agg.Lon = p.Lon
		agg.Cell = p.Cell
		aggregates = append(aggregates, *agg)
	}
	sort.Slice(aggregates, func(i, j int) bool {
		if aggregates[i].Zone != aggregates[j].Zone {
			return aggregates[i].Zone < aggregates[j].Zone
		}
		return aggregates[i].Station < aggregates[j].Station
	})

	if len(targets) > 0 {
		applyHistoricalStrength(aggregates, targets[0])
	}
	return aggregates
}

// applyHistoricalStrength scores each station against the primary
// target's best station. A zero maximum leaves every strength at zero.
func applyHistoricalStrength(aggregates []StationAggregate, primary string) {
	maxVotes := 0
	for _, agg := range aggregates {
		if v := agg.VotesByCandidate[primary]; v > maxVotes {
			maxVotes = v
		}
	}
	if maxVotes == 0 {
		return
	}
	for i := range aggregates {
		aggregates[i].HistoricalStrength =
			float64(aggregates[i].VotesByCandidate[primary]) / float64(maxVotes) * 100
	}
}

// dedupeTargets preserves order while dropping targets that normalize
// to an already-seen key, so a duplicated name cannot double count.
func dedupeTargets(targets []string) []string {
	seen := make(map[string]bool, len(targets))
	out := make([]string, 0, len(targets))
	for _, t := range targets {
		key := NormalizeKey(t)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, t)
	}
	return out
}
