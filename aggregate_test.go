package votemapa

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAggregator(t *testing.T) *Aggregator {
	t.Helper()
	return NewAggregator(newTestResolver(t))
}

func TestAggregateGrouping(t *testing.T) {
	ag := newTestAggregator(t)

	records := []RawVoteRecord{
		{Zone: "01", Station: "PUESTO A", Candidate: "X", Votes: 100},
		{Zone: "01", Station: "PUESTO A", Candidate: "Y", Votes: 40},
		{Zone: "01", Station: "PUESTO B", Candidate: "X", Votes: 30},
		{Zone: "02", Station: "PUESTO A", Candidate: "X", Votes: 10},
	}
	aggs := ag.Aggregate(records, []string{"X"})

	require.Len(t, aggs, 3, "one row per unique (zone, station)")
	assert.Equal(t, "01", aggs[0].Zone)
	assert.Equal(t, "PUESTO A", aggs[0].Station)
	assert.Equal(t, 140, aggs[0].VotesTotal)
	assert.Equal(t, 100, aggs[0].VotesByCandidate["X"])
}

func TestAggregateSumInvariant(t *testing.T) {
	ag := newTestAggregator(t)

	records := []RawVoteRecord{
		{Zone: "01", Station: "A", Candidate: "X", Votes: 17},
		{Zone: "01", Station: "A", Candidate: "X", Votes: 3}, // duplicate rows sum
		{Zone: "02", Station: "B", Candidate: "Y", Votes: 25},
		{Zone: "03", Station: "C", Candidate: "Z", Votes: 0},
		{Zone: "03", Station: "C", Candidate: "X", Votes: 8},
	}
	inputTotal := 0
	for _, rec := range records {
		inputTotal += rec.Votes
	}

	aggs := ag.Aggregate(records, []string{"X"})
	outputTotal := 0
	for _, agg := range aggs {
		outputTotal += agg.VotesTotal
	}

	assert.Equal(t, inputTotal, outputTotal,
		"grouping must never drop or double-count votes")
}

func TestAggregateSubstringMatching(t *testing.T) {
	ag := newTestAggregator(t)

	records := []RawVoteRecord{
		{Zone: "01", Station: "PUESTO A",
			Candidate: "CARLOS HUMBERTO GARCIA VELASQUEZ - LISTA 3", Votes: 60},
		{Zone: "01", Station: "PUESTO A",
			Candidate: "carlos humberto garcía velasquez", Votes: 40},
		{Zone: "01", Station: "PUESTO A", Candidate: "OTRA PERSONA", Votes: 25},
	}
	aggs := ag.Aggregate(records, []string{"CARLOS HUMBERTO GARCIA VELASQUEZ"})

	require.Len(t, aggs, 1)
	assert.Equal(t, 100, aggs[0].VotesByCandidate["CARLOS HUMBERTO GARCIA VELASQUEZ"],
		"suffixed and accent-variant candidate strings all attribute to the target")
	assert.Equal(t, 125, aggs[0].VotesTotal)
}

func TestAggregateTotalDivergesFromTargets(t *testing.T) {
	ag := newTestAggregator(t)

	records := []RawVoteRecord{
		{Zone: "01", Station: "A", Candidate: "X", Votes: 10},
		{Zone: "01", Station: "A", Candidate: "UNTRACKED", Votes: 90},
	}
	aggs := ag.Aggregate(records, []string{"X"})

	require.Len(t, aggs, 1)
	assert.Equal(t, 100, aggs[0].VotesTotal)
	assert.Equal(t, 10, aggs[0].VotesByCandidate["X"],
		"VotesTotal counts every candidate, the target map only targets")
}

func TestAggregateMissingTargetDefaultsToZero(t *testing.T) {
	ag := newTestAggregator(t)

	records := []RawVoteRecord{
		{Zone: "01", Station: "A", Candidate: "X", Votes: 10},
	}
	aggs := ag.Aggregate(records, []string{"X", "NADIE CON ESTE NOMBRE"})

	require.Len(t, aggs, 1)
	votes, present := aggs[0].VotesByCandidate["NADIE CON ESTE NOMBRE"]
	assert.True(t, present, "unmatched targets are zero, not absent")
	assert.Equal(t, 0, votes)
}

func TestAggregateHistoricalStrength(t *testing.T) {
	ag := newTestAggregator(t)

	records := []RawVoteRecord{
		{Zone: "01", Station: "A", Candidate: "X", Votes: 200},
		{Zone: "01", Station: "B", Candidate: "X", Votes: 50},
		{Zone: "01", Station: "C", Candidate: "Y", Votes: 80},
	}
	aggs := ag.Aggregate(records, []string{"X", "Y"})

	require.Len(t, aggs, 3)
	byStation := map[string]StationAggregate{}
	for _, agg := range aggs {
		byStation[agg.Station] = agg
	}
	assert.Equal(t, 100.0, byStation["A"].HistoricalStrength)
	assert.Equal(t, 25.0, byStation["B"].HistoricalStrength)
	assert.Equal(t, 0.0, byStation["C"].HistoricalStrength,
		"strength follows the first (primary) target, not Y")
}

func TestAggregateZeroMaxStrength(t *testing.T) {
	ag := newTestAggregator(t)

	records := []RawVoteRecord{
		{Zone: "01", Station: "A", Candidate: "Y", Votes: 80},
	}
	aggs := ag.Aggregate(records, []string{"X"})

	require.Len(t, aggs, 1)
	assert.Equal(t, 0.0, aggs[0].HistoricalStrength)
}

func TestAggregateDuplicateTargets(t *testing.T) {
	ag := newTestAggregator(t)

	records := []RawVoteRecord{
		{Zone: "01", Station: "A", Candidate: "X", Votes: 10},
	}
	aggs := ag.Aggregate(records, []string{"X", "X", "x"})

	require.Len(t, aggs, 1)
	assert.Len(t, aggs[0].VotesByCandidate, 1, "duplicate targets do not double count")
	assert.Equal(t, 10, aggs[0].VotesByCandidate["X"])
}

func TestAggregateOverlappingTargets(t *testing.T) {
	ag := newTestAggregator(t)

	// Known over-matching: when one target is a substring of another,
	// records for the longer name credit both. This pins the current
	// behavior so any change to it is a conscious decision.
	records := []RawVoteRecord{
		{Zone: "01", Station: "A", Candidate: "ANA GARCIA LOPEZ", Votes: 30},
	}
	aggs := ag.Aggregate(records, []string{"ANA GARCIA", "ANA GARCIA LOPEZ"})

	require.Len(t, aggs, 1)
	assert.Equal(t, 30, aggs[0].VotesByCandidate["ANA GARCIA"])
	assert.Equal(t, 30, aggs[0].VotesByCandidate["ANA GARCIA LOPEZ"])
}

func TestAggregateDeterminism(t *testing.T) {
	ag := newTestAggregator(t)

	records := []RawVoteRecord{
		{Zone: "02", Station: "B", Candidate: "X", Votes: 5},
		{Zone: "01", Station: "Z", Candidate: "X", Votes: 1},
		{Zone: "01", Station: "A", Candidate: "Y", Votes: 9},
		{Zone: "10", Station: "M", Candidate: "X", Votes: 4},
	}
	first := ag.Aggregate(records, []string{"X", "Y"})
	second := ag.Aggregate(records, []string{"X", "Y"})

	assert.Equal(t, first, second, "identical input must produce identical output")
	require.Len(t, first, 4)
	assert.Equal(t, "A", first[0].Station, "rows sorted by (zone, station)")
	assert.Equal(t, "Z", first[1].Station)
	assert.Equal(t, "B", first[2].Station)
	assert.Equal(t, "M", first[3].Station)
}

func TestAggregateEmptyInput(t *testing.T) {
	ag := newTestAggregator(t)
	assert.Empty(t, ag.Aggregate(nil, []string{"X"}))
	assert.Empty(t, ag.Aggregate([]RawVoteRecord{}, []string{"X"}))
}

func TestAggregateGeoEnrichment(t *testing.T) {
	r := newTestResolver(t)
	ag := NewAggregator(r)

	records := []RawVoteRecord{
		{Zone: "14", Station: "EAFIT", Candidate: "X", Votes: 10},
	}
	aggs := ag.Aggregate(records, []string{"X"})

	require.Len(t, aggs, 1)
	want := r.Resolve("EAFIT", "14")
	assert.Equal(t, want.Lat, aggs[0].Lat)
	assert.Equal(t, want.Lon, aggs[0].Lon)
	assert.Equal(t, want.Cell, aggs[0].Cell)
}

func TestVoteColumn(t *testing.T) {
	assert.Equal(t, "Votos_CARLOS_HUMBERTO_GARCIA_VELASQUEZ",
		VoteColumn("CARLOS HUMBERTO GARCIA VELASQUEZ"))
	assert.Equal(t, "Votos_X", VoteColumn("X"))
}

func TestStationAggregateRow(t *testing.T) {
	ag := newTestAggregator(t)

	records := []RawVoteRecord{
		{Zone: "01", Station: "PUESTO A", Candidate: "MARIA FERNANDA CABAL", Votes: 120},
		{Zone: "01", Station: "PUESTO A", Candidate: "OTRO", Votes: 30},
	}
	aggs := ag.Aggregate(records, []string{"MARIA FERNANDA CABAL"})
	require.Len(t, aggs, 1)

	row := aggs[0].Row()
	assert.Equal(t, "PUESTO A", row["Puesto"])
	assert.Equal(t, "01", row["Zona"])
	assert.Equal(t, 150, row["Votos_Total"])
	assert.Equal(t, 120, row["Votos_MARIA_FERNANDA_CABAL"])
	assert.Equal(t, 100.0, row["historical_strength"])
	assert.Contains(t, row, "lat")
	assert.Contains(t, row, "lon")
}
