package votemapa

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func float64Ptr(v float64) *float64 { return &v }

func TestIngestResponseWithGPS(t *testing.T) {
	ci := NewContactIntake()

	last := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	c := ci.IngestResponse(SurveyResponse{
		ID:          "contact_1",
		Name:        "Ana Torres",
		Phone:       "+57 301 5551234",
		Affinity:    80,
		Lat:         float64Ptr(6.21),
		Lon:         float64Ptr(-75.57),
		LastContact: &last,
	})

	assert.Equal(t, 6.21, c.Lat)
	assert.Equal(t, -75.57, c.Lon)
	assert.Equal(t, "Ana Torres", c.Name)
	assert.Equal(t, 80, c.AffinityScore)
	require.NotNil(t, c.LastContact)
	assert.True(t, c.LastContact.Equal(last))
}

func TestIngestResponseInfersFromText(t *testing.T) {
	ci := NewContactIntake()

	c := ci.IngestResponse(SurveyResponse{
		ID:           "contact_2",
		Affinity:     50,
		LocationText: "Vivo en Laureles cerca al segundo parque",
	})

	base := defaultLandmarks["LAURELES"]
	assert.InDelta(t, base.Lat, c.Lat, landmarkJitterRange)
	assert.InDelta(t, base.Lon, c.Lon, landmarkJitterRange)
	assert.NotEqual(t, base.Lat, c.Lat, "inferred points are offset from the landmark")
}

func TestIngestResponseFallback(t *testing.T) {
	ci := NewContactIntake()

	tests := []struct {
		name string
		text string
	}{
		{"NoText", ""},
		{"UnknownPlace", "Vivo en otra ciudad"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := ci.IngestResponse(SurveyResponse{ID: "x", LocationText: tt.text})
			assert.Equal(t, DefaultCityCenter.Lat, c.Lat)
			assert.Equal(t, DefaultCityCenter.Lon, c.Lon)
		})
	}
}

func TestIngestResponsePlaceholders(t *testing.T) {
	ci := NewContactIntake()

	c := ci.IngestResponse(SurveyResponse{ID: "contact_3"})
	assert.Equal(t, unknownName, c.Name)
	assert.Equal(t, unknownPhone, c.Phone)
	assert.Nil(t, c.LastContact)
}

func TestInferLocationDeterminism(t *testing.T) {
	ci := NewContactIntake()

	lat1, lon1, ok1 := ci.InferLocation("Vivo en el Poblado")
	lat2, lon2, ok2 := ci.InferLocation("Vivo en el Poblado")

	require.True(t, ok1)
	require.True(t, ok2)
	assert.Equal(t, lat1, lat2)
	assert.Equal(t, lon1, lon2)

	// Different descriptions of the same neighborhood separate.
	lat3, lon3, ok3 := ci.InferLocation("Apartamento en el Poblado, piso 4")
	require.True(t, ok3)
	assert.False(t, lat1 == lat3 && lon1 == lon3)
}

func TestInferLocationAccentInsensitive(t *testing.T) {
	ci := NewContactIntake()

	_, _, ok := ci.InferLocation("cerca de Belén")
	assert.True(t, ok, "accented spelling matches the BELEN landmark")
}

func TestIngestResponsesBatch(t *testing.T) {
	ci := NewContactIntake()

	contacts := ci.IngestResponses([]SurveyResponse{
		{ID: "a", Lat: float64Ptr(6.2), Lon: float64Ptr(-75.5)},
		{ID: "b", LocationText: "Estadio"},
	})

	require.Len(t, contacts, 2)
	assert.Equal(t, "a", contacts[0].ID)
	assert.Equal(t, "b", contacts[1].ID)
}

func TestCustomLandmarks(t *testing.T) {
	ci := NewContactIntake(WithLandmarks(map[string]Coordinate{
		"Chapinero": {4.65, -74.06},
	}))

	lat, _, ok := ci.InferLocation("vivo en chapinero")
	require.True(t, ok)
	assert.InDelta(t, 4.65, lat, landmarkJitterRange)

	_, _, ok = ci.InferLocation("Vivo en Laureles")
	assert.False(t, ok, "custom table replaces the default one")
}
