package votemapa

import (
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
)

// SurveyResponse is a raw contact record as it arrives from an upload
// or survey integration. Lat/Lon are nil when the respondent had no
// GPS fix; LocationText then carries whatever they typed about where
// they live.
type SurveyResponse struct {
	ID           string
	Name         string
	Phone        string
	Affinity     int
	LocationText string
	Lat          *float64
	Lon          *float64
	LastContact  *time.Time
}

// Placeholder values for responses missing identity fields.
const (
	unknownName  = "Desconocido"
	unknownPhone = "N/A"
)

// landmarkJitterRange bounds the deterministic offset applied to
// inferred landmark coordinates (~200m) so co-located respondents do
// not stack on one map pixel.
const landmarkJitterRange = 0.002

// defaultLandmarks maps neighborhood and landmark names of Medellín to
// coordinates, for inferring a position from free-text descriptions
// like "Vivo en Laureles". Keys are matched as substrings of the
// normalized text.
var defaultLandmarks = map[string]Coordinate{
	"POBLADO":         {6.2083, -75.5636},
	"LLERAS":          {6.2089, -75.5678},
	"LAURELES":        {6.2442, -75.5964},
	"BELEN":           {6.2308, -75.6044},
	"ENVIGADO":        {6.1676, -75.5833},
	"CENTRO":          {6.2518, -75.5636},
	"ESTADIO":         {6.2606, -75.5881},
	"ROBLEDO":         {6.2814, -75.5978},
	"MANRIQUE":        {6.2753, -75.5528},
	"ARANJUEZ":        {6.2856, -75.5617},
	"CASTILLA":        {6.2961, -75.5733},
	"DOCE DE OCTUBRE": {6.3067, -75.5833},
	"BUENOS AIRES":    {6.2333, -75.5500},
	"VILLA HERMOSA":   {6.2500, -75.5333},
	"SAN JAVIER":      {6.2500, -75.6167},
	"AMERICA":         {6.2500, -75.6000},
	"GUAYABAL":        {6.2167, -75.5833},
	"CANDELARIA":      {6.2500, -75.5667},
}

// ContactIntake converts survey responses into Contacts, inferring
// coordinates for responses without GPS. Stateless apart from its
// landmark table and logger; safe for concurrent use.
type ContactIntake struct {
	landmarks map[string]Coordinate
	keys      []string // sorted landmark keys, for deterministic scans
	fallback  Coordinate
	log       *zap.Logger
}

// IntakeOption configures a ContactIntake.
type IntakeOption func(*ContactIntake)

// WithLandmarks replaces the built-in landmark table.
func WithLandmarks(landmarks map[string]Coordinate) IntakeOption {
	return func(ci *ContactIntake) {
		ci.landmarks = make(map[string]Coordinate, len(landmarks))
		for name, c := range landmarks {
			ci.landmarks[NormalizeKey(name)] = c
		}
	}
}

// WithIntakeFallback overrides the coordinate assigned when neither
// GPS nor landmark inference places a contact.
func WithIntakeFallback(p Coordinate) IntakeOption {
	return func(ci *ContactIntake) { ci.fallback = p }
}

// WithIntakeLogger attaches a logger. The default is a no-op logger.
func WithIntakeLogger(log *zap.Logger) IntakeOption {
	return func(ci *ContactIntake) { ci.log = log }
}

// NewContactIntake creates a ContactIntake.
func NewContactIntake(opts ...IntakeOption) *ContactIntake {
	ci := &ContactIntake{
		landmarks: defaultLandmarks,
		fallback:  DefaultCityCenter,
		log:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(ci)
	}
	for key := range ci.landmarks {
		ci.keys = append(ci.keys, key)
	}
	sort.Strings(ci.keys)
	return ci
}

// IngestResponse normalizes one survey response into a Contact.
// Responses without GPS get a position inferred from LocationText via
// the landmark table; when that also fails, the city-center fallback.
// Missing names and phones get placeholder values. Never fails.
func (ci *ContactIntake) IngestResponse(resp SurveyResponse) Contact {
	c := Contact{
		ID:            resp.ID,
		Name:          resp.Name,
		Phone:         resp.Phone,
		AffinityScore: resp.Affinity,
		LastContact:   resp.LastContact,
		LocationText:  resp.LocationText,
	}
	if c.Name == "" {
		c.Name = unknownName
	}
	if c.Phone == "" {
		c.Phone = unknownPhone
	}

	switch {
	case resp.Lat != nil && resp.Lon != nil:
		c.Lat, c.Lon = *resp.Lat, *resp.Lon
	default:
		if lat, lon, ok := ci.InferLocation(resp.LocationText); ok {
			c.Lat, c.Lon = lat, lon
		} else {
			ci.log.Debug("contact without GPS or known landmark, using fallback",
				zap.String("id", resp.ID))
			c.Lat, c.Lon = ci.fallback.Lat, ci.fallback.Lon
		}
	}
	return c
}

// IngestResponses maps IngestResponse over a batch.
func (ci *ContactIntake) IngestResponses(resps []SurveyResponse) []Contact {
	contacts := make([]Contact, len(resps))
	for i, resp := range resps {
		contacts[i] = ci.IngestResponse(resp)
	}
	return contacts
}

// InferLocation derives a coordinate from a free-text location
// description by scanning for a known landmark substring. The
// landmark coordinate gets a deterministic offset derived from the
// full text, so two respondents in the same neighborhood separate on
// the map while each always maps to the same point.
func (ci *ContactIntake) InferLocation(text string) (lat, lon float64, ok bool) {
	key := NormalizeKey(text)
	if key == "" {
		return 0, 0, false
	}
	for _, landmark := range ci.keys {
		if strings.Contains(key, landmark) {
			base := ci.landmarks[landmark]
			lat, lon = jitterWithin(base, key, landmarkJitterRange)
			return lat, lon, true
		}
	}
	return 0, 0, false
}
