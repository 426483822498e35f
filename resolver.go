package votemapa

import (
	"encoding/csv"
	"fmt"
	"hash/fnv"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"

	geohash "github.com/TomiHiltunen/geohash-golang"
	"github.com/agnivade/levenshtein"
	"github.com/golang/geo/s2"
	"go.uber.org/zap"
)

// StationGeocode is one row of the station reference table: a known
// polling station with its zone and surveyed coordinate. The table is
// immutable after Resolver construction.
type StationGeocode struct {
	Station string
	Zone    string
	Lat     float64
	Lon     float64
}

// defaultStationTable covers the landmark polling posts of Medellín.
// It is used when no reference file is configured, and kept as the
// degraded-mode table when a configured file cannot be read. Entries
// with an empty zone match stations from any zone.
var defaultStationTable = []StationGeocode{
	{"EAFIT", "", 6.2005, -75.5785},
	{"UPB", "", 6.2420, -75.5900},
	{"MARYMOUNT", "", 6.2050, -75.5600},
	{"SAN JOSE DE LA SALLE", "", 6.2205, -75.5685},
	{"CLUB CAMPESTRE", "", 6.1900, -75.5750},
	{"PLAZA MAYOR", "", 6.2430, -75.5750},
	{"ESTADIO ATANASIO GIRARDOT", "", 6.2606, -75.5881},
	{"INEM JOSE FELIX DE RESTREPO", "", 6.2080, -75.5700},
	{"POLITECNICO JAIME ISAZA CADAVID", "", 6.2120, -75.5750},
	{"COL SAN IGNACIO", "", 6.2445, -75.5638},
	{"I.E. VILLA HERMOSA", "", 6.2550, -75.5450},
	{"I.E. MANRIQUE CENTRAL", "", 6.2780, -75.5480},
	{"I.E. EL PICACHO", "", 6.2950, -75.5850},
	{"ITM ROBLEDO", "", 6.2750, -75.5950},
	{"UNIV. DE MEDELLIN", "", 6.2310, -75.6100},
	{"PARQUE BIBLIOTECA BELEN", "", 6.2300, -75.6050},
	{"SAN CRISTOBAL PARQUE", "", 6.2780, -75.6350},
	{"SAN ANTONIO DE PRADO", "", 6.1850, -75.6550},
	{"SANTA ELENA", "", 6.2050, -75.5000},
}

// mapCellPrecision is the geohash length attached to every placement.
// Seven characters is a ~150m x 150m cell, small enough that stations
// in the same city block share a marker cluster without merging
// neighborhoods.
const mapCellPrecision = 7

// stationCellLevel determines the granularity of the S2 index used by
// NearestStation. Level 13 cells are roughly 1km across, which keeps
// the candidate set per lookup small at city scale.
const stationCellLevel = 13

// maxNearestStationDistance is ~5km in radians on the unit sphere.
// NearestStation reports no match when the closest reference station
// is further away than this.
const maxNearestStationDistance = 0.00078

// maxStationFuzzyDistance caps ResolveOptions.FuzzyDistance so a
// misconfigured caller cannot turn resolution into an O(N) scan with
// an edit distance that matches everything.
const maxStationFuzzyDistance = 3

// jitterRange is the half-width, in degrees, of the deterministic
// offset applied around a zone centroid (~500m).
const jitterRange = 0.005

// PlacementSource records which stage of the resolution cascade
// produced a coordinate.
type PlacementSource string

const (
	// SourceReference means the station was found in the reference table.
	SourceReference PlacementSource = "reference"
	// SourceZone means the station was placed near its zone centroid.
	SourceZone PlacementSource = "zone"
	// SourceFallback means the station landed on the city-center default.
	SourceFallback PlacementSource = "fallback"
)

// Placement is a resolved station position. Cell is the geohash the
// map layer clusters markers by.
type Placement struct {
	Coordinate
	Cell   string
	Source PlacementSource
}

// ResolveOptions configures a single Resolve call.
type ResolveOptions struct {
	// FuzzyDistance enables a Levenshtein stage between the reference
	// lookups and the zone-centroid fallback: a reference key within
	// this edit distance of the query is accepted. 0 disables it,
	// which is the contract-default behavior. Capped at 3.
	FuzzyDistance int
}

// Resolver maps (station name, zone) pairs to stable coordinates. The
// reference table and centroids are loaded once at construction and
// never mutated, so a single Resolver is safe to share across
// concurrent sessions.
//
// Resolve never fails: an unknown station degrades to a deterministic
// point near its zone centroid, and an unknown zone degrades to the
// city-center default. Losing a station from the map is worse than
// mis-placing it near its district.
type Resolver struct {
	stations  []StationGeocode
	byKey     map[string][]int // normalized station name -> indices into stations
	keys      []string         // sorted normalized keys, for deterministic scans
	cellIndex map[s2.CellID][]int
	centroids map[string]Coordinate
	fallback  Coordinate
	log       *zap.Logger
}

// ResolverOption is a functional option for configuring a Resolver.
type ResolverOption func(*resolverConfig)

type resolverConfig struct {
	referencePath string
	stations      []StationGeocode
	centroidPath  string
	centroids     map[string]Coordinate
	fallback      Coordinate
	log           *zap.Logger
}

// WithReferenceFile loads the station reference table from a CSV file
// with columns PUESTO, ZONA, LAT, LON (case-insensitive, any order).
// An unreadable file is logged and the resolver falls back to its
// built-in table rather than failing construction.
func WithReferenceFile(path string) ResolverOption {
	return func(c *resolverConfig) { c.referencePath = path }
}

// WithStations supplies the reference table directly.
func WithStations(stations []StationGeocode) ResolverOption {
	return func(c *resolverConfig) { c.stations = stations }
}

// WithCentroidFile loads zone centroids from a YAML file instead of
// the built-in Medellín table. An unreadable file is logged and the
// built-in table is kept.
func WithCentroidFile(path string) ResolverOption {
	return func(c *resolverConfig) { c.centroidPath = path }
}

// WithCentroids supplies the zone centroid table directly.
func WithCentroids(centroids map[string]Coordinate) ResolverOption {
	return func(c *resolverConfig) { c.centroids = centroids }
}

// WithFallback overrides the city-center coordinate of last resort.
func WithFallback(p Coordinate) ResolverOption {
	return func(c *resolverConfig) { c.fallback = p }
}

// WithLogger attaches a logger. The default is a no-op logger.
func WithLogger(log *zap.Logger) ResolverOption {
	return func(c *resolverConfig) { c.log = log }
}

// NewResolver builds a Resolver. Construction only fails on
// programming errors (nil table after options), never on missing
// reference data; degraded inputs are logged and worked around.
func NewResolver(opts ...ResolverOption) (*Resolver, error) {
	cfg := &resolverConfig{
		fallback: DefaultCityCenter,
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	stations := cfg.stations
	if cfg.referencePath != "" {
		loaded, err := LoadReferenceTable(cfg.referencePath)
		switch {
		case err != nil:
			cfg.log.Warn("reference table unavailable, using built-in table",
				zap.String("path", cfg.referencePath), zap.Error(err))
		case len(loaded) == 0:
			cfg.log.Warn("reference table empty, using built-in table",
				zap.String("path", cfg.referencePath))
		default:
			stations = loaded
		}
	}
	if stations == nil {
		stations = defaultStationTable
	}

	centroids := cfg.centroids
	if cfg.centroidPath != "" {
		loaded, err := loadZoneCentroids(cfg.centroidPath)
		if err != nil {
			cfg.log.Warn("centroid table unavailable, using built-in table",
				zap.String("path", cfg.centroidPath), zap.Error(err))
		} else {
			centroids = loaded
		}
	}
	if centroids == nil {
		centroids = defaultZoneCentroids
	}

	r := &Resolver{
		centroids: centroids,
		fallback:  cfg.fallback,
		log:       cfg.log,
	}
	r.index(stations)
	r.log.Debug("resolver ready",
		zap.Int("stations", len(r.stations)),
		zap.Int("zones", len(r.centroids)))
	return r, nil
}

// index normalizes, sorts and indexes the reference table. Sorting by
// (key, zone) up front makes every later scan order deterministic.
func (r *Resolver) index(stations []StationGeocode) {
	r.stations = make([]StationGeocode, 0, len(stations))
	for _, s := range stations {
		s.Station = NormalizeKey(s.Station)
		s.Zone = padZone(s.Zone)
		if s.Station == "" {
			continue
		}
		r.stations = append(r.stations, s)
	}
	sort.Slice(r.stations, func(i, j int) bool {
		if r.stations[i].Station != r.stations[j].Station {
			return r.stations[i].Station < r.stations[j].Station
		}
		return r.stations[i].Zone < r.stations[j].Zone
	})

	r.byKey = make(map[string][]int, len(r.stations))
	r.cellIndex = make(map[s2.CellID][]int)
	for i, s := range r.stations {
		if _, seen := r.byKey[s.Station]; !seen {
			r.keys = append(r.keys, s.Station)
		}
		r.byKey[s.Station] = append(r.byKey[s.Station], i)

		ll := s2.LatLngFromDegrees(s.Lat, s.Lon)
		cell := s2.CellIDFromLatLng(ll).Parent(stationCellLevel)
		r.cellIndex[cell] = append(r.cellIndex[cell], i)
	}
	sort.Strings(r.keys)
}

// LoadReferenceTable reads a station reference CSV with columns
// PUESTO, ZONA, LAT, LON (case-insensitive header, any column order).
// Rows with unparseable coordinates are skipped, not errors.
func LoadReferenceTable(path string) ([]StationGeocode, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening reference table: %w", err)
	}
	defer f.Close()
	return ReadReferenceTable(f)
}

// ReadReferenceTable parses reference CSV data from a reader.
func ReadReferenceTable(src io.Reader) ([]StationGeocode, error) {
	cr := csv.NewReader(src)
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading reference header: %w", err)
	}

	colIdx := make(map[string]int, len(header))
	for i, h := range header {
		colIdx[strings.TrimSpace(strings.ToUpper(h))] = i
	}
	stationCol, okStation := colIdx["PUESTO"]
	latCol, okLat := colIdx["LAT"]
	lonCol, okLon := colIdx["LON"]
	zoneCol, okZone := colIdx["ZONA"]
	if !okStation || !okLat || !okLon {
		return nil, fmt.Errorf("reference table missing PUESTO/LAT/LON columns, got %v", header)
	}

	var stations []StationGeocode
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue
		}
		if stationCol >= len(record) || latCol >= len(record) || lonCol >= len(record) {
			continue
		}
		lat, errLat := strconv.ParseFloat(strings.TrimSpace(record[latCol]), 64)
		lon, errLon := strconv.ParseFloat(strings.TrimSpace(record[lonCol]), 64)
		if errLat != nil || errLon != nil {
			// Unparseable coordinates would land the station on Null
			// Island; skip the row instead.
			continue
		}
		zone := ""
		if okZone && zoneCol < len(record) {
			zone = record[zoneCol]
		}
		stations = append(stations, StationGeocode{
			Station: record[stationCol],
			Zone:    zone,
			Lat:     lat,
			Lon:     lon,
		})
	}
	return stations, nil
}

// Resolve maps a station name and zone to a coordinate. It never
// fails; see the Resolver doc comment for the degradation cascade.
// Calls with the same inputs always return the same Placement.
func (r *Resolver) Resolve(station, zone string, opts ...ResolveOptions) Placement {
	options := ResolveOptions{}
	if len(opts) > 0 {
		options = opts[0]
	}
	if options.FuzzyDistance > maxStationFuzzyDistance {
		options.FuzzyDistance = maxStationFuzzyDistance
	}

	key := NormalizeKey(station)
	zone = padZone(zone)

	// 1. Exact reference hit.
	if idx, ok := r.matchReference(key, zone); ok {
		return r.placement(r.stations[idx].Lat, r.stations[idx].Lon, SourceReference)
	}

	// 2. Containment scan: reference keys are abbreviated landmark
	// names ("EAFIT") while E-26 station fields carry decorations
	// ("PUESTO EAFIT BLOQUE 3"). Sorted key order keeps the winner
	// stable when several keys are contained.
	if key != "" {
		for _, refKey := range r.keys {
			if strings.Contains(key, refKey) {
				idx, _ := r.matchReference(refKey, zone)
				return r.placement(r.stations[idx].Lat, r.stations[idx].Lon, SourceReference)
			}
		}
	}

	// 3. Optional fuzzy stage for typo-level damage.
	if options.FuzzyDistance > 0 && key != "" {
		if idx, ok := r.fuzzyReference(key, zone, options.FuzzyDistance); ok {
			return r.placement(r.stations[idx].Lat, r.stations[idx].Lon, SourceReference)
		}
	}

	// 4. Deterministic placement near the zone centroid.
	if centroid, ok := r.centroids[zone]; ok {
		lat, lon := jitterWithin(centroid, key, jitterRange)
		return r.placement(lat, lon, SourceZone)
	}

	// 5. City center.
	return r.placement(r.fallback.Lat, r.fallback.Lon, SourceFallback)
}

// matchReference returns the reference entry for an exact key,
// preferring a zone match, then a wildcard (empty zone) entry, then
// the first entry in sorted order.
func (r *Resolver) matchReference(key, zone string) (int, bool) {
	indices, ok := r.byKey[key]
	if !ok {
		return 0, false
	}
	wildcard := -1
	for _, idx := range indices {
		switch r.stations[idx].Zone {
		case zone:
			return idx, true
		case "":
			if wildcard < 0 {
				wildcard = idx
			}
		}
	}
	if wildcard >= 0 {
		return wildcard, true
	}
	return indices[0], true
}

// fuzzyReference scans the sorted keys for the closest edit-distance
// match within maxDist. Ties break toward the lexicographically first
// key, keeping the result stable across runs.
func (r *Resolver) fuzzyReference(key, zone string, maxDist int) (int, bool) {
	bestKey := ""
	bestDist := maxDist + 1
	for _, refKey := range r.keys {
		if d := levenshtein.ComputeDistance(key, refKey); d < bestDist {
			bestKey = refKey
			bestDist = d
		}
	}
	if bestKey == "" {
		return 0, false
	}
	return r.matchReference(bestKey, zone)
}

func (r *Resolver) placement(lat, lon float64, src PlacementSource) Placement {
	return Placement{
		Coordinate: Coordinate{Lat: lat, Lon: lon},
		Cell:       geohash.EncodeWithPrecision(lat, lon, mapCellPrecision),
		Source:     src,
	}
}

// jitterWithin derives a stable offset within ±rng degrees of a base
// coordinate from an FNV-1a hash of the key. FNV is a fixed algorithm,
// so the same key lands on the same point across processes; Go's
// runtime string hash is seeded per process and would not.
func jitterWithin(base Coordinate, key string, rng float64) (lat, lon float64) {
	h := fnv.New64a()
	h.Write([]byte(key))
	sum := h.Sum64()

	latOff := (float64(sum%1000)/1000 - 0.5) * 2 * rng
	lonOff := (float64((sum/1000)%1000)/1000 - 0.5) * 2 * rng
	return base.Lat + latOff, base.Lon + lonOff
}

// nearestCandidate pairs a reference station with its distance from
// the query point.
type nearestCandidate struct {
	idx  int
	dist float64
}

// NearestStation returns the reference station closest to a point, or
// false when no station lies within ~5km. Used by the map layer to
// turn a click back into a station.
func (r *Resolver) NearestStation(lat, lon float64) (StationGeocode, bool) {
	if math.IsNaN(lat) || math.IsNaN(lon) || math.IsInf(lat, 0) || math.IsInf(lon, 0) {
		return StationGeocode{}, false
	}

	queryLL := s2.LatLngFromDegrees(lat, lon)
	queryCell := s2.CellIDFromLatLng(queryLL).Parent(stationCellLevel)

	var candidates []nearestCandidate
	for _, cell := range cellAndNeighbors(queryCell) {
		for _, idx := range r.cellIndex[cell] {
			s := r.stations[idx]
			dist := float64(queryLL.Distance(s2.LatLngFromDegrees(s.Lat, s.Lon)))
			candidates = append(candidates, nearestCandidate{idx: idx, dist: dist})
		}
	}
	if len(candidates) == 0 {
		return StationGeocode{}, false
	}

	// Sort by distance, then table order (already key/zone sorted) for
	// full determinism when two stations share a coordinate.
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].dist != candidates[j].dist {
			return candidates[i].dist < candidates[j].dist
		}
		return candidates[i].idx < candidates[j].idx
	})

	best := candidates[0]
	if best.dist > maxNearestStationDistance {
		return StationGeocode{}, false
	}
	return r.stations[best.idx], true
}

// cellAndNeighbors returns the given cell plus its edge and corner
// neighbors, covering lookups near cell boundaries.
func cellAndNeighbors(cell s2.CellID) []s2.CellID {
	cells := make([]s2.CellID, 0, 9)
	cells = append(cells, cell)

	edgeNeighbors := cell.EdgeNeighbors()
	for i := 0; i < 4; i++ {
		cells = append(cells, edgeNeighbors[i])
	}

	seen := make(map[s2.CellID]bool, 9)
	for _, c := range cells {
		seen[c] = true
	}
	for i := 0; i < 4; i++ {
		for _, corner := range edgeNeighbors[i].EdgeNeighbors() {
			if !seen[corner] {
				cells = append(cells, corner)
				seen[corner] = true
			}
		}
	}
	return cells
}
