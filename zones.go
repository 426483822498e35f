package votemapa

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Coordinate is a WGS84 point in decimal degrees.
type Coordinate struct {
	Lat float64 `yaml:"lat"`
	Lon float64 `yaml:"lon"`
}

// DefaultCityCenter is the coordinate of last resort: when neither the
// reference table nor the zone centroids can place a station, it lands
// here rather than being dropped from the map.
var DefaultCityCenter = Coordinate{Lat: 6.2442, Lon: -75.5812}

// defaultZoneCentroids covers the electoral zones of Medellín: comunas
// 01-16 plus the corregimientos (50-90). A custom table can be loaded
// with WithCentroidFile.
var defaultZoneCentroids = map[string]Coordinate{
	"01": {6.295, -75.545}, "02": {6.285, -75.555}, "03": {6.275, -75.550}, "04": {6.265, -75.560},
	"05": {6.290, -75.575}, "06": {6.280, -75.585}, "07": {6.270, -75.595}, "08": {6.250, -75.545},
	"09": {6.235, -75.550}, "10": {6.250, -75.570}, "11": {6.245, -75.595}, "12": {6.255, -75.605},
	"13": {6.255, -75.615}, "14": {6.210, -75.570}, "15": {6.220, -75.585}, "16": {6.230, -75.605},
	"50": {6.340, -75.650}, "60": {6.280, -75.630}, "70": {6.210, -75.630}, "80": {6.180, -75.640},
	"90": {6.210, -75.500},
}

// loadZoneCentroids reads a zone -> centroid table from a YAML file.
// Keys are zone codes and are normalized to the zero-padded form on
// load, so "1" and "01" in the file address the same zone.
//
// Format:
//
//	"01": {lat: 6.295, lon: -75.545}
//	"02": {lat: 6.285, lon: -75.555}
func loadZoneCentroids(path string) (map[string]Coordinate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading centroid file: %w", err)
	}

	raw := map[string]Coordinate{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing centroid file %s: %w", path, err)
	}

	centroids := make(map[string]Coordinate, len(raw))
	for zone, c := range raw {
		centroids[padZone(zone)] = c
	}
	return centroids, nil
}
