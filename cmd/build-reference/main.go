// Command build-reference generates a station reference CSV from raw
// E-26 exports. Geocoding stays an offline step: the dashboard's
// interactive path only ever reads the CSV this tool produces.
//
// Usage:
//
//	go run ./cmd/build-reference -o stations.csv e26_zone01.csv e26_zone02.csv ...
//
// Each unique (zone, station) pair found in the inputs is resolved
// through the standard cascade (existing reference hits keep their
// surveyed coordinates; unknown stations get their deterministic
// zone-centroid placement) and written as one PUESTO,ZONA,LAT,LON row.
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"os"
	"sort"
	"strconv"

	"go.uber.org/zap"

	"github.com/dfrestrepo/votemapa"
)

func main() {
	out := flag.String("o", "stations.csv", "output reference CSV path")
	ref := flag.String("ref", "", "existing reference CSV to seed exact coordinates from")
	verbose := flag.Bool("v", false, "log skipped rows and fallbacks")
	flag.Parse()

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: build-reference [-o out.csv] [-ref existing.csv] <e26.csv> ...")
		os.Exit(2)
	}

	log := zap.NewNop()
	if *verbose {
		var err error
		if log, err = zap.NewDevelopment(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}

	var resolverOpts []votemapa.ResolverOption
	resolverOpts = append(resolverOpts, votemapa.WithLogger(log))
	if *ref != "" {
		resolverOpts = append(resolverOpts, votemapa.WithReferenceFile(*ref))
	}
	resolver, err := votemapa.NewResolver(resolverOpts...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ingestor := votemapa.NewIngestor(votemapa.WithIngestLogger(log))

	type stationKey struct {
		zone, station string
	}
	seen := map[stationKey]bool{}
	var keys []stationKey

	for _, path := range flag.Args() {
		f, err := os.Open(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening %s: %v\n", path, err)
			os.Exit(1)
		}
		records := ingestor.ParseVotes(f)
		f.Close()
		if len(records) == 0 {
			fmt.Fprintf(os.Stderr, "Warning: %s matched no known layout, skipping\n", path)
			continue
		}
		for _, rec := range records {
			k := stationKey{zone: rec.Zone, station: rec.Station}
			if !seen[k] {
				seen[k] = true
				keys = append(keys, k)
			}
		}
	}

	sort.Slice(keys, func(i, j int) bool {
		if keys[i].zone != keys[j].zone {
			return keys[i].zone < keys[j].zone
		}
		return keys[i].station < keys[j].station
	})

	f, err := os.Create(*out)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	w := csv.NewWriter(f)
	if err := w.Write([]string{"PUESTO", "ZONA", "LAT", "LON"}); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	for _, k := range keys {
		p := resolver.Resolve(k.station, k.zone)
		row := []string{
			k.station,
			k.zone,
			strconv.FormatFloat(p.Lat, 'f', 6, 64),
			strconv.FormatFloat(p.Lon, 'f', 6, 64),
		}
		if err := w.Write(row); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := f.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Wrote %d stations to %s\n", len(keys), *out)
}
