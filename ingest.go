package votemapa

import (
	"bytes"
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// RawVoteRecord is one normalized vote line from an E-26 export:
// a candidate's count at one polling station. Duplicate records across
// files are valid and are summed during aggregation, never deduped.
type RawVoteRecord struct {
	Zone      string
	Station   string
	Candidate string
	Votes     int
}

// Positional column layout of raw official E-26 exports. These files
// have no header row; columns are addressed purely by index.
const (
	rawColZone      = 5
	rawColStation   = 6
	rawColCandidate = 16
	rawColVotes     = 17
)

// rawMinColumns is the minimum field count for a row to be usable in
// the positional layout.
const rawMinColumns = rawColVotes + 1

// Ingestor parses heterogeneous electoral CSV layouts into
// RawVoteRecords. It is stateless apart from its logger and safe for
// concurrent use.
type Ingestor struct {
	log *zap.Logger
}

// IngestorOption configures an Ingestor.
type IngestorOption func(*Ingestor)

// WithIngestLogger attaches a logger. The default is a no-op logger.
func WithIngestLogger(log *zap.Logger) IngestorOption {
	return func(in *Ingestor) { in.log = log }
}

// NewIngestor creates an Ingestor.
func NewIngestor(opts ...IngestorOption) *Ingestor {
	in := &Ingestor{log: zap.NewNop()}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

// ParseVotes reads an electoral CSV of any supported shape and returns
// normalized records. Three layouts are recognized, tried in order:
//
//  1. Headered, comma-delimited, with PUESTO and VOTOS columns
//     (case-insensitive; ZONA and CANDIDATO are optional).
//  2. Headered, semicolon-delimited — the official Registraduría
//     export style; used when comma parsing finds no PUESTO column.
//  3. Headerless positional — the raw E-26 dump, addressed by fixed
//     column indexes.
//
// An unrecognized layout yields an empty slice, not an error: the
// caller treats "no data" as a displayable state and falls back to a
// default dataset. Partial damage (a bad row, a missing vote count)
// costs only the affected value.
func (in *Ingestor) ParseVotes(src io.Reader) []RawVoteRecord {
	data, err := io.ReadAll(src)
	if err != nil {
		in.log.Warn("reading vote file", zap.Error(err))
		return nil
	}
	return in.parseVoteBytes(data)
}

func (in *Ingestor) parseVoteBytes(data []byte) []RawVoteRecord {
	for _, delim := range []rune{',', ';'} {
		rows := readRows(data, delim)
		if len(rows) == 0 {
			continue
		}
		cols, ok := voteColumns(rows[0])
		if !ok {
			continue
		}
		in.log.Debug("parsing headered vote file",
			zap.String("delimiter", string(delim)), zap.Int("rows", len(rows)-1))
		return in.headeredRecords(rows[1:], cols)
	}

	// No known header under either delimiter: try the raw positional
	// layout before giving up.
	rows := readRows(data, ',')
	if len(rows) > 0 && len(rows[0]) >= rawMinColumns {
		in.log.Debug("parsing raw positional vote file", zap.Int("rows", len(rows)))
		return in.positionalRecords(rows)
	}

	in.log.Warn("vote file matched no known layout")
	return nil
}

// readRows parses CSV bytes with the given delimiter, tolerating
// quoting damage and ragged row lengths.
func readRows(data []byte, delim rune) [][]string {
	cr := csv.NewReader(bytes.NewReader(data))
	cr.Comma = delim
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1

	var rows [][]string
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue
		}
		rows = append(rows, record)
	}
	return rows
}

// voteCols holds resolved column indexes for a headered layout.
// zone and candidate are -1 when the column is absent.
type voteCols struct {
	zone, station, candidate, votes int
}

// voteColumns inspects a header row for the normalized column names.
// PUESTO and VOTOS are required for the row to count as a header.
func voteColumns(header []string) (voteCols, bool) {
	cols := voteCols{zone: -1, station: -1, candidate: -1, votes: -1}
	for i, h := range header {
		switch strings.TrimSpace(strings.ToUpper(h)) {
		case "ZONA":
			cols.zone = i
		case "PUESTO":
			cols.station = i
		case "CANDIDATO":
			cols.candidate = i
		case "VOTOS":
			cols.votes = i
		}
	}
	return cols, cols.station >= 0 && cols.votes >= 0
}

func (in *Ingestor) headeredRecords(rows [][]string, cols voteCols) []RawVoteRecord {
	records := make([]RawVoteRecord, 0, len(rows))
	for _, row := range rows {
		if cols.station >= len(row) {
			continue
		}
		rec := RawVoteRecord{
			Station: strings.TrimSpace(row[cols.station]),
			Votes:   parseVotes(field(row, cols.votes)),
			Zone:    padZone(field(row, cols.zone)),
		}
		rec.Candidate = strings.TrimSpace(field(row, cols.candidate))
		if rec.Station == "" {
			continue
		}
		records = append(records, rec)
	}
	return records
}

func (in *Ingestor) positionalRecords(rows [][]string) []RawVoteRecord {
	records := make([]RawVoteRecord, 0, len(rows))
	skipped := 0
	for _, row := range rows {
		if len(row) < rawMinColumns {
			skipped++
			continue
		}
		rec := RawVoteRecord{
			Zone:      padZone(row[rawColZone]),
			Station:   strings.TrimSpace(row[rawColStation]),
			Candidate: strings.TrimSpace(row[rawColCandidate]),
			Votes:     parseVotes(row[rawColVotes]),
		}
		if rec.Station == "" {
			skipped++
			continue
		}
		records = append(records, rec)
	}
	if skipped > 0 {
		in.log.Debug("skipped short raw rows", zap.Int("count", skipped))
	}
	return records
}

// field returns row[idx] or "" when the column is absent or the row is
// too short.
func field(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

// parseVotes converts a vote-count field to a non-negative integer.
// Missing or garbled counts become zero, never an error.
func parseVotes(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return 0
	}
	return n
}
