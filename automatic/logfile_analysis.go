package automatic

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/domino14/morris/board"
)

// AnalyzeLog rebuilds the summary of a games CSV written by PlayGames.
func AnalyzeLog(r io.Reader) (*Summary, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(csvHeader)
	summary := &Summary{}
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if record[0] == csvHeader[0] {
			// this is the header line
			continue
		}
		var rec GameRecord
		switch record[3] {
		case board.White.String():
			rec.Winner = board.White
		case board.Black.String():
			rec.Winner = board.Black
		case board.NoColor.String():
		default:
			return nil, fmt.Errorf("game %v: unknown winner %q", record[0], record[3])
		}
		if rec.Plies, err = strconv.Atoi(record[4]); err != nil {
			return nil, err
		}
		if rec.Finished, err = strconv.ParseBool(record[5]); err != nil {
			return nil, err
		}
		summary.Add(rec)
	}
	return summary, nil
}

// AnalyzeLogFile analyzes the given game CSV file and spits out a bunch of
// statistics.
func AnalyzeLogFile(filepath string) (string, error) {
	file, err := os.Open(filepath)
	if err != nil {
		return "", err
	}
	defer file.Close()
	summary, err := AnalyzeLog(file)
	if err != nil {
		return "", err
	}
	return summary.String(), nil
}
