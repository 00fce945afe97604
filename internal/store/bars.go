package store

import (
	"os"
	"sort"
	"time"

	"github.com/gocarina/gocsv"

	"amp-engine/internal/errors"
	"amp-engine/internal/models"
)

// barRow is the CSV wire form of one bar. The date column accepts plain
// dates or RFC3339 timestamps.
type barRow struct {
	Date   string  `csv:"date"`
	Symbol string  `csv:"symbol"`
	Open   float64 `csv:"open"`
	High   float64 `csv:"high"`
	Low    float64 `csv:"low"`
	Close  float64 `csv:"close"`
	Volume int64   `csv:"volume"`
}

var barDateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// LoadBarsCSV reads a CSV file of bars and groups them by symbol, each series
// sorted by ascending timestamp.
func LoadBarsCSV(path string) (map[string][]models.MarketBar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open bars file %s", path)
	}
	defer f.Close()

	var rows []*barRow
	if err := gocsv.UnmarshalFile(f, &rows); err != nil {
		return nil, errors.Wrapf(err, "parse bars file %s", path)
	}

	bars := make(map[string][]models.MarketBar)
	for i, row := range rows {
		ts, err := parseBarDate(row.Date)
		if err != nil {
			return nil, errors.NewDataError(row.Symbol, i, "unparseable date "+row.Date, err)
		}
		bars[row.Symbol] = append(bars[row.Symbol], models.MarketBar{
			Symbol:    row.Symbol,
			Timestamp: ts,
			Open:      row.Open,
			High:      row.High,
			Low:       row.Low,
			Close:     row.Close,
			Volume:    row.Volume,
		})
	}

	for symbol := range bars {
		series := bars[symbol]
		sort.Slice(series, func(i, j int) bool {
			return series[i].Timestamp.Before(series[j].Timestamp)
		})
	}
	return bars, nil
}

func parseBarDate(raw string) (time.Time, error) {
	var lastErr error
	for _, layout := range barDateLayouts {
		t, err := time.Parse(layout, raw)
		if err == nil {
			return t.UTC(), nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}
