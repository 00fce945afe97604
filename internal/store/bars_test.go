package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"amp-engine/internal/errors"
)

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bars.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadBarsCSVGroupsAndSorts(t *testing.T) {
	path := writeCSV(t, `date,symbol,open,high,low,close,volume
2024-03-04,AAPL,103,104,102,103.5,1200
2024-03-01,AAPL,100,101,99,100.5,1000
2024-03-01,MSFT,200,202,199,201,2000
2024-03-02,AAPL,101,102,100,101.5,1100
`)

	bars, err := LoadBarsCSV(path)
	require.NoError(t, err)
	require.Len(t, bars, 2)

	aapl := bars["AAPL"]
	require.Len(t, aapl, 3)
	// Rows arrive unsorted; series come back timestamp-ascending.
	assert.True(t, aapl[0].Timestamp.Before(aapl[1].Timestamp))
	assert.True(t, aapl[1].Timestamp.Before(aapl[2].Timestamp))
	assert.InDelta(t, 100.5, aapl[0].Close, 1e-9)
	assert.Equal(t, int64(1000), aapl[0].Volume)

	require.Len(t, bars["MSFT"], 1)
	assert.Equal(t, "MSFT", bars["MSFT"][0].Symbol)
}

func TestLoadBarsCSVAcceptsTimestamps(t *testing.T) {
	path := writeCSV(t, `date,symbol,open,high,low,close,volume
2024-03-01T09:30:00Z,AAPL,100,101,99,100.5,1000
`)

	bars, err := LoadBarsCSV(path)
	require.NoError(t, err)
	require.Len(t, bars["AAPL"], 1)
	assert.Equal(t, 9, bars["AAPL"][0].Timestamp.Hour())
}

func TestLoadBarsCSVRejectsBadDate(t *testing.T) {
	path := writeCSV(t, `date,symbol,open,high,low,close,volume
not-a-date,AAPL,100,101,99,100.5,1000
`)

	_, err := LoadBarsCSV(path)
	require.Error(t, err)

	var dataErr *errors.DataError
	require.True(t, errors.As(err, &dataErr))
	assert.Equal(t, "AAPL", dataErr.Symbol)
}

func TestLoadBarsCSVMissingFile(t *testing.T) {
	_, err := LoadBarsCSV(filepath.Join(t.TempDir(), "absent.csv"))
	assert.Error(t, err)
}
