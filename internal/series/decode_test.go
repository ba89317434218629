package series

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

const fredCSV = `DATE,MORTGAGE30US
2024-01-04,6.62
2024-01-11,.
2024-01-18,6.60
`

func TestDecodeFREDCSV(t *testing.T) {
	s, err := DecodeFREDCSV([]byte(fredCSV), "30Y Fixed")
	require.NoError(t, err)
	require.Equal(t, []string{"30Y Fixed"}, s.Columns)
	require.Equal(t, []string{"2024-01-04", "2024-01-18"}, dates(s))
	require.Equal(t, []float64{6.62, 6.60}, values(s, "30Y Fixed"))
}

func TestDecodeFREDCSVObservationDateHeader(t *testing.T) {
	s, err := DecodeFREDCSV([]byte("observation_date,DGS10\n2024-03-01,4.18\n"), "10Y")
	require.NoError(t, err)
	require.Equal(t, []float64{4.18}, values(s, "10Y"))
}

func TestDecodeFREDCSVErrors(t *testing.T) {
	_, err := DecodeFREDCSV(nil, "x")
	require.True(t, errors.Is(err, ErrNoData))

	_, err = DecodeFREDCSV([]byte("DATE,X\n2024-01-01,.\n"), "x")
	require.True(t, errors.Is(err, ErrNoData))

	_, err = DecodeFREDCSV([]byte("<html>rate limited</html>\n"), "x")
	require.Error(t, err)
	require.False(t, errors.Is(err, ErrNoData))
}

const chartJSON = `{"chart":{"result":[{
  "timestamp":[1704205800,1704292200,1704378600],
  "indicators":{"quote":[{"close":[185.64,null,181.91]}]}
}],"error":null}}`

func TestDecodeChartJSON(t *testing.T) {
	s, err := DecodeChartJSON([]byte(chartJSON), "RKT")
	require.NoError(t, err)
	require.Equal(t, []string{"2024-01-02", "2024-01-04"}, dates(s))
	require.Equal(t, []float64{185.64, 181.91}, values(s, "RKT"))
}

func TestDecodeChartJSONErrors(t *testing.T) {
	_, err := DecodeChartJSON([]byte(`{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found"}}}`), "x")
	require.ErrorContains(t, err, "No data found")

	_, err = DecodeChartJSON([]byte(`{"chart":{"result":[]}}`), "x")
	require.True(t, errors.Is(err, ErrNoData))

	_, err = DecodeChartJSON([]byte(`not json`), "x")
	require.Error(t, err)
}
