package fetcher

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type directoryPage struct {
	Count   int    `json:"count"`
	Next    string `json:"next"`
	Results []struct {
		LEAID   string `json:"leaid"`
		LeaName string `json:"lea_name"`
	} `json:"results"`
}

func TestDecodeJSONObject_Page(t *testing.T) {
	input := `{
		"count": 1024,
		"next": "https://educationdata.urban.org/api/v1/school-districts/ccd/directory/2022/?fips=48&page=2",
		"results": [
			{"leaid": "4807530", "lea_name": "ALIEF ISD"},
			{"leaid": "4823640", "lea_name": "HOUSTON ISD"}
		]
	}`

	page, err := DecodeJSONObject[directoryPage](strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, 1024, page.Count)
	assert.Contains(t, page.Next, "page=2")
	require.Len(t, page.Results, 2)
	assert.Equal(t, "4807530", page.Results[0].LEAID)
	assert.Equal(t, "HOUSTON ISD", page.Results[1].LeaName)
}

func TestDecodeJSONObject_LastPage(t *testing.T) {
	page, err := DecodeJSONObject[directoryPage](strings.NewReader(`{"count": 2, "next": null, "results": []}`))
	require.NoError(t, err)
	assert.Empty(t, page.Next)
	assert.Empty(t, page.Results)
}

func TestDecodeJSONObject_Malformed(t *testing.T) {
	_, err := DecodeJSONObject[directoryPage](strings.NewReader(`{"count": `))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode json")
}

func TestDecodeJSONObject_Empty(t *testing.T) {
	_, err := DecodeJSONObject[directoryPage](strings.NewReader(""))
	assert.Error(t, err)
}
