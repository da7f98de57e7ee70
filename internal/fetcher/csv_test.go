package fetcher

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collectRows(t *testing.T, rowCh <-chan []string, errCh <-chan error) [][]string {
	t.Helper()
	var rows [][]string
	for row := range rowCh {
		rows = append(rows, row)
	}
	require.NoError(t, <-errCh)
	return rows
}

func TestStreamCSV_DirectoryExport(t *testing.T) {
	input := "LEAID,LEA_NAME,ST\n4807530,Alief Independent School District,TX\n0622710,Los Angeles Unified,CA\n"

	headerCh := make(chan []string, 1)
	rowCh, errCh := StreamCSV(context.Background(), strings.NewReader(input), CSVOptions{
		HasHeader: true,
		HeaderCh:  headerCh,
	})

	rows := collectRows(t, rowCh, errCh)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"LEAID", "LEA_NAME", "ST"}, <-headerCh)
	assert.Equal(t, []string{"4807530", "Alief Independent School District", "TX"}, rows[0])
	assert.Equal(t, "0622710", rows[1][0])
}

func TestStreamCSV_TrimSpace(t *testing.T) {
	input := " Name , State \n Dayton Public Schools ,  OH \n"

	headerCh := make(chan []string, 1)
	rowCh, errCh := StreamCSV(context.Background(), strings.NewReader(input), CSVOptions{
		HasHeader: true,
		HeaderCh:  headerCh,
		TrimSpace: true,
	})

	rows := collectRows(t, rowCh, errCh)
	assert.Equal(t, []string{"Name", "State"}, <-headerCh)
	require.Len(t, rows, 1)
	assert.Equal(t, []string{"Dayton Public Schools", "OH"}, rows[0])
}

func TestStreamCSV_TabDelimited(t *testing.T) {
	input := "LEAID\tLEA_NAME\n1000005\tAlbertville City\n"

	headerCh := make(chan []string, 1)
	rowCh, errCh := StreamCSV(context.Background(), strings.NewReader(input), CSVOptions{
		Delimiter: '\t',
		HasHeader: true,
		HeaderCh:  headerCh,
	})

	rows := collectRows(t, rowCh, errCh)
	assert.Equal(t, []string{"LEAID", "LEA_NAME"}, <-headerCh)
	require.Len(t, rows, 1)
	assert.Equal(t, "Albertville City", rows[0][1])
}

func TestStreamCSV_RaggedRows(t *testing.T) {
	// Hand-edited workbooks drop trailing cells; short rows pass through
	// instead of erroring.
	input := "Name,State,LMS ID\nAlief ISD,TX,771\nDayton Public Schools\n"

	rowCh, errCh := StreamCSV(context.Background(), strings.NewReader(input), CSVOptions{HasHeader: true})

	rows := collectRows(t, rowCh, errCh)
	require.Len(t, rows, 2)
	assert.Len(t, rows[0], 3)
	assert.Len(t, rows[1], 1)
}

func TestStreamCSV_NoHeader(t *testing.T) {
	input := "4807530,Alief Independent School District\n"

	rowCh, errCh := StreamCSV(context.Background(), strings.NewReader(input), CSVOptions{})

	rows := collectRows(t, rowCh, errCh)
	require.Len(t, rows, 1)
	assert.Equal(t, "4807530", rows[0][0])
}

func TestStreamCSV_Empty(t *testing.T) {
	rowCh, errCh := StreamCSV(context.Background(), strings.NewReader(""), CSVOptions{HasHeader: true})

	rows := collectRows(t, rowCh, errCh)
	assert.Empty(t, rows)
}

func TestStreamCSV_MalformedQuote(t *testing.T) {
	input := "Name,State\n\"Alief ISD,TX\nDayton,OH\n"

	rowCh, errCh := StreamCSV(context.Background(), strings.NewReader(input), CSVOptions{HasHeader: true})
	for range rowCh {
	}
	assert.Error(t, <-errCh)
}

func TestStreamCSV_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// An unbuffered header channel parks the goroutine on the ctx branch.
	headerCh := make(chan []string)
	rowCh, errCh := StreamCSV(ctx, strings.NewReader("Name\nAlief ISD\n"), CSVOptions{
		HasHeader: true,
		HeaderCh:  headerCh,
	})
	for range rowCh {
	}
	assert.Error(t, <-errCh)
}
