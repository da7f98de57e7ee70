package fetcher

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeArchive(t *testing.T, entries map[string]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "SCHOOLDISTRICT_SY2223_TL23.zip")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close() //nolint:errcheck

	w := zip.NewWriter(f)
	for name, content := range entries {
		entry, err := w.Create(name)
		require.NoError(t, err)
		_, err = entry.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return path
}

func TestExtractZIP_ShapefileParts(t *testing.T) {
	// EDGE composites ship the shapefile parts at the archive root.
	path := writeArchive(t, map[string]string{
		"schooldistrict_sy2223_tl23.shp": "shape data",
		"schooldistrict_sy2223_tl23.dbf": "attribute data",
		"schooldistrict_sy2223_tl23.shx": "index data",
		"schooldistrict_sy2223_tl23.prj": "GEOGCS[GCS_North_American_1983]",
	})
	dest := t.TempDir()

	files, err := ExtractZIP(path, dest)
	require.NoError(t, err)
	assert.Len(t, files, 4)

	data, err := os.ReadFile(filepath.Join(dest, "schooldistrict_sy2223_tl23.shp"))
	require.NoError(t, err)
	assert.Equal(t, "shape data", string(data))
}

func TestExtractZIP_NestedDirs(t *testing.T) {
	path := writeArchive(t, map[string]string{
		"SY2223/readme.txt":  "layout notes",
		"SY2223/data/tl.shp": "shape data",
	})
	dest := t.TempDir()

	files, err := ExtractZIP(path, dest)
	require.NoError(t, err)
	assert.Len(t, files, 2)
	assert.FileExists(t, filepath.Join(dest, "SY2223", "data", "tl.shp"))
}

func TestExtractZIP_RejectsEscapingEntry(t *testing.T) {
	path := writeArchive(t, map[string]string{
		"../outside.shp": "should not land",
	})
	dest := t.TempDir()

	_, err := ExtractZIP(path, dest)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "escapes the extraction dir")
	assert.NoFileExists(t, filepath.Join(filepath.Dir(dest), "outside.shp"))
}

func TestExtractZIP_MissingArchive(t *testing.T) {
	_, err := ExtractZIP(filepath.Join(t.TempDir(), "absent.zip"), t.TempDir())
	assert.Error(t, err)
}

func TestExtractZIP_EmptyArchive(t *testing.T) {
	path := writeArchive(t, nil)

	files, err := ExtractZIP(path, t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, files)
}
