package fetcher

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
)

// ExtractZIP unpacks an archive into destDir and returns the paths of
// the extracted regular files. EDGE composites carry the shapefile
// parts (.shp, .dbf, .shx, .prj) side by side at the archive root, but
// nested directories are preserved when present.
func ExtractZIP(zipPath, destDir string) ([]string, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: open archive")
	}
	defer r.Close() //nolint:errcheck

	var files []string
	for _, entry := range r.File {
		if !filepath.IsLocal(entry.Name) {
			return files, eris.Errorf("fetcher: archive entry %q escapes the extraction dir", entry.Name)
		}
		dest := filepath.Join(destDir, entry.Name)

		if entry.FileInfo().IsDir() {
			if err := os.MkdirAll(dest, 0o755); err != nil {
				return files, eris.Wrap(err, "fetcher: create archive dir")
			}
			continue
		}

		if err := writeArchiveFile(entry, dest); err != nil {
			return files, err
		}
		files = append(files, dest)
	}
	return files, nil
}

func writeArchiveFile(entry *zip.File, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return eris.Wrap(err, "fetcher: create archive dir")
	}

	rc, err := entry.Open()
	if err != nil {
		return eris.Wrapf(err, "fetcher: open archive entry %s", entry.Name)
	}
	defer rc.Close() //nolint:errcheck

	out, err := os.Create(dest)
	if err != nil {
		return eris.Wrap(err, "fetcher: create extracted file")
	}
	defer out.Close() //nolint:errcheck

	if _, err := io.Copy(out, rc); err != nil {
		return eris.Wrapf(err, "fetcher: extract %s", entry.Name)
	}
	return nil
}
