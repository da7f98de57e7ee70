// Package fetcher pulls the remote inputs the registry and boundary
// loaders consume: paginated JSON from the Education Data API, EDGE
// boundary archives, and local CSV/XLSX workbook files.
package fetcher

import (
	"context"
	"io"
)

// Fetcher downloads remote data. Implementations own retry and
// rate-limit policy; callers see either a clean body or an error.
type Fetcher interface {
	// Download fetches the URL and returns the response body. The
	// caller closes it.
	Download(ctx context.Context, url string) (io.ReadCloser, error)

	// DownloadToFile fetches the URL into path and returns the number
	// of bytes written.
	DownloadToFile(ctx context.Context, url string, path string) (int64, error)
}
