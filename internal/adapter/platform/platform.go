package platform

import (
	"context"
	"errors"
	"net"
	"sync"

	"github.com/arturoeanton/go-timesheet-mapper/internal/port"
)

const (
	userAgent      = "go-timesheet-mapper/1.0"
	perPage        = 100
	searchFanout   = 3
	searchScanCap  = 300
	defaultWorkers = 6
)

// fetchDetails resolves commit details for a page of SHAs with a bounded
// worker pool, preserving input order in the result slice. A failed detail
// fetch yields a placeholder record so one bad commit never aborts the page.
func fetchDetails(ctx context.Context, shas []string, workers int, fn func(ctx context.Context, sha string) (port.RemoteCommit, error)) []port.RemoteCommit {
	if workers <= 0 {
		workers = defaultWorkers
	}
	results := make([]port.RemoteCommit, len(shas))
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup

	for i, sha := range shas {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, sha string) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i], _ = fn(ctx, sha)
		}(i, sha)
	}
	wg.Wait()
	return results
}

// placeholderCommit is the stand-in record for a commit whose detail fetch
// failed. It keeps the SHA and web URL so the sync can continue.
func placeholderCommit(sha, webURL string) port.RemoteCommit {
	return port.RemoteCommit{
		SHA:        sha,
		Message:    "Unable to fetch detailed information",
		AuthorName: "Unknown",
		WebURL:     webURL,
	}
}

// isTimeout reports whether err is a network or context timeout.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var nerr net.Error
	return errors.As(err, &nerr) && nerr.Timeout()
}
