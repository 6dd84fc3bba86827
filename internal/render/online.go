package render

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"archdoc/internal/errors"
	"archdoc/internal/slogutil"
	"archdoc/internal/version"
)

// ErrOnlineUnimplemented is returned by every online render attempt.
var ErrOnlineUnimplemented = errors.NewArchError(errors.RenderFailed, "online rendering is not implemented", nil)

// OnlineService probes a hosted PlantUML server. Rendering through it is
// not implemented, so a reachable server only delays the fall to SourceOnly.
type OnlineService struct {
	url     string
	client  *http.Client
	timeout time.Duration
	logger  *slog.Logger
}

// NewOnlineService creates the online tier. An empty url disables it.
func NewOnlineService(url string, probeTimeout time.Duration, logger *slog.Logger) *OnlineService {
	if logger == nil {
		logger = slogutil.NewDiscardLogger()
	}
	if probeTimeout <= 0 {
		probeTimeout = 3 * time.Second
	}
	return &OnlineService{
		url:     url,
		client:  &http.Client{Timeout: probeTimeout},
		timeout: probeTimeout,
		logger:  logger,
	}
}

// URL returns the probed endpoint
func (s *OnlineService) URL() string {
	return s.url
}

// Reachable sends a HEAD request; any response below 500 counts.
func (s *OnlineService) Reachable(ctx context.Context) bool {
	if s.url == "" {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, s.url, nil)
	if err != nil {
		s.logger.Debug("Invalid render service URL", "url", s.url, "error", err)
		return false
	}
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Debug("Render service unreachable", "url", s.url, "error", err)
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode < http.StatusInternalServerError
}

// Render always fails.
func (s *OnlineService) Render(ctx context.Context, sourcePath, format string) (string, error) {
	return "", ErrOnlineUnimplemented
}
