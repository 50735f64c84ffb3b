package gateways

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ochairo/smithy/internal/domain/interfaces"
)

const (
	// Max retries for transient errors
	maxRetries = 3
	// Initial backoff duration
	initialBackoff = 1 * time.Second
	// Max backoff duration
	maxBackoff = 32 * time.Second
)

const githubAPIBase = "https://api.github.com"

// ReleaseResolver turns a tool's version source into a concrete version
// string. Two source forms are supported: "static:<value>" returns the
// value with no network activity, and "github-release:owner/repo" asks the
// GitHub API for the latest published release tag.
type ReleaseResolver struct {
	client  *http.Client
	apiBase string
	log     interfaces.Logger
}

// NewReleaseResolver creates a resolver with sensible HTTP defaults.
func NewReleaseResolver(log interfaces.Logger) *ReleaseResolver {
	if log == nil {
		log = &interfaces.NoOpLogger{}
	}
	return &ReleaseResolver{
		client: &http.Client{
			Timeout: 10 * time.Second, // Reasonable timeout for version checks
		},
		apiBase: githubAPIBase,
		log:     log,
	}
}

// Resolve maps a version source to a version usable in download URLs.
// GitHub tags commonly carry a leading "v" that release archive names drop,
// so the prefix is stripped.
func (r *ReleaseResolver) Resolve(ctx context.Context, source string) (string, error) {
	switch {
	case source == "":
		return "", fmt.Errorf("version source not specified")
	case strings.HasPrefix(source, "static:"):
		return strings.TrimSpace(strings.TrimPrefix(source, "static:")), nil
	case strings.HasPrefix(source, "github-release:"):
		repo := strings.TrimPrefix(source, "github-release:")
		tag, err := r.latestRelease(ctx, repo)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(strings.TrimPrefix(tag, "v")), nil
	default:
		return "", fmt.Errorf("unsupported version source format: %s", source)
	}
}

// githubRelease is the subset of the GitHub release payload we read.
type githubRelease struct {
	TagName    string `json:"tag_name"`
	Draft      bool   `json:"draft"`
	Prerelease bool   `json:"prerelease"`
}

func (r *ReleaseResolver) latestRelease(ctx context.Context, repo string) (string, error) {
	url := fmt.Sprintf("%s/repos/%s/releases/latest", r.apiBase, repo)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	if token := githubToken(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := r.doWithRetry(req)
	if err != nil {
		return "", fmt.Errorf("GitHub API request failed: %w", err)
	}
	//nolint:errcheck // Defer close
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return "", fmt.Errorf("GitHub API error %d (failed to read response)", resp.StatusCode)
		}
		return "", fmt.Errorf("GitHub API error %d: %s", resp.StatusCode, string(body))
	}

	var release githubRelease
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return "", fmt.Errorf("failed to parse GitHub response: %w", err)
	}
	if release.Draft {
		return "", fmt.Errorf("latest release of %s is a draft", repo)
	}
	if release.TagName == "" {
		return "", fmt.Errorf("latest release of %s has no tag", repo)
	}
	return release.TagName, nil
}

// doWithRetry executes an HTTP request with exponential backoff retry.
func (r *ReleaseResolver) doWithRetry(req *http.Request) (*http.Response, error) {
	var resp *http.Response
	var err error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(calculateBackoff(attempt - 1))
		}

		resp, err = r.client.Do(req)
		if err != nil {
			// Network errors are retryable unless the caller gave up
			if req.Context().Err() != nil {
				return nil, err
			}
			if attempt < maxRetries {
				continue
			}
			return nil, err
		}

		if rateLimitErr := r.checkRateLimit(resp); rateLimitErr != nil {
			//nolint:errcheck,gosec // G104: Best effort close on rate limit error
			resp.Body.Close()
			if attempt < maxRetries {
				continue
			}
			return nil, rateLimitErr
		}

		if !isRetryableStatus(resp.StatusCode) {
			return resp, nil
		}

		//nolint:errcheck,gosec // G104: Best effort close before retry
		resp.Body.Close()

		if attempt < maxRetries {
			continue
		}
		return resp, nil
	}

	return resp, err
}

// checkRateLimit inspects GitHub rate limit headers and fails fast when the
// quota is exhausted.
func (r *ReleaseResolver) checkRateLimit(resp *http.Response) error {
	remaining := resp.Header.Get("X-RateLimit-Remaining")
	if remaining == "" {
		return nil
	}

	remainingInt, err := strconv.Atoi(remaining)
	if err != nil {
		return nil // Invalid header, ignore
	}

	if remainingInt == 0 {
		resetTime := resp.Header.Get("X-RateLimit-Reset")
		if resetTime != "" {
			if resetUnix, err := strconv.ParseInt(resetTime, 10, 64); err == nil {
				resetAt := time.Unix(resetUnix, 0)
				return fmt.Errorf("GitHub API rate limit exceeded (0 remaining), resets at %s", resetAt.Format(time.RFC3339))
			}
		}
		return fmt.Errorf("GitHub API rate limit exceeded (0 remaining)")
	}

	if remainingInt <= 10 {
		r.log.Warn("GitHub API rate limit low", interfaces.F("remaining", remainingInt))
	}

	return nil
}

// isRetryableStatus checks if an HTTP status code is retryable.
func isRetryableStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusForbidden, // 403 - rate limit
		http.StatusTooManyRequests,     // 429
		http.StatusInternalServerError, // 500
		http.StatusBadGateway,          // 502
		http.StatusServiceUnavailable,  // 503
		http.StatusGatewayTimeout:      // 504
		return true
	default:
		return false
	}
}

// calculateBackoff returns the backoff duration for a retry attempt.
func calculateBackoff(attempt int) time.Duration {
	backoff := float64(initialBackoff) * math.Pow(2, float64(attempt))
	if backoff > float64(maxBackoff) {
		backoff = float64(maxBackoff)
	}
	return time.Duration(backoff)
}

func githubToken() string {
	if token := os.Getenv("GITHUB_TOKEN"); token != "" {
		return token
	}
	return os.Getenv("GH_TOKEN")
}
