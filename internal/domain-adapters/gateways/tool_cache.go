package gateways

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ochairo/smithy/internal/domain/entities"
	"github.com/ochairo/smithy/internal/domain/interfaces"
)

// VersionResolver resolves a tool's version source to a concrete version.
type VersionResolver interface {
	Resolve(ctx context.Context, source string) (string, error)
}

// SignatureVerifier checks a detached signature over a downloaded file
// against a trusted public key.
type SignatureVerifier interface {
	VerifyDetached(payloadPath, signaturePath, keyPath string) error
}

// ToolCache acquires helper jars on first use and reuses them forever
// after. A cached jar is returned without touching the network; a miss
// downloads into a temp directory next to the final location and promotes
// the jar with a rename, so a crashed fetch never leaves a half-written
// jar where the cache lookup would find it.
type ToolCache struct {
	dir      string
	client   *http.Client
	versions VersionResolver
	checks   *ChecksumVerifier
	signer   SignatureVerifier
	log      interfaces.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewToolCache creates a cache rooted at dir. The signer may be nil when no
// tool spec requests signature verification.
func NewToolCache(dir string, versions VersionResolver, signer SignatureVerifier, log interfaces.Logger) *ToolCache {
	if log == nil {
		log = &interfaces.NoOpLogger{}
	}
	return &ToolCache{
		dir: dir,
		client: &http.Client{
			Timeout: 5 * time.Minute, // Long timeout for large downloads
		},
		versions: versions,
		checks:   NewChecksumVerifier(),
		signer:   signer,
		log:      log,
	}
}

// CachedPath reports where the tool's jar lives and whether it is present.
// It never touches the network.
func (c *ToolCache) CachedPath(spec entities.ToolSpec) (string, bool) {
	jarPath := filepath.Join(c.dir, spec.Name, spec.JarName)
	return jarPath, fileExists(jarPath)
}

// Ensure returns the path of the tool's jar, downloading it first if the
// cache misses. Concurrent calls for the same tool serialize so the jar is
// fetched once; different tools fetch independently.
func (c *ToolCache) Ensure(ctx context.Context, spec entities.ToolSpec) (string, error) {
	if spec.Name == "" || spec.JarName == "" {
		return "", fmt.Errorf("tool spec needs both a name and a jar name")
	}

	lock := c.toolLock(spec.Name)
	lock.Lock()
	defer lock.Unlock()

	jarPath, cached := c.CachedPath(spec)
	if cached {
		return jarPath, nil
	}
	if spec.URL == "" {
		return "", fmt.Errorf("tool %s is not cached and has no download URL", spec.Name)
	}

	url, innerPath, err := c.resolvePlaceholders(ctx, spec)
	if err != nil {
		return "", err
	}

	toolDir := filepath.Dir(jarPath)
	if err := os.MkdirAll(toolDir, 0750); err != nil {
		return "", fmt.Errorf("failed to create tool directory: %w", err)
	}

	// The temp dir lives inside the tool's own directory so the final
	// rename stays on one filesystem. The dot prefix keeps partial fetches
	// invisible to cache lookups.
	tmpDir, err := os.MkdirTemp(toolDir, ".fetch-*")
	if err != nil {
		return "", fmt.Errorf("failed to create download directory: %w", err)
	}
	//nolint:errcheck // Best effort cleanup of partial download state
	defer os.RemoveAll(tmpDir)

	archivePath := filepath.Join(tmpDir, remoteFileName(url, spec.JarName))
	if err := c.download(ctx, url, archivePath); err != nil {
		return "", fmt.Errorf("failed to download %s: %w", spec.Name, err)
	}

	if spec.SHA256 != "" {
		if err := c.checks.VerifyFile(archivePath, spec.SHA256); err != nil {
			return "", fmt.Errorf("refusing to install %s: %w", spec.Name, err)
		}
	}
	if spec.SignatureURL != "" {
		if err := c.verifySignature(ctx, spec, archivePath, tmpDir); err != nil {
			return "", fmt.Errorf("refusing to install %s: %w", spec.Name, err)
		}
	}

	payload := archivePath
	if isTarball(url) {
		payload, err = c.extractPayload(archivePath, tmpDir, spec.Name, innerPath)
		if err != nil {
			return "", err
		}
	}

	if err := os.Rename(payload, jarPath); err != nil {
		return "", fmt.Errorf("failed to install %s: %w", spec.Name, err)
	}

	c.log.Info("tool installed",
		interfaces.F("tool", spec.Name),
		interfaces.F("path", jarPath))
	return jarPath, nil
}

func (c *ToolCache) toolLock(name string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.locks == nil {
		c.locks = make(map[string]*sync.Mutex)
	}
	lock, ok := c.locks[name]
	if !ok {
		lock = &sync.Mutex{}
		c.locks[name] = lock
	}
	return lock
}

// resolvePlaceholders fills {version} in the URL and archive inner path.
// Version resolution only runs when a placeholder actually needs it, so
// fixed-URL tools stay resolvable offline.
func (c *ToolCache) resolvePlaceholders(ctx context.Context, spec entities.ToolSpec) (url, innerPath string, err error) {
	url = spec.URL
	innerPath = spec.ArchiveInnerPath
	if !strings.Contains(url+innerPath+spec.SignatureURL, "{version}") {
		return url, innerPath, nil
	}

	if c.versions == nil {
		return "", "", fmt.Errorf("tool %s uses a {version} placeholder but no version resolver is configured", spec.Name)
	}
	version, err := c.versions.Resolve(ctx, spec.VersionSource)
	if err != nil {
		return "", "", fmt.Errorf("failed to resolve version for %s: %w", spec.Name, err)
	}
	url = strings.ReplaceAll(url, "{version}", version)
	innerPath = strings.ReplaceAll(innerPath, "{version}", version)
	return url, innerPath, nil
}

func (c *ToolCache) verifySignature(ctx context.Context, spec entities.ToolSpec, archivePath, tmpDir string) error {
	if c.signer == nil {
		return fmt.Errorf("signature verification requested but no verifier is configured")
	}
	if spec.PublicKeyPath == "" {
		return fmt.Errorf("signature verification requested but no public key is configured")
	}

	sigURL := spec.SignatureURL
	if strings.Contains(sigURL, "{version}") {
		version, err := c.versions.Resolve(ctx, spec.VersionSource)
		if err != nil {
			return fmt.Errorf("failed to resolve version for signature: %w", err)
		}
		sigURL = strings.ReplaceAll(sigURL, "{version}", version)
	}

	sigPath := filepath.Join(tmpDir, "detached.sig")
	if err := c.download(ctx, sigURL, sigPath); err != nil {
		return fmt.Errorf("failed to download signature: %w", err)
	}
	if err := c.signer.VerifyDetached(archivePath, sigPath, spec.PublicKeyPath); err != nil {
		return fmt.Errorf("signature verification failed: %w", err)
	}
	return nil
}

// extractPayload unpacks a tarball and returns the path of the jar named by
// innerPath. A missing inner path means the archive layout changed upstream;
// the temp dir (and with it all partial state) is discarded by the caller.
func (c *ToolCache) extractPayload(archivePath, tmpDir, toolName, innerPath string) (string, error) {
	if innerPath == "" {
		return "", fmt.Errorf("tool %s downloads an archive but does not name the jar inside it", toolName)
	}
	extractDir := filepath.Join(tmpDir, "extracted")
	if err := c.extractTarGz(archivePath, extractDir); err != nil {
		return "", fmt.Errorf("failed to extract %s: %w", toolName, err)
	}
	payload := filepath.Join(extractDir, innerPath)
	if !fileExists(payload) {
		return "", fmt.Errorf("archive for %s does not contain %s; the upstream layout may have changed", toolName, innerPath)
	}
	return payload, nil
}

// download fetches url into dest. dest's directory must exist.
func (c *ToolCache) download(ctx context.Context, url, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "smithy/1.0")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	//nolint:errcheck // Defer close on HTTP response body
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}

	//nolint:gosec // G304: File path dest is function parameter for download destination
	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}

	written, err := io.Copy(out, resp.Body)
	if err != nil {
		//nolint:errcheck,gosec // G104: Best effort close after failed copy
		out.Close()
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("failed to close file: %w", err)
	}

	c.log.Debug("downloaded",
		interfaces.F("url", url),
		interfaces.F("bytes", written))
	return nil
}

// extractTarGz extracts a .tar.gz file to destDir. Files and directories
// land in a first pass; symlinks wait for a second pass so their targets
// exist. Entries escaping destDir are rejected.
func (c *ToolCache) extractTarGz(tarPath, destDir string) error {
	//nolint:gosec // G304: File path tarPath is function parameter for extraction
	file, err := os.Open(tarPath)
	if err != nil {
		return fmt.Errorf("failed to open tar.gz: %w", err)
	}
	//nolint:errcheck // Defer close on read-only file
	defer file.Close()

	gzr, err := gzip.NewReader(file)
	if err != nil {
		return fmt.Errorf("failed to create gzip reader: %w", err)
	}
	//nolint:errcheck // Defer close on gzip reader
	defer gzr.Close()

	tr := tar.NewReader(gzr)

	if err := os.MkdirAll(destDir, 0750); err != nil {
		return fmt.Errorf("failed to create destination directory: %w", err)
	}

	type symlinkInfo struct {
		target   string
		linkname string
	}
	var symlinks []symlinkInfo

	cleanDest := filepath.Clean(destDir)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("tar read error: %w", err)
		}

		//nolint:gosec // G305: Path traversal validated by the prefix check below
		target := filepath.Join(destDir, header.Name)
		if filepath.Clean(target) != cleanDest &&
			!strings.HasPrefix(filepath.Clean(target), cleanDest+string(os.PathSeparator)) {
			return fmt.Errorf("invalid file path in archive: %s", header.Name)
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0750); err != nil {
				return fmt.Errorf("failed to create directory: %w", err)
			}

		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0750); err != nil {
				return fmt.Errorf("failed to create parent directory: %w", err)
			}

			//nolint:gosec // G115: Integer overflow from tar header mode is acceptable
			outFile, err := os.OpenFile(target, os.O_CREATE|os.O_RDWR, os.FileMode(header.Mode))
			if err != nil {
				return fmt.Errorf("failed to create file: %w", err)
			}

			// 1GB cap guards against decompression bombs.
			if _, err := io.Copy(outFile, io.LimitReader(tr, 1<<30)); err != nil {
				_ = outFile.Close()
				return fmt.Errorf("failed to write file: %w", err)
			}
			if err := outFile.Close(); err != nil {
				return fmt.Errorf("failed to close file: %w", err)
			}

		case tar.TypeSymlink:
			symlinks = append(symlinks, symlinkInfo{
				target:   target,
				linkname: header.Linkname,
			})

		default:
			c.log.Debug("ignoring unsupported archive entry",
				interfaces.F("name", header.Name),
				interfaces.F("type", header.Typeflag))
		}
	}

	for _, link := range symlinks {
		if err := os.MkdirAll(filepath.Dir(link.target), 0750); err != nil {
			return fmt.Errorf("failed to create directory for symlink: %w", err)
		}
		// Some tarballs ship broken symlinks; they are not worth failing a
		// tool install over.
		if err := os.Symlink(link.linkname, link.target); err != nil {
			c.log.Warn("failed to create symlink",
				interfaces.F("target", link.target),
				interfaces.F("error", err.Error()))
		}
	}

	return nil
}

func isTarball(url string) bool {
	trimmed := strings.SplitN(url, "?", 2)[0]
	return strings.HasSuffix(trimmed, ".tar.gz") || strings.HasSuffix(trimmed, ".tgz")
}

// remoteFileName picks the local name for a downloaded URL, falling back to
// the jar name when the URL path is unhelpful.
func remoteFileName(url, fallback string) string {
	trimmed := strings.SplitN(url, "?", 2)[0]
	name := filepath.Base(trimmed)
	if name == "" || name == "." || name == "/" {
		return fallback
	}
	return name
}
