package gateways

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ochairo/smithy/internal/domain/entities"
)

type fakeVersions struct {
	version string
	calls   atomic.Int32
}

func (f *fakeVersions) Resolve(_ context.Context, _ string) (string, error) {
	f.calls.Add(1)
	return f.version, nil
}

type fakeSigner struct {
	payload string
	sig     string
	key     string
	err     error
	calls   int
}

func (f *fakeSigner) VerifyDetached(payloadPath, signaturePath, keyPath string) error {
	f.calls++
	f.payload, f.sig, f.key = payloadPath, signaturePath, keyPath
	return f.err
}

func makeTarGz(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for name, content := range files {
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name:     name,
			Mode:     0644,
			Size:     int64(len(content)),
			Typeflag: tar.TypeReg,
		}))
		_, err := tw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	return buf.Bytes()
}

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func TestEnsureDownloadsPlainJar(t *testing.T) {
	jarBytes := []byte("decompiler bytecode")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/cfr.jar", r.URL.Path)
		//nolint:errcheck // Test handler write
		w.Write(jarBytes)
	}))
	defer server.Close()

	dir := t.TempDir()
	cache := NewToolCache(dir, nil, nil, nil)

	path, err := cache.Ensure(context.Background(), entities.ToolSpec{
		Name:    "cfr",
		JarName: "cfr.jar",
		URL:     server.URL + "/cfr.jar",
	})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "cfr", "cfr.jar"), path)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, jarBytes, content)
}

func TestEnsureCachedJarSkipsNetwork(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests.Add(1)
		//nolint:errcheck // Test handler write
		w.Write([]byte("jar"))
	}))
	defer server.Close()

	dir := t.TempDir()
	spec := entities.ToolSpec{Name: "cfr", JarName: "cfr.jar", URL: server.URL + "/cfr.jar"}
	cache := NewToolCache(dir, nil, nil, nil)

	first, err := cache.Ensure(context.Background(), spec)
	require.NoError(t, err)
	second, err := cache.Ensure(context.Background(), spec)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), requests.Load())
}

func TestEnsureExtractsArchive(t *testing.T) {
	archive := makeTarGz(t, map[string]string{
		"proguard-7.7.0/lib/proguard.jar": "shrunk bits",
		"proguard-7.7.0/README.md":        "docs",
	})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/dl/7.7.0/proguard.tar.gz", r.URL.Path)
		//nolint:errcheck // Test handler write
		w.Write(archive)
	}))
	defer server.Close()

	versions := &fakeVersions{version: "7.7.0"}
	dir := t.TempDir()
	cache := NewToolCache(dir, versions, nil, nil)

	path, err := cache.Ensure(context.Background(), entities.ToolSpec{
		Name:             "proguard",
		JarName:          "proguard.jar",
		URL:              server.URL + "/dl/{version}/proguard.tar.gz",
		ArchiveInnerPath: "proguard-{version}/lib/proguard.jar",
		VersionSource:    "github-release:Guardsquare/proguard",
	})
	require.NoError(t, err)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "shrunk bits", string(content))
	assert.Equal(t, int32(1), versions.calls.Load())
}

func TestEnsureArchiveMissingInnerPath(t *testing.T) {
	archive := makeTarGz(t, map[string]string{"somewhere/else.jar": "bits"})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		//nolint:errcheck // Test handler write
		w.Write(archive)
	}))
	defer server.Close()

	dir := t.TempDir()
	cache := NewToolCache(dir, nil, nil, nil)

	_, err := cache.Ensure(context.Background(), entities.ToolSpec{
		Name:             "proguard",
		JarName:          "proguard.jar",
		URL:              server.URL + "/proguard.tar.gz",
		ArchiveInnerPath: "proguard/lib/proguard.jar",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not contain")
	assertNoPartialState(t, filepath.Join(dir, "proguard"))
}

func TestEnsureArchiveWithoutInnerPath(t *testing.T) {
	dir := t.TempDir()
	cache := NewToolCache(dir, nil, nil, nil)

	archive := makeTarGz(t, map[string]string{"lib/tool.jar": "bits"})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		//nolint:errcheck // Test handler write
		w.Write(archive)
	}))
	defer server.Close()

	_, err := cache.Ensure(context.Background(), entities.ToolSpec{
		Name:    "tool",
		JarName: "tool.jar",
		URL:     server.URL + "/tool.tar.gz",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not name the jar")
}

func TestEnsureChecksum(t *testing.T) {
	jarBytes := []byte("verified tool")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		//nolint:errcheck // Test handler write
		w.Write(jarBytes)
	}))
	defer server.Close()

	t.Run("match installs", func(t *testing.T) {
		cache := NewToolCache(t.TempDir(), nil, nil, nil)
		path, err := cache.Ensure(context.Background(), entities.ToolSpec{
			Name:    "tool",
			JarName: "tool.jar",
			URL:     server.URL + "/tool.jar",
			SHA256:  sha256Hex(jarBytes),
		})
		require.NoError(t, err)
		assert.FileExists(t, path)
	})

	t.Run("mismatch refuses install", func(t *testing.T) {
		dir := t.TempDir()
		cache := NewToolCache(dir, nil, nil, nil)
		_, err := cache.Ensure(context.Background(), entities.ToolSpec{
			Name:    "tool",
			JarName: "tool.jar",
			URL:     server.URL + "/tool.jar",
			SHA256:  sha256Hex([]byte("something else")),
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "checksum mismatch")
		assertNoPartialState(t, filepath.Join(dir, "tool"))
	})
}

func TestEnsureSignatureVerification(t *testing.T) {
	jarBytes := []byte("signed tool")
	var sigRequests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/tool.jar.asc" {
			sigRequests.Add(1)
			//nolint:errcheck // Test handler write
			w.Write([]byte("detached signature"))
			return
		}
		//nolint:errcheck // Test handler write
		w.Write(jarBytes)
	}))
	defer server.Close()

	spec := entities.ToolSpec{
		Name:          "tool",
		JarName:       "tool.jar",
		URL:           server.URL + "/tool.jar",
		SignatureURL:  server.URL + "/tool.jar.asc",
		PublicKeyPath: "/keys/releases.asc",
	}

	t.Run("valid signature installs", func(t *testing.T) {
		signer := &fakeSigner{}
		cache := NewToolCache(t.TempDir(), nil, signer, nil)

		path, err := cache.Ensure(context.Background(), spec)
		require.NoError(t, err)
		assert.FileExists(t, path)
		assert.Equal(t, 1, signer.calls)
		assert.Equal(t, "/keys/releases.asc", signer.key)
		assert.NotEmpty(t, signer.payload)
		assert.NotEmpty(t, signer.sig)
	})

	t.Run("bad signature refuses install", func(t *testing.T) {
		signer := &fakeSigner{err: assert.AnError}
		dir := t.TempDir()
		cache := NewToolCache(dir, nil, signer, nil)

		_, err := cache.Ensure(context.Background(), spec)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "signature verification failed")
		assertNoPartialState(t, filepath.Join(dir, "tool"))
	})

	t.Run("no verifier configured", func(t *testing.T) {
		cache := NewToolCache(t.TempDir(), nil, nil, nil)
		_, err := cache.Ensure(context.Background(), spec)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no verifier is configured")
	})
}

func TestEnsureConcurrentCallsDownloadOnce(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests.Add(1)
		time.Sleep(50 * time.Millisecond)
		//nolint:errcheck // Test handler write
		w.Write([]byte("jar"))
	}))
	defer server.Close()

	spec := entities.ToolSpec{Name: "tool", JarName: "tool.jar", URL: server.URL + "/tool.jar"}
	cache := NewToolCache(t.TempDir(), nil, nil, nil)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := cache.Ensure(context.Background(), spec)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), requests.Load())
}

func TestEnsureUncachedWithoutURL(t *testing.T) {
	cache := NewToolCache(t.TempDir(), nil, nil, nil)

	_, err := cache.Ensure(context.Background(), entities.ToolSpec{Name: "tool", JarName: "tool.jar"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no download URL")
}

func TestCachedPath(t *testing.T) {
	dir := t.TempDir()
	cache := NewToolCache(dir, nil, nil, nil)
	spec := entities.ToolSpec{Name: "tool", JarName: "tool.jar"}

	path, ok := cache.CachedPath(spec)
	assert.False(t, ok)
	assert.Equal(t, filepath.Join(dir, "tool", "tool.jar"), path)

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0750))
	require.NoError(t, os.WriteFile(path, []byte("jar"), 0644))

	_, ok = cache.CachedPath(spec)
	assert.True(t, ok)
}

// assertNoPartialState checks that a failed fetch left neither the jar nor
// any temp download directories behind.
func assertNoPartialState(t *testing.T, toolDir string) {
	t.Helper()
	entries, err := os.ReadDir(toolDir)
	if os.IsNotExist(err) {
		return
	}
	require.NoError(t, err)
	assert.Empty(t, entries)
}
