package boxcat

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mmcdole/boxcat/internal/config"
	"github.com/mmcdole/boxcat/internal/domain"
	"github.com/mmcdole/boxcat/internal/log"
)

func testClient(t *testing.T, serverURL string) *Client {
	t.Helper()
	cfg := &config.Config{
		Server: config.ServerConfig{
			URL:                serverURL,
			DataTimeout:        5,
			LaunchParamTimeout: 2,
		},
		Cache: config.CacheConfig{Dir: t.TempDir()},
	}
	return NewClient(cfg, log.Discard())
}

func TestDownloadNoCacheOmitsDigest(t *testing.T) {
	title := domain.TitleVersion{TitleID: 0x0100000000010000, BuildID: 0xDEADBEEF}

	var gotDigest, gotBuild, gotVersion, gotType string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotDigest = r.Header.Get(headerDataDigest)
		gotBuild = r.Header.Get(headerBuildID)
		gotVersion = r.Header.Get(headerClientVersion)
		gotType = r.Header.Get(headerClientType)
		require.Equal(t, "/boxcat/titles/0100000000010000/data", r.URL.Path)
		w.Header().Set("Content-Type", "application/zip")
		w.Write([]byte("archive-bytes"))
	}))
	defer server.Close()

	client := testClient(t, server.URL)
	res := client.DownloadData(title)
	require.Equal(t, domain.DownloadSuccess, res)

	require.Empty(t, gotDigest)
	require.Equal(t, "00000000DEADBEEF", gotBuild)
	require.Equal(t, clientVersion, gotVersion)
	require.Equal(t, clientType, gotType)

	written, err := os.ReadFile(client.DataPath(title.TitleID))
	require.NoError(t, err)
	require.Equal(t, []byte("archive-bytes"), written)
}

func TestDownloadSendsDigestOfCachedBytes(t *testing.T) {
	title := domain.TitleVersion{TitleID: 1, BuildID: 2}
	cached := []byte("previously downloaded payload")
	sum := sha256.Sum256(cached)

	var gotDigest string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotDigest = r.Header.Get(headerDataDigest)
		w.WriteHeader(http.StatusNotModified)
	}))
	defer server.Close()

	client := testClient(t, server.URL)
	path := client.DataPath(title.TitleID)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, cached, 0644))

	res := client.DownloadData(title)
	require.Equal(t, domain.DownloadSuccess, res)
	require.Equal(t, hex.EncodeToString(sum[:]), gotDigest)

	// 304 means the cache is already current; nothing is rewritten.
	after, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, cached, after)
}

func TestDownloadStatusMapping(t *testing.T) {
	cases := []struct {
		status int
		want   domain.DownloadResult
	}{
		{http.StatusMovedPermanently, domain.DownloadBadClientVersion},
		{http.StatusNotFound, domain.DownloadNoMatchTitleID},
		{http.StatusNotAcceptable, domain.DownloadNoMatchBuildID},
		{http.StatusInternalServerError, domain.DownloadGeneralWebError},
		{http.StatusTeapot, domain.DownloadGeneralWebError},
	}

	for _, tc := range cases {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
		}))

		client := testClient(t, server.URL)
		res := client.DownloadData(domain.TitleVersion{TitleID: 1, BuildID: 1})
		require.Equal(t, tc.want, res, "status %d", tc.status)

		server.Close()
	}
}

func TestDownloadInvalidContentType(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html>not an archive</html>"))
	}))
	defer server.Close()

	client := testClient(t, server.URL)
	title := domain.TitleVersion{TitleID: 7, BuildID: 7}
	res := client.DownloadData(title)
	require.Equal(t, domain.DownloadInvalidContentType, res)

	_, err := os.Stat(client.DataPath(title.TitleID))
	require.True(t, os.IsNotExist(err))
}

func TestDownloadNoResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // unreachable on purpose

	client := testClient(t, server.URL)
	res := client.DownloadData(domain.TitleVersion{TitleID: 1, BuildID: 1})
	require.Equal(t, domain.DownloadNoResponse, res)
}

func TestDownloadLaunchParamEndpoint(t *testing.T) {
	title := domain.TitleVersion{TitleID: 0x0100AABBCCDD0000, BuildID: 3}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/boxcat/titles/0100AABBCCDD0000/launchparam", r.URL.Path)
		require.Empty(t, r.Header.Get(headerParamDigest))
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Write([]byte{0x01, 0x02, 0x03})
	}))
	defer server.Close()

	client := testClient(t, server.URL)
	res := client.DownloadLaunchParam(title)
	require.Equal(t, domain.DownloadSuccess, res)

	written, err := os.ReadFile(client.LaunchParamPath(title.TitleID))
	require.NoError(t, err)
	require.Equal(t, []byte{0x01, 0x02, 0x03}, written)
}

func TestDigestEmptyBuffer(t *testing.T) {
	// SHA-256 of the empty buffer is well defined.
	require.Equal(t,
		"e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		hex.EncodeToString(Digest(nil)))
}

func TestWriteCacheFileCreatesParents(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bcat", "0000000000000001", "data.zip")

	require.NoError(t, writeCacheFile(path, []byte("abc")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, []byte("abc"), data)

	// No temp files left behind.
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1)
}
