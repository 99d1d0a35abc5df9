// Package boxcat implements the conditional-download protocol against
// the content server: digest-negotiated fetches of per-title payloads
// and the status/events endpoint.
package boxcat

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mmcdole/boxcat/internal/config"
	"github.com/mmcdole/boxcat/internal/domain"
)

const (
	clientVersion = "1"
	clientType    = "boxcat-go"

	headerClientVersion = "Boxcat-Client-Version"
	headerClientType    = "Boxcat-Client-Type"
	headerBuildID       = "Boxcat-Build-Id"
	headerDataDigest    = "Boxcat-Data-Digest"
	headerParamDigest   = "Boxcat-LaunchParam-Digest"

	pathData        = "/boxcat/titles/%016X/data"
	pathLaunchParam = "/boxcat/titles/%016X/launchparam"
	pathEvents      = "/boxcat/events"

	contentTypeData        = "application/zip"
	contentTypeLaunchParam = "application/octet-stream"
)

// Server status codes beyond the standard meanings.
const (
	statusBadClientVersion = http.StatusMovedPermanently // 301: client version rejected
	statusNoUpdate         = http.StatusNotModified      // 304: digest matched, cache is current
	statusNoMatchTitleID   = http.StatusNotFound         // 404: no content configured for this title
	statusNoMatchBuildID   = http.StatusNotAcceptable    // 406: build is blacklisted
)

// Client talks to the content server and maintains the local download
// cache.
type Client struct {
	baseURL  string
	cacheDir string

	// The launch parameter payload is small; it gets a shorter timeout
	// than the archive so it cannot block as long.
	dataClient  *http.Client
	paramClient *http.Client

	logger *slog.Logger
}

// NewClient creates a new content server client.
func NewClient(cfg *config.Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:  strings.TrimRight(cfg.Server.URL, "/"),
		cacheDir: cfg.Cache.Dir,
		dataClient: &http.Client{
			Timeout: time.Duration(cfg.Server.DataTimeout) * time.Second,
			// 301 is a protocol signal (client version rejected), not a
			// redirect to follow.
			CheckRedirect: noRedirect,
		},
		paramClient: &http.Client{
			Timeout:       time.Duration(cfg.Server.LaunchParamTimeout) * time.Second,
			CheckRedirect: noRedirect,
		},
		logger: logger,
	}
}

func noRedirect(req *http.Request, via []*http.Request) error {
	return http.ErrUseLastResponse
}

// DataPath returns the cache path of the archive payload for a title.
func (c *Client) DataPath(titleID uint64) string {
	return filepath.Join(c.cacheDir, "bcat", fmt.Sprintf("%016X", titleID), "data.zip")
}

// LaunchParamPath returns the cache path of the launch parameter payload
// for a title.
func (c *Client) LaunchParamPath(titleID uint64) string {
	return filepath.Join(c.cacheDir, "bcat", fmt.Sprintf("%016X", titleID), "launchparam.bin")
}

// DownloadData performs one conditional fetch of the archive payload and
// persists it to the title's cache path.
func (c *Client) DownloadData(title domain.TitleVersion) domain.DownloadResult {
	return c.download(
		c.dataClient,
		fmt.Sprintf(pathData, title.TitleID),
		headerDataDigest,
		contentTypeData,
		c.DataPath(title.TitleID),
		title.BuildID,
	)
}

// DownloadLaunchParam performs one conditional fetch of the launch
// parameter payload and persists it to the title's cache path.
func (c *Client) DownloadLaunchParam(title domain.TitleVersion) domain.DownloadResult {
	return c.download(
		c.paramClient,
		fmt.Sprintf(pathLaunchParam, title.TitleID),
		headerParamDigest,
		contentTypeLaunchParam,
		c.LaunchParamPath(title.TitleID),
		title.BuildID,
	)
}

func (c *Client) download(hc *http.Client, urlPath, digestHeader, wantContentType, cachePath string, buildID uint64) domain.DownloadResult {
	req, err := http.NewRequest(http.MethodGet, c.baseURL+urlPath, nil)
	if err != nil {
		c.logger.Error("failed to build download request", "path", urlPath, "error", err)
		return domain.DownloadGeneralWebError
	}

	req.Header.Set(headerClientVersion, clientVersion)
	req.Header.Set(headerClientType, clientType)
	req.Header.Set(headerBuildID, fmt.Sprintf("%016X", buildID))

	// The digest header turns the call into a conditional fetch: it is
	// attached only when a cached payload already exists, and the server
	// answers 304 when the cache is current.
	if cached, err := os.ReadFile(cachePath); err == nil {
		req.Header.Set(digestHeader, hex.EncodeToString(Digest(cached)))
	}

	c.logger.Debug("download request", "url", req.URL.String(), "conditional", req.Header.Get(digestHeader) != "")

	resp, err := hc.Do(req)
	if err != nil {
		c.logger.Error("download request failed", "path", urlPath, "error", err)
		return domain.DownloadNoResponse
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case statusNoUpdate:
		return domain.DownloadSuccess
	case statusBadClientVersion:
		return domain.DownloadBadClientVersion
	case statusNoMatchTitleID:
		return domain.DownloadNoMatchTitleID
	case statusNoMatchBuildID:
		return domain.DownloadNoMatchBuildID
	case http.StatusOK:
	default:
		c.logger.Error("download request error", "path", urlPath, "status", resp.StatusCode)
		return domain.DownloadGeneralWebError
	}

	if !strings.Contains(resp.Header.Get("Content-Type"), wantContentType) {
		return domain.DownloadInvalidContentType
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.logger.Error("failed to read download body", "path", urlPath, "error", err)
		return domain.DownloadNoResponse
	}

	if err := writeCacheFile(cachePath, body); err != nil {
		c.logger.Error("failed to persist download", "path", cachePath, "error", err)
		return domain.DownloadGeneralFSError
	}

	return domain.DownloadSuccess
}

// writeCacheFile persists a payload to its cache path. The write is
// staged through a temp file in the same directory so a cache file is
// either absent or a complete payload, never a partial write.
func writeCacheFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return nil
}

// Digest returns the SHA-256 fingerprint of a payload. The empty buffer
// is valid input.
func Digest(data []byte) []byte {
	sum := sha256.Sum256(data)
	return sum[:]
}
