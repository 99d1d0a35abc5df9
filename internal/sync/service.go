// Package sync orchestrates background content synchronization: it
// drives the conditional download, archive extraction, and merge into
// the per-title target directory, and reports completion through a
// serialized callback.
package sync

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/mmcdole/boxcat/internal/archive"
	"github.com/mmcdole/boxcat/internal/boxcat"
	"github.com/mmcdole/boxcat/internal/domain"
	"github.com/mmcdole/boxcat/internal/store"
	"github.com/mmcdole/boxcat/internal/vfs"
)

// errorHeadline is the short message shown with every user-visible
// download failure; the result's long message is the detail.
const errorHeadline = "There was an error while synchronizing bonus content."

// DirectoryGetter maps a title id to its target directory tree.
type DirectoryGetter func(titleID uint64) (*vfs.Dir, error)

// completion is one callback invocation waiting in the notifier mailbox.
type completion struct {
	callback domain.CompletionCallback
	success  bool
}

// Service is the synchronization orchestrator. Each Synchronize call
// runs as its own goroutine; completions are posted to a single-consumer
// mailbox so callbacks never run concurrently with each other.
type Service struct {
	client    *boxcat.Client
	dirGetter DirectoryGetter
	display   domain.ErrorDisplay
	journal   *store.Journal
	localOnly bool
	logger    *slog.Logger

	completions  chan completion
	notifierDone chan struct{}

	mu         sync.Mutex
	titleLocks map[uint64]*sync.Mutex
	inFlight   int

	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewService creates a synchronization service. display and journal may
// be nil; localOnly makes existing local data authoritative and skips
// all network calls.
func NewService(client *boxcat.Client, dirGetter DirectoryGetter, display domain.ErrorDisplay, journal *store.Journal, localOnly bool, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		client:       client,
		dirGetter:    dirGetter,
		display:      display,
		journal:      journal,
		localOnly:    localOnly,
		logger:       logger,
		completions:  make(chan completion, 16),
		notifierDone: make(chan struct{}),
		titleLocks:   make(map[uint64]*sync.Mutex),
	}
	go s.notify()
	return s
}

// notify drains the completion mailbox, invoking callbacks one at a
// time.
func (s *Service) notify() {
	defer close(s.notifierDone)
	for c := range s.completions {
		c.callback(c.success)
	}
}

// Close waits for in-flight synchronizations to finish and stops the
// notifier after the remaining callbacks have been delivered.
func (s *Service) Close() {
	s.closeOnce.Do(func() {
		s.wg.Wait()
		close(s.completions)
		<-s.notifierDone
	})
}

// Syncing reports whether any synchronization is currently in flight.
// Informational only; it does not gate new requests.
func (s *Service) Syncing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight > 0
}

// Synchronize schedules a background synchronization of the full
// archive into the title's target directory. The return value only
// means the request was accepted, not that it will succeed.
func (s *Service) Synchronize(title domain.TitleVersion, callback domain.CompletionCallback) bool {
	return s.schedule(title, "", callback)
}

// SynchronizeDirectory schedules a background synchronization of a
// single named subtree of the archive, leaving the rest of the target
// directory untouched.
func (s *Service) SynchronizeDirectory(title domain.TitleVersion, name string, callback domain.CompletionCallback) bool {
	if name == "" {
		return false
	}
	return s.schedule(title, name, callback)
}

func (s *Service) schedule(title domain.TitleVersion, dirName string, callback domain.CompletionCallback) bool {
	if callback == nil {
		return false
	}

	s.mu.Lock()
	s.inFlight++
	s.mu.Unlock()

	s.wg.Add(1)
	go s.synchronize(title, dirName, callback)
	return true
}

func (s *Service) synchronize(title domain.TitleVersion, dirName string, callback domain.CompletionCallback) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		s.inFlight--
		s.mu.Unlock()
	}()

	// Overlapping requests for the same title would race on the cache
	// file and the target subtree; serialize them. Distinct titles run
	// concurrently without bound.
	lock := s.titleLock(title.TitleID)
	lock.Lock()
	ok := s.run(title, dirName)
	lock.Unlock()

	s.completions <- completion{callback: callback, success: ok}
}

func (s *Service) titleLock(titleID uint64) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, exists := s.titleLocks[titleID]
	if !exists {
		lock = &sync.Mutex{}
		s.titleLocks[titleID] = lock
	}
	return lock
}

// run executes the synchronization state machine for one request and
// returns the final success value.
func (s *Service) run(title domain.TitleVersion, dirName string) bool {
	if s.localOnly {
		s.logger.Info("using local data by override, skipping download", "title", title)
		return true
	}

	res := s.client.DownloadData(title)
	if res != domain.DownloadSuccess {
		s.logger.Error("synchronization failed", "title", title, "result", res)
		s.cleanupFailedDownload(s.client.DataPath(title.TitleID), res)
		s.displayResult(res)
		s.record(title, res.String(), false)
		return false
	}

	data, err := os.ReadFile(s.client.DataPath(title.TitleID))
	if err != nil || len(data) == 0 {
		s.logger.Error("failed to read cached archive", "title", title, "error", err)
		s.record(title, "unreadable archive", false)
		return false
	}

	extracted, err := archive.ExtractZip(data)
	if err != nil {
		s.logger.Error("failed to extract archive", "title", title, "error", err)
		s.record(title, "extraction failed", false)
		return false
	}

	if err := s.merge(title.TitleID, extracted, dirName); err != nil {
		s.logger.Error("failed to merge extracted archive", "title", title, "error", err)
		s.record(title, "merge failed", false)
		return false
	}

	s.record(title, res.String(), true)
	return true
}

// merge copies the extracted tree, or a single named subtree of it, into
// the title's target directory.
func (s *Service) merge(titleID uint64, extracted *vfs.Dir, dirName string) error {
	target, err := s.dirGetter(titleID)
	if err != nil {
		return err
	}

	if dirName == "" {
		return vfs.Merge(extracted, target)
	}

	sourceSub, err := extracted.Subdirectory(dirName)
	if err != nil {
		return err
	}
	targetSub, err := target.Subdirectory(dirName)
	if err != nil {
		return err
	}
	return vfs.Merge(sourceSub, targetSub)
}

// cleanupFailedDownload deletes the stale cache file when the server has
// signaled that this title or build will never be served. All other
// failures are transient and leave the cache intact.
func (s *Service) cleanupFailedDownload(cachePath string, res domain.DownloadResult) {
	if !res.InvalidatesCache() {
		return
	}
	if err := os.Remove(cachePath); err != nil && !os.IsNotExist(err) {
		s.logger.Error("failed to delete stale cache file", "path", cachePath, "error", err)
	}
}

func (s *Service) displayResult(res domain.DownloadResult) {
	if s.display == nil || !res.UserVisible() {
		return
	}
	s.display.ShowError(errorHeadline, res.Message())
}

func (s *Service) record(title domain.TitleVersion, result string, success bool) {
	if s.journal == nil {
		return
	}
	err := s.journal.Record(store.SyncRecord{
		TitleID:  title.TitleID,
		BuildID:  title.BuildID,
		Result:   result,
		Success:  success,
		SyncedAt: time.Now(),
	})
	if err != nil {
		s.logger.Error("failed to record sync outcome", "title", title, "error", err)
	}
}

// Clear deletes all subdirectories under the title's target directory.
func (s *Service) Clear(titleID uint64) bool {
	if s.localOnly {
		s.logger.Info("using local data by override, skipping clear", "title_id", titleID)
		return true
	}

	dir, err := s.dirGetter(titleID)
	if err != nil {
		s.logger.Error("failed to get target directory", "title_id", titleID, "error", err)
		return false
	}

	names, err := dir.Subdirectories()
	if err != nil {
		s.logger.Error("failed to list target directory", "title_id", titleID, "error", err)
		return false
	}
	for _, name := range names {
		if err := dir.DeleteSubdirectory(name); err != nil {
			s.logger.Error("failed to delete subdirectory", "title_id", titleID, "name", name, "error", err)
			return false
		}
	}
	return true
}

// SetPassphrase records a per-title passphrase announcement. The
// protocol carries it but this client has no use for it yet, so it is
// acknowledged in the debug log only.
func (s *Service) SetPassphrase(titleID uint64, passphrase []byte) {
	s.logger.Debug("passphrase set", "title_id", fmt.Sprintf("%016X", titleID), "bytes", len(passphrase))
}

// GetLaunchParameter downloads (or reuses, under the local override) the
// title's launch parameter payload and returns its raw bytes. It runs
// synchronously on the calling goroutine.
func (s *Service) GetLaunchParameter(title domain.TitleVersion) ([]byte, bool) {
	path := s.client.LaunchParamPath(title.TitleID)

	if s.localOnly {
		s.logger.Info("using local data by override, skipping download", "title", title)
	} else {
		res := s.client.DownloadLaunchParam(title)
		if res != domain.DownloadSuccess {
			s.logger.Error("launch parameter download failed", "title", title, "result", res)
			s.cleanupFailedDownload(path, res)
			s.displayResult(res)
			return nil, false
		}
	}

	data, err := os.ReadFile(path)
	if err != nil || len(data) == 0 {
		s.logger.Error("failed to read launch parameter payload", "title", title, "error", err)
		return nil, false
	}
	return data, true
}
