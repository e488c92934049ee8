package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/mailhaven/core/internal/database/models"
	"github.com/mailhaven/core/internal/mailbox"
	"gorm.io/gorm"
)

var (
	// ErrSyncInProgress indicates a sync is already running for the credential
	ErrSyncInProgress = errors.New("sync already in progress for this credential")
)

// SyncResult summarizes one sync run for a credential
type SyncResult struct {
	CredentialID uint          `json:"credential_id"`
	Fetched      int           `json:"fetched"`
	Stored       int           `json:"stored"`
	Failed       int           `json:"failed"`
	Duration     time.Duration `json:"duration"`
}

// SyncService fetches new mail for credentials and feeds it through
// ingestion. A per-credential lock keeps overlapping runs from racing; the
// second caller gets ErrSyncInProgress instead of waiting.
type SyncService struct {
	credentialService *CredentialService
	ingestService     *IngestService
	fetcher           *mailbox.Fetcher
	logService        *LogService

	credentialLocks sync.Map // credentialID -> *sync.Mutex
}

// NewSyncService creates a new SyncService instance
func NewSyncService(db *gorm.DB, credentialService *CredentialService, ingestService *IngestService) *SyncService {
	return &SyncService{
		credentialService: credentialService,
		ingestService:     ingestService,
		fetcher:           mailbox.NewFetcher(),
		logService:        NewLogService(db),
	}
}

// getCredentialLock returns the mutex guarding one credential's sync
func (s *SyncService) getCredentialLock(credentialID uint) *sync.Mutex {
	lock, _ := s.credentialLocks.LoadOrStore(credentialID, &sync.Mutex{})
	return lock.(*sync.Mutex)
}

// SyncCredential runs one fetch-and-ingest cycle for a credential the user
// owns. Individual message failures are counted and logged, not fatal.
func (s *SyncService) SyncCredential(ctx context.Context, userID, credentialID uint) (*SyncResult, error) {
	credential, err := s.credentialService.GetCredentialByIDAndUserID(credentialID, userID)
	if err != nil {
		return nil, err
	}
	return s.syncOne(ctx, credential)
}

// syncOne performs the actual sync for a credential
func (s *SyncService) syncOne(ctx context.Context, credential *models.Credential) (*SyncResult, error) {
	lock := s.getCredentialLock(credential.ID)
	if !lock.TryLock() {
		return nil, ErrSyncInProgress
	}
	defer lock.Unlock()

	started := time.Now()

	password, err := s.credentialService.GetDecryptedPassword(credential)
	if err != nil {
		return nil, err
	}

	raws, err := s.fetcher.FetchSince(credential, password, credential.SyncDays)
	if err != nil {
		s.logService.LogError(credential.UserID, models.LogModuleSync, "fetch", "Mailbox fetch failed", map[string]interface{}{
			"credential_id": credential.ID,
			"error":         err.Error(),
		})
		return nil, err
	}

	result := &SyncResult{CredentialID: credential.ID, Fetched: len(raws)}
	for _, raw := range raws {
		if ctx.Err() != nil {
			break
		}
		if _, err := s.ingestService.Ingest(ctx, credential, raw); err != nil {
			result.Failed++
			s.logService.LogWarn(credential.UserID, models.LogModuleSync, "ingest", "Failed to store message", map[string]interface{}{
				"credential_id": credential.ID,
				"message_id":    raw.MessageID,
				"error":         err.Error(),
			})
			continue
		}
		result.Stored++
	}

	result.Duration = time.Since(started)
	s.credentialService.TouchLastSync(credential.ID, started)

	s.logService.LogInfo(credential.UserID, models.LogModuleSync, "sync", "Sync completed", map[string]interface{}{
		"credential_id": credential.ID,
		"fetched":       result.Fetched,
		"stored":        result.Stored,
		"failed":        result.Failed,
		"duration_ms":   result.Duration.Milliseconds(),
	})

	return result, nil
}

// SyncAll syncs every enabled credential sequentially
func (s *SyncService) SyncAll(ctx context.Context) {
	credentials, err := s.credentialService.GetEnabledCredentials()
	if err != nil {
		s.logService.LogError(0, models.LogModuleSync, "sync_all", "Failed to load credentials", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	for i := range credentials {
		if ctx.Err() != nil {
			return
		}
		credential := &credentials[i]
		if _, err := s.syncOne(ctx, credential); err != nil && !errors.Is(err, ErrSyncInProgress) {
			// already logged inside syncOne
			continue
		}
	}
}

// Scheduler periodically syncs all enabled credentials
type Scheduler struct {
	syncService *SyncService
	interval    time.Duration
	stopChan    chan struct{}
	stopOnce    sync.Once
	wg          sync.WaitGroup
}

// NewScheduler creates a new Scheduler instance
func NewScheduler(syncService *SyncService, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &Scheduler{
		syncService: syncService,
		interval:    interval,
		stopChan:    make(chan struct{}),
	}
}

// Start launches the scheduler loop. The first sweep runs after one full
// interval so startup is not delayed by slow mail servers.
func (s *Scheduler) Start(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.syncService.SyncAll(ctx)
			case <-s.stopChan:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the scheduler and waits for the loop to exit
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})
	s.wg.Wait()
}
