package identdb

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	// RadioIDURL is the URL to download the latest RadioID.net database.
	RadioIDURL = "https://radioid.net/static/user.csv"

	// DefaultSyncInterval is how often to check for updates.
	DefaultSyncInterval = 24 * time.Hour

	// RequestTimeout for HTTP requests.
	RequestTimeout = 30 * time.Second

	// MaxRetries for failed downloads.
	MaxRetries = 3

	// RetryDelay between retry attempts.
	RetryDelay = 5 * time.Second
)

// Syncer periodically refreshes the radio-ID/callsign table from
// RadioID.net, the same source the teacher's file-based lookup would
// otherwise need an operator to download by hand.
type Syncer struct {
	repository   *RadioUserRepository
	logger       *log.Logger
	syncInterval time.Duration
	httpClient   *http.Client
}

// SyncerConfig holds configuration for the syncer.
type SyncerConfig struct {
	SyncInterval time.Duration
	HTTPTimeout  time.Duration
}

// NewSyncer creates a syncer using the package defaults.
func NewSyncer(repository *RadioUserRepository, logger *log.Logger) *Syncer {
	return NewSyncerWithConfig(repository, logger, SyncerConfig{
		SyncInterval: DefaultSyncInterval,
		HTTPTimeout:  RequestTimeout,
	})
}

// NewSyncerWithConfig creates a syncer with custom configuration.
func NewSyncerWithConfig(repository *RadioUserRepository, logger *log.Logger, config SyncerConfig) *Syncer {
	if config.SyncInterval <= 0 {
		config.SyncInterval = DefaultSyncInterval
	}
	if config.HTTPTimeout <= 0 {
		config.HTTPTimeout = RequestTimeout
	}
	return &Syncer{
		repository:   repository,
		logger:       logger,
		syncInterval: config.SyncInterval,
		httpClient:   &http.Client{Timeout: config.HTTPTimeout},
	}
}

// Start begins the automatic synchronization process; it blocks until ctx
// is cancelled.
func (s *Syncer) Start(ctx context.Context) {
	if s.logger != nil {
		s.logger.Printf("radio-ID syncer starting (interval: %v)", s.syncInterval)
	}

	if err := s.SyncNow(ctx); err != nil && s.logger != nil {
		s.logger.Printf("initial radio-ID sync failed: %v", err)
	}

	ticker := time.NewTicker(s.syncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if s.logger != nil {
				s.logger.Printf("radio-ID syncer stopping")
			}
			return
		case <-ticker.C:
			if err := s.SyncNow(ctx); err != nil && s.logger != nil {
				s.logger.Printf("radio-ID sync failed: %v", err)
			}
		}
	}
}

// SyncNow performs an immediate synchronization.
func (s *Syncer) SyncNow(ctx context.Context) error {
	startTime := time.Now()
	if s.logger != nil {
		s.logger.Printf("starting radio-ID sync from %s", RadioIDURL)
	}

	var csvData io.ReadCloser
	var err error
	for attempt := 1; attempt <= MaxRetries; attempt++ {
		csvData, err = s.downloadCSV(ctx)
		if err == nil {
			break
		}
		if s.logger != nil {
			s.logger.Printf("download attempt %d/%d failed: %v", attempt, MaxRetries, err)
		}
		if attempt < MaxRetries {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(RetryDelay):
			}
		}
	}
	if err != nil {
		return fmt.Errorf("failed to download after %d attempts: %w", MaxRetries, err)
	}
	defer csvData.Close()

	users, err := s.parseCSV(csvData)
	if err != nil {
		return fmt.Errorf("failed to parse CSV: %w", err)
	}
	if len(users) == 0 {
		return fmt.Errorf("no valid users found in CSV")
	}

	if err := s.repository.UpsertBatch(users); err != nil {
		return fmt.Errorf("failed to import users: %w", err)
	}

	if s.logger != nil {
		s.logger.Printf("radio-ID sync completed: %d users imported in %v", len(users), time.Since(startTime))
	}
	return nil
}

func (s *Syncer) downloadCSV(ctx context.Context) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", RadioIDURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "dvmhost-go/1.0")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}
	return resp.Body, nil
}

// parseCSV parses the RadioID.net CSV format into RadioUser records.
func (s *Syncer) parseCSV(reader io.Reader) ([]RadioUser, error) {
	csvReader := csv.NewReader(reader)
	csvReader.FieldsPerRecord = -1

	users := make([]RadioUser, 0, 100000)
	lineNumber := 0
	for {
		record, err := csvReader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error reading CSV at line %d: %w", lineNumber, err)
		}
		lineNumber++
		if lineNumber == 1 {
			continue // header row
		}

		user, err := s.parseCSVRecord(record, lineNumber)
		if err != nil {
			if s.logger != nil {
				s.logger.Printf("skipping invalid record at line %d: %v", lineNumber, err)
			}
			continue
		}
		if user != nil {
			users = append(users, *user)
		}
		if s.logger != nil && lineNumber%10000 == 0 {
			s.logger.Printf("processed %d lines, %d valid users", lineNumber, len(users))
		}
	}
	return users, nil
}

// parseCSVRecord parses one record: RADIO_ID,CALLSIGN,FIRST_NAME,LAST_NAME,CITY,STATE,COUNTRY
func (s *Syncer) parseCSVRecord(record []string, lineNumber int) (*RadioUser, error) {
	if len(record) < 7 {
		return nil, fmt.Errorf("insufficient fields (got %d, expected 7)", len(record))
	}

	radioIDStr := strings.TrimSpace(record[0])
	radioID, err := strconv.ParseUint(radioIDStr, 10, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid radio ID '%s': %w", radioIDStr, err)
	}
	if radioID == 0 {
		return nil, fmt.Errorf("radio ID cannot be zero")
	}

	callsign := strings.TrimSpace(record[1])
	if callsign == "" {
		return nil, fmt.Errorf("callsign cannot be empty")
	}

	user := &RadioUser{
		RadioID:   uint32(radioID),
		Callsign:  strings.ToUpper(callsign),
		FirstName: strings.TrimSpace(record[2]),
		LastName:  strings.TrimSpace(record[3]),
		City:      strings.TrimSpace(record[4]),
		State:     strings.TrimSpace(record[5]),
		Country:   strings.TrimSpace(record[6]),
		UpdatedAt: time.Now(),
	}
	if !user.IsValid() {
		return nil, fmt.Errorf("user validation failed")
	}
	return user, nil
}

// GetLastSyncTime returns the timestamp of the most recently updated record.
func (s *Syncer) GetLastSyncTime() (time.Time, error) {
	users, err := s.repository.GetRecentlyUpdated(time.Unix(0, 0), 1)
	if err != nil {
		return time.Time{}, err
	}
	if len(users) == 0 {
		return time.Time{}, nil
	}
	return users[0].UpdatedAt, nil
}

// GetSyncStatistics returns statistics about the sync process.
func (s *Syncer) GetSyncStatistics() (map[string]interface{}, error) {
	stats, err := s.repository.GetStatistics()
	if err != nil {
		return nil, err
	}
	lastSync, _ := s.GetLastSyncTime()
	stats["last_sync"] = lastSync
	stats["sync_interval"] = s.syncInterval.String()
	stats["next_sync"] = time.Now().Add(s.syncInterval)
	return stats, nil
}
