package lookup

import (
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/openrepeater/dvmhost-go/internal/identdb"
	"gorm.io/gorm"
)

// RadioDatabaseAdapter provides a database-backed implementation of the RadioLookupInterface
// This allows drop-in replacement of the file-based lookup with automatic RadioID.net sync
type RadioDatabaseAdapter struct {
	repository   *identdb.RadioUserRepository
	debugEnabled bool

	// Statistics tracking (similar to original DMRLookup)
	mutex        sync.RWMutex
	lookupCount  uint32
	hitCount     uint32
	missCount    uint32
	errorCount   uint32
	lastAccess   time.Time

	// Cache for performance (optional)
	enableCache  bool
	cacheSize    int
	idCache      map[uint32]string // Recent ID->Callsign lookups
	callsignCache map[string]uint32 // Recent Callsign->ID lookups
	cacheExpiry  time.Duration
	lastClearTime time.Time
}

// RadioDatabaseAdapterConfig holds configuration options for the database adapter
type RadioDatabaseAdapterConfig struct {
	EnableCache   bool          // Enable in-memory cache for frequently accessed lookups
	CacheSize     int           // Maximum cache size (default: 1000)
	CacheExpiry   time.Duration // Cache expiry time (default: 5 minutes)
}

// NewRadioDatabaseAdapter creates a new database-backed DMR lookup adapter
func NewRadioDatabaseAdapter(repository *identdb.RadioUserRepository) *RadioDatabaseAdapter {
	return NewRadioDatabaseAdapterWithConfig(repository, RadioDatabaseAdapterConfig{
		EnableCache: true,
		CacheSize:   1000,
		CacheExpiry: 5 * time.Minute,
	})
}

// NewRadioDatabaseAdapterWithConfig creates a new database adapter with custom configuration
func NewRadioDatabaseAdapterWithConfig(repository *identdb.RadioUserRepository, config RadioDatabaseAdapterConfig) *RadioDatabaseAdapter {
	adapter := &RadioDatabaseAdapter{
		repository:    repository,
		debugEnabled:  false,
		enableCache:   config.EnableCache,
		cacheSize:     config.CacheSize,
		cacheExpiry:   config.CacheExpiry,
		lastClearTime: time.Now(),
	}

	if adapter.enableCache {
		adapter.idCache = make(map[uint32]string)
		adapter.callsignCache = make(map[string]uint32)
	}

	return adapter
}

// SetDebug enables or disables debug logging (compatible with original interface)
func (d *RadioDatabaseAdapter) SetDebug(enabled bool) {
	d.debugEnabled = enabled
}

// FindCS finds callsign by DMR ID (compatible with original RadioLookupInterface)
// Returns the callsign if found, or the ID as a string if not found
// Special case: ID 0xFFFFFFU always returns "ALL" (matching original behavior)
func (d *RadioDatabaseAdapter) FindCS(id uint32) string {
	d.updateAccessStats()

	// Special case for ALL ID (matching original implementation)
	if id == RadioIDAll {
		return "ALL"
	}

	// Check cache first if enabled
	if d.enableCache {
		if callsign, found := d.getCachedCallsign(id); found {
			d.recordHit()
			return callsign
		}
	}

	// Query database
	user, err := d.repository.GetByRadioID(id)
	if err != nil {
		if err != gorm.ErrRecordNotFound {
			d.recordError()
			d.logDebug("Database error looking up ID %d: %v", id, err)
		} else {
			d.recordMiss()
		}
		// If not found, return the ID as a string (matching original behavior)
		return fmt.Sprintf("%d", id)
	}

	// Cache the result if caching is enabled
	if d.enableCache {
		d.cacheCallsign(id, user.Callsign)
	}

	d.recordHit()
	return user.Callsign
}

// FindID finds DMR ID by callsign (compatible with original RadioLookupInterface)
// Returns the DMR ID if found, or 0 if not found
func (d *RadioDatabaseAdapter) FindID(callsign string) uint32 {
	d.updateAccessStats()

	// Normalize to uppercase for lookup (matching original behavior)
	upperCallsign := strings.ToUpper(strings.TrimSpace(callsign))

	if len(upperCallsign) == 0 {
		return RadioIDUnknown
	}

	// Check cache first if enabled
	if d.enableCache {
		if id, found := d.getCachedID(upperCallsign); found {
			d.recordHit()
			return id
		}
	}

	// Query database
	user, err := d.repository.GetByCallsign(upperCallsign)
	if err != nil {
		if err != gorm.ErrRecordNotFound {
			d.recordError()
			d.logDebug("Database error looking up callsign %s: %v", upperCallsign, err)
		} else {
			d.recordMiss()
		}
		return RadioIDUnknown
	}

	// Cache the result if caching is enabled
	if d.enableCache {
		d.cacheID(upperCallsign, user.RadioID)
	}

	d.recordHit()
	return user.RadioID
}

// Exists checks if DMR ID exists in the database (compatible with original interface)
func (d *RadioDatabaseAdapter) Exists(id uint32) bool {
	// Special case for ALL ID
	if id == RadioIDAll {
		return true
	}

	// Try to find the callsign; if we get back the ID as string, it doesn't exist
	callsign := d.FindCS(id)
	idAsString := fmt.Sprintf("%d", id)
	return callsign != idAsString
}

// GetStats returns statistics about the DMR lookup (compatible with original interface)
// Note: reloadCount and lastReload are not applicable for database adapter
func (d *RadioDatabaseAdapter) GetStats() (totalEntries, reloadCount, errorCount uint32, lastReload time.Time) {
	d.mutex.RLock()
	defer d.mutex.RUnlock()

	// Get total entries from database
	count, err := d.repository.Count()
	if err != nil {
		d.logDebug("Error getting database count: %v", err)
		count = 0
	}

	// Return stats compatible with original interface
	// reloadCount is not applicable (database auto-syncs), lastReload is last access time
	return uint32(count), 0, d.errorCount, d.lastAccess
}

// GetEntryCount returns the current number of entries in the database (compatible interface)
func (d *RadioDatabaseAdapter) GetEntryCount() uint32 {
	count, err := d.repository.Count()
	if err != nil {
		d.logDebug("Error getting database count: %v", err)
		return 0
	}
	return uint32(count)
}

// ForceReload is a no-op for database adapter (database syncs automatically)
// Kept for interface compatibility
func (d *RadioDatabaseAdapter) ForceReload() error {
	d.logDebug("ForceReload called on database adapter (no-op - database syncs automatically)")

	// Clear cache if enabled to force fresh lookups
	if d.enableCache {
		d.clearCache()
	}

	return nil
}

// Start performs initial validation (compatible with original interface)
// For database adapter, this validates the database connection
func (d *RadioDatabaseAdapter) Start() error {
	// Validate database connection
	err := d.repository.HealthCheck()
	if err != nil {
		return fmt.Errorf("database connection check failed: %v", err)
	}

	count, err := d.repository.Count()
	if err != nil {
		return fmt.Errorf("failed to get initial database count: %v", err)
	}

	d.logDebug("Database adapter started with %d entries", count)
	return nil
}

// Stop has no background process to stop for the database adapter; it only
// clears the cache. Kept for interface compatibility
func (d *RadioDatabaseAdapter) Stop() {
	d.logDebug("Stop called on database adapter (no-op)")
	if d.enableCache {
		d.clearCache()
	}
}

// IsRunning always returns true for database adapter (no concept of "stopped")
// Kept for interface compatibility
func (d *RadioDatabaseAdapter) IsRunning() bool {
	return true
}

// GetAllCallsigns returns all callsigns in the database (compatible interface)
// Note: This can be memory-intensive for large databases
func (d *RadioDatabaseAdapter) GetAllCallsigns() []string {
	// This is potentially expensive for large databases
	// For now, implement a simple version with a reasonable limit
	const maxResults = 10000

	users, err := d.repository.FindByCallsignPattern("", maxResults)
	if err != nil {
		d.logDebug("Error getting all callsigns: %v", err)
		return []string{}
	}

	callsigns := make([]string, len(users))
	for i, user := range users {
		callsigns[i] = user.Callsign
	}

	return callsigns
}

// GetAllIDs returns all DMR IDs in the database (compatible interface)
// Note: This can be memory-intensive for large databases
func (d *RadioDatabaseAdapter) GetAllIDs() []uint32 {
	// This is potentially expensive for large databases
	// For now, implement a simple version with a reasonable limit
	const maxResults = 10000

	users, err := d.repository.FindByCallsignPattern("", maxResults)
	if err != nil {
		d.logDebug("Error getting all IDs: %v", err)
		return []uint32{}
	}

	ids := make([]uint32, len(users))
	for i, user := range users {
		ids[i] = user.RadioID
	}

	return ids
}

// Extended methods specific to database adapter

// GetUserInfo returns full user information if available (database-specific feature)
func (d *RadioDatabaseAdapter) GetUserInfo(id uint32) (*identdb.RadioUser, error) {
	return d.repository.GetByRadioID(id)
}

// GetUserInfoByCallsign returns full user information by callsign (database-specific feature)
func (d *RadioDatabaseAdapter) GetUserInfoByCallsign(callsign string) (*identdb.RadioUser, error) {
	upperCallsign := strings.ToUpper(strings.TrimSpace(callsign))
	return d.repository.GetByCallsign(upperCallsign)
}

// GetDatabaseStatistics returns detailed database statistics
func (d *RadioDatabaseAdapter) GetDatabaseStatistics() (map[string]interface{}, error) {
	dbStats, err := d.repository.GetStatistics()
	if err != nil {
		return nil, err
	}

	// Add adapter-specific statistics
	d.mutex.RLock()
	adapterStats := map[string]interface{}{
		"lookup_count": d.lookupCount,
		"hit_count":    d.hitCount,
		"miss_count":   d.missCount,
		"error_count":  d.errorCount,
		"last_access":  d.lastAccess,
	}
	d.mutex.RUnlock()

	if d.enableCache {
		adapterStats["cache_enabled"] = true
		adapterStats["cache_size"] = len(d.idCache) + len(d.callsignCache)
		adapterStats["cache_expiry"] = d.cacheExpiry.String()
	} else {
		adapterStats["cache_enabled"] = false
	}

	// Combine database and adapter stats
	result := make(map[string]interface{})
	for k, v := range dbStats {
		result[k] = v
	}
	for k, v := range adapterStats {
		result[k] = v
	}

	return result, nil
}

// Cache management methods (private)

func (d *RadioDatabaseAdapter) getCachedCallsign(id uint32) (string, bool) {
	if !d.enableCache {
		return "", false
	}

	d.mutex.RLock()
	defer d.mutex.RUnlock()

	d.clearExpiredCache()

	callsign, exists := d.idCache[id]
	return callsign, exists
}

func (d *RadioDatabaseAdapter) getCachedID(callsign string) (uint32, bool) {
	if !d.enableCache {
		return 0, false
	}

	d.mutex.RLock()
	defer d.mutex.RUnlock()

	d.clearExpiredCache()

	id, exists := d.callsignCache[callsign]
	return id, exists
}

func (d *RadioDatabaseAdapter) cacheCallsign(id uint32, callsign string) {
	if !d.enableCache {
		return
	}

	d.mutex.Lock()
	defer d.mutex.Unlock()

	d.clearExpiredCache()

	// Limit cache size
	if len(d.idCache) >= d.cacheSize {
		d.clearOldestEntries()
	}

	d.idCache[id] = callsign
}

func (d *RadioDatabaseAdapter) cacheID(callsign string, id uint32) {
	if !d.enableCache {
		return
	}

	d.mutex.Lock()
	defer d.mutex.Unlock()

	d.clearExpiredCache()

	// Limit cache size
	if len(d.callsignCache) >= d.cacheSize {
		d.clearOldestEntries()
	}

	d.callsignCache[callsign] = id
}

func (d *RadioDatabaseAdapter) clearCache() {
	if !d.enableCache {
		return
	}

	d.mutex.Lock()
	defer d.mutex.Unlock()

	d.idCache = make(map[uint32]string)
	d.callsignCache = make(map[string]uint32)
	d.lastClearTime = time.Now()
}

func (d *RadioDatabaseAdapter) clearExpiredCache() {
	// Check if cache should be cleared due to expiry
	if time.Since(d.lastClearTime) > d.cacheExpiry {
		d.idCache = make(map[uint32]string)
		d.callsignCache = make(map[string]uint32)
		d.lastClearTime = time.Now()
	}
}

func (d *RadioDatabaseAdapter) clearOldestEntries() {
	// Simple cache eviction: clear half the cache
	// More sophisticated LRU could be implemented if needed
	for id := range d.idCache {
		delete(d.idCache, id)
		if len(d.idCache) <= d.cacheSize/2 {
			break
		}
	}

	for callsign := range d.callsignCache {
		delete(d.callsignCache, callsign)
		if len(d.callsignCache) <= d.cacheSize/2 {
			break
		}
	}
}

// Statistics tracking methods (private)

func (d *RadioDatabaseAdapter) updateAccessStats() {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	d.lookupCount++
	d.lastAccess = time.Now()
}

func (d *RadioDatabaseAdapter) recordHit() {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	d.hitCount++
}

func (d *RadioDatabaseAdapter) recordMiss() {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	d.missCount++
}

func (d *RadioDatabaseAdapter) recordError() {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	d.errorCount++
}

// logDebug logs debug messages if debug is enabled (compatible with original interface)
func (d *RadioDatabaseAdapter) logDebug(format string, args ...interface{}) {
	if d.debugEnabled {
		log.Printf("RadioDatabaseAdapter: "+format, args...)
	}
}

// Interface compatibility validation (these methods exist in original DMRLookup but not used in adapter)

// ValidateFile is not applicable for database adapter but kept for compatibility
func (d *RadioDatabaseAdapter) ValidateFile() error {
	return fmt.Errorf("ValidateFile not applicable for database adapter")
}

// GetFilename is not applicable for database adapter but kept for compatibility
func (d *RadioDatabaseAdapter) GetFilename() string {
	return "(database)"
}

// GetReloadTime is not applicable for database adapter but kept for compatibility
func (d *RadioDatabaseAdapter) GetReloadTime() uint32 {
	return 0 // Auto-sync, no manual reload interval
}

// SetReloadTime is not applicable for database adapter but kept for compatibility
func (d *RadioDatabaseAdapter) SetReloadTime(hours uint32) {
	d.logDebug("SetReloadTime(%d) ignored - database adapter syncs automatically", hours)
}

// Read is not applicable for database adapter but kept for compatibility
func (d *RadioDatabaseAdapter) Read() error {
	d.logDebug("Read() called on database adapter (no-op - data comes from database)")
	return nil
}