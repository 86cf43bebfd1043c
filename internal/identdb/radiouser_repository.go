package identdb

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// RadioUserRepository provides database operations for radio-ID records.
type RadioUserRepository struct {
	db *gorm.DB
}

// NewRadioUserRepository creates a new repository instance.
func NewRadioUserRepository(db *gorm.DB) *RadioUserRepository {
	return &RadioUserRepository{db: db}
}

// GetByRadioID finds a record by its radio ID.
func (r *RadioUserRepository) GetByRadioID(radioID uint32) (*RadioUser, error) {
	var user RadioUser
	err := r.db.Where("radio_id = ?", radioID).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByCallsign finds a record by its callsign.
func (r *RadioUserRepository) GetByCallsign(callsign string) (*RadioUser, error) {
	var user RadioUser
	err := r.db.Where("callsign = ?", callsign).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Upsert creates or updates a single record.
func (r *RadioUserRepository) Upsert(user *RadioUser) error {
	if user == nil {
		return fmt.Errorf("user cannot be nil")
	}
	if !user.IsValid() {
		return fmt.Errorf("user is not valid: radio_id=%d, callsign=%s", user.RadioID, user.Callsign)
	}

	user.SanitizeFields()
	user.UpdatedAt = time.Now()
	return r.db.Save(user).Error
}

// UpsertBatch creates or updates multiple records in batched transactions.
func (r *RadioUserRepository) UpsertBatch(users []RadioUser) error {
	if len(users) == 0 {
		return nil
	}

	const batchSize = 1000
	for i := 0; i < len(users); i += batchSize {
		end := i + batchSize
		if end > len(users) {
			end = len(users)
		}
		batch := users[i:end]

		validUsers := make([]RadioUser, 0, len(batch))
		for _, user := range batch {
			user.SanitizeFields()
			if user.IsValid() {
				user.UpdatedAt = time.Now()
				validUsers = append(validUsers, user)
			}
		}
		if len(validUsers) == 0 {
			continue
		}

		err := r.db.Transaction(func(tx *gorm.DB) error {
			for _, user := range validUsers {
				if err := tx.Save(&user).Error; err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("batch upsert failed at batch starting at index %d: %w", i, err)
		}
	}
	return nil
}

// Count returns the total number of records in the database.
func (r *RadioUserRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&RadioUser{}).Count(&count).Error
	return count, err
}

// DeleteAll removes all records from the database.
func (r *RadioUserRepository) DeleteAll() error {
	return r.db.Where("1 = 1").Delete(&RadioUser{}).Error
}

// GetRecentlyUpdated returns records updated after the specified time.
func (r *RadioUserRepository) GetRecentlyUpdated(since time.Time, limit int) ([]RadioUser, error) {
	var users []RadioUser
	err := r.db.Where("updated_at > ?", since).
		Order("updated_at DESC").
		Limit(limit).
		Find(&users).Error
	return users, err
}

// FindByCallsignPattern searches for callsigns matching a prefix pattern.
func (r *RadioUserRepository) FindByCallsignPattern(pattern string, limit int) ([]RadioUser, error) {
	var users []RadioUser
	err := r.db.Where("callsign LIKE ?", pattern+"%").
		Order("callsign ASC").
		Limit(limit).
		Find(&users).Error
	return users, err
}

// GetStatistics returns basic database statistics.
func (r *RadioUserRepository) GetStatistics() (map[string]interface{}, error) {
	stats := make(map[string]interface{})

	count, err := r.Count()
	if err != nil {
		return nil, err
	}
	stats["total_users"] = count

	var latestUser RadioUser
	err = r.db.Order("updated_at DESC").First(&latestUser).Error
	if err != nil && err != gorm.ErrRecordNotFound {
		return nil, err
	}
	if err != gorm.ErrRecordNotFound {
		stats["last_updated"] = latestUser.UpdatedAt
	}

	var countryStats []struct {
		Country string `json:"country"`
		Count   int    `json:"count"`
	}
	err = r.db.Model(&RadioUser{}).
		Select("country, COUNT(*) as count").
		Where("country != ''").
		Group("country").
		Order("count DESC").
		Limit(10).
		Find(&countryStats).Error
	if err != nil {
		return nil, err
	}
	stats["top_countries"] = countryStats

	return stats, nil
}

// HealthCheck verifies the repository is working correctly.
func (r *RadioUserRepository) HealthCheck() error {
	var count int64
	return r.db.Model(&RadioUser{}).Count(&count).Error
}
