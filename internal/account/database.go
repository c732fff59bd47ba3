package account

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

func (d *Database) CreateAccount(acc *Account) error {
	return d.db.Create(acc).Error
}

func (d *Database) GetAccount(name string) (*Account, error) {
	var acc Account
	if err := d.db.Preload("FieldMappings", func(db *gorm.DB) *gorm.DB {
		return db.Order("priority ASC")
	}).Where("name = ?", name).First(&acc).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &acc, nil
}

func (d *Database) UpdateAccount(acc *Account) error {
	return d.db.Save(acc).Error
}

// GetSyncEnabledAccounts returns every account the background processor
// should pick up this cycle
func (d *Database) GetSyncEnabledAccounts() ([]Account, error) {
	var accounts []Account
	if err := d.db.Preload("FieldMappings", func(db *gorm.DB) *gorm.DB {
		return db.Order("priority ASC")
	}).Where("enable_sync = ?", true).Find(&accounts).Error; err != nil {
		return nil, err
	}
	return accounts, nil
}

// DisableSync durably clears the sync flag. It is a no-op when the flag is
// already cleared so the exhaustion path disables at most once.
func (d *Database) DisableSync(name string) (bool, error) {
	result := d.db.Model(&Account{}).
		Where("name = ? AND enable_sync = ?", name, true).
		Update("enable_sync", false)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// EnableSync re-enables a previously disabled account
func (d *Database) EnableSync(name string) error {
	result := d.db.Model(&Account{}).
		Where("name = ?", name).
		Update("enable_sync", true)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errors.New("account not found")
	}
	return nil
}

// SetLastSyncAt records the completion time of a successful sync run
func (d *Database) SetLastSyncAt(name string, at time.Time) error {
	return d.db.Model(&Account{}).
		Where("name = ?", name).
		Update("last_sync_at", at).Error
}
