package ordersync

import (
	"errors"

	"gorm.io/gorm"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

func (d *Database) CreateSyncRun(run *SyncRun) error {
	return d.db.Create(run).Error
}

func (d *Database) GetSyncRun(runID string) (*SyncRun, error) {
	var run SyncRun
	if err := d.db.Where("run_id = ?", runID).First(&run).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &run, nil
}

func (d *Database) UpdateSyncRun(run *SyncRun) error {
	return d.db.Save(run).Error
}

func (d *Database) GetAccountSyncRuns(accountName string) ([]SyncRun, error) {
	var runs []SyncRun
	err := d.db.Where("account_name = ?", accountName).
		Order("started_at DESC").
		Find(&runs).Error
	if err != nil {
		return nil, err
	}
	return runs, nil
}
