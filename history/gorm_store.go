package history

import (
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/postmux/postmux/model"
	"github.com/postmux/postmux/utils"
)

// GormStore persists run records in postgres.
type GormStore struct {
	db *gorm.DB
}

// GetGormStore connects to the database specified by env and migrates the
// run history schema.
func GetGormStore() (*GormStore, error) {
	db, err := utils.GetDBConnection()
	if err != nil {
		return nil, errors.Wrap(err, "fail to connect to run history DB")
	}
	if err := db.AutoMigrate(&model.Run{}); err != nil {
		return nil, errors.Wrap(err, "fail to migrate run history schema")
	}
	return NewGormStore(db), nil
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Append(run *model.Run) error {
	return s.db.Create(run).Error
}

func (s *GormStore) List() ([]model.Run, error) {
	runs := []model.Run{}
	err := s.db.Order("started_at desc").Find(&runs).Error
	return runs, err
}
