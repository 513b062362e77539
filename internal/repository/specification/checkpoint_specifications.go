package specification

import (
	"gorm.io/gorm"
)

type ByCheckpointType struct {
	Type string
}

func (s ByCheckpointType) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("checkpoint_type = ?", s.Type)
}

// ByLocationName matches the denormalized location name of a checkpoint
type ByLocationName struct {
	Name string
}

func (s ByLocationName) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("location_name = ?", s.Name)
}
