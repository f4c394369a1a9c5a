package model

import (
	"time"

	"gorm.io/gorm"
)

// swagger:model
type BaseModel struct {
	ID        uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// Models lists every table the service migrates.
func Models() []interface{} {
	return []interface{}{
		&PlacementTest{},
		&PlacementQuestion{},
		&ModuleAssignment{},
		&PlacementResult{},
	}
}
