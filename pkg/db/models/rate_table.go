package models

import (
	"time"

	dbtypes "github.com/angelmondragon/packquote-backend/pkg/db/types"
)

// RateTable stores one published version of the pricing rates as JSON.
type RateTable struct {
	Version     string        `gorm:"column:version;primaryKey"`
	Rates       dbtypes.JSONB `gorm:"column:rates;type:jsonb;not null"`
	PublishedAt time.Time     `gorm:"column:published_at;not null"`
	CreatedAt   time.Time     `gorm:"column:created_at;autoCreateTime"`
}

func (RateTable) TableName() string { return "rate_tables" }
