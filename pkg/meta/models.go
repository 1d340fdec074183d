package meta

import (
	"time"

	"gorm.io/datatypes"
)

// Origin tells where an annotation's date came from.
type Origin string

const (
	OriginHistory    Origin = "history"
	OriginFilesystem Origin = "filesystem"
)

// Run is one post-processing pass over a DocFX output folder.
type Run struct {
	ID         uint   `gorm:"primaryKey"`
	Head       string `gorm:"type:varchar(40)"` // start commit, empty without repository
	SourceBase string `gorm:"type:text"`

	StartedAt  time.Time `gorm:"index"`
	FinishedAt *time.Time

	// Stats is the run summary, written by FinishRun
	Stats datatypes.JSON
}

// Annotation is the date written into one output page.
type Annotation struct {
	ID         uint   `gorm:"primaryKey"`
	RunID      uint   `gorm:"uniqueIndex:idx_run_output;not null"`
	OutputPath string `gorm:"uniqueIndex:idx_run_output;index;type:varchar(1024);not null"`
	SourcePath string `gorm:"type:text"`

	// Commit fields stay empty for filesystem dates
	CommitHash string `gorm:"index;type:varchar(40)"`
	Author     string `gorm:"type:varchar(255)"`
	ModifiedAt time.Time
	Origin     Origin `gorm:"type:varchar(16);not null"`

	// Parents of the commit, ["hash1", "hash2"]
	Parents datatypes.JSON

	CreatedAt time.Time
}
