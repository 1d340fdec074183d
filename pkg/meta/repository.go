package meta

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"lastmodified/pkg/types"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrRunNotFound        = errors.New("run not found")
	ErrAnnotationNotFound = errors.New("annotation not found")
)

// Repository is the run ledger.
type Repository struct {
	db *DB
}

func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// -----------------------------------------------------------------------------
// 1. Runs
// -----------------------------------------------------------------------------

// StartRun opens a run record. head may be empty when no repository was found.
func (r *Repository) StartRun(ctx context.Context, head types.Hash, sourceBase string) (*Run, error) {
	run := Run{
		Head:       string(head),
		SourceBase: sourceBase,
		StartedAt:  time.Now().UTC(),
	}
	if err := r.db.GetConn().WithContext(ctx).Create(&run).Error; err != nil {
		return nil, fmt.Errorf("failed to start run: %w", err)
	}
	return &run, nil
}

// FinishRun stamps the run as finished and stores stats as JSON.
func (r *Repository) FinishRun(ctx context.Context, runID uint, stats any) error {
	statsJSON, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("failed to marshal stats: %w", err)
	}

	now := time.Now().UTC()
	result := r.db.GetConn().WithContext(ctx).
		Model(&Run{}).
		Where("id = ?", runID).
		Updates(map[string]any{
			"finished_at": now,
			"stats":       datatypes.JSON(statsJSON),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrRunNotFound
	}
	return nil
}

func (r *Repository) GetRun(ctx context.Context, runID uint) (*Run, error) {
	var run Run
	err := r.db.GetConn().WithContext(ctx).First(&run, runID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// -----------------------------------------------------------------------------
// 2. Annotations
// -----------------------------------------------------------------------------

// AnnotationRecord is the input of RecordAnnotation.
type AnnotationRecord struct {
	SourcePath string
	OutputPath string
	CommitHash types.Hash
	Parents    []types.Hash
	Author     string
	ModifiedAt time.Time
	Origin     Origin
}

// RecordAnnotation stores the outcome for one output page. Recording the same
// page twice in a run keeps the last outcome.
func (r *Repository) RecordAnnotation(ctx context.Context, runID uint, rec AnnotationRecord) error {
	parents := rec.Parents
	if parents == nil {
		parents = []types.Hash{}
	}
	parentsJSON, err := json.Marshal(parents)
	if err != nil {
		return fmt.Errorf("failed to marshal parents: %w", err)
	}

	model := Annotation{
		RunID:      runID,
		OutputPath: rec.OutputPath,
		SourcePath: rec.SourcePath,
		CommitHash: string(rec.CommitHash),
		Author:     rec.Author,
		ModifiedAt: rec.ModifiedAt.UTC(),
		Origin:     rec.Origin,
		Parents:    datatypes.JSON(parentsJSON),
	}

	err = r.db.GetConn().WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "run_id"}, {Name: "output_path"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"source_path", "commit_hash", "author", "modified_at", "origin", "parents",
			}),
		}).
		Create(&model).Error
	if err != nil {
		return fmt.Errorf("failed to record annotation: %w", err)
	}
	return nil
}

// LatestAnnotation returns the most recent record for an output page across runs.
func (r *Repository) LatestAnnotation(ctx context.Context, outputPath string) (*Annotation, error) {
	var a Annotation
	err := r.db.GetConn().WithContext(ctx).
		Where("output_path = ?", outputPath).
		Order("run_id DESC").
		First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrAnnotationNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// ListAnnotations returns a run's records ordered by output path.
func (r *Repository) ListAnnotations(ctx context.Context, runID uint) ([]Annotation, error) {
	var out []Annotation
	err := r.db.GetConn().WithContext(ctx).
		Where("run_id = ?", runID).
		Order("output_path ASC").
		Find(&out).Error
	return out, err
}
