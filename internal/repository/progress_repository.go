package repository

import (
	"lms_backend/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ProgressRepository struct {
	DB *gorm.DB
}

func NewProgressRepository(db *gorm.DB) *ProgressRepository {
	return &ProgressRepository{DB: db}
}

func (r *ProgressRepository) FindResourceProgress(userID, resourceID uint) (*model.ResourceProgress, error) {
	var progress model.ResourceProgress
	err := r.DB.Where("user_id = ? AND resource_id = ?", userID, resourceID).
		First(&progress).Error
	if err != nil {
		return nil, err
	}
	return &progress, nil
}

// UpsertResourceProgress 以 (user_id, resource_id) 为键的原子 upsert
func (r *ProgressRepository) UpsertResourceProgress(progress *model.ResourceProgress) error {
	return r.DB.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "resource_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"is_completed", "completed_at", "time_spent", "last_position", "updated_at",
		}),
	}).Create(progress).Error
}

// GetResourceCompletions 返回用户对一组资源的完成状态映射
func (r *ProgressRepository) GetResourceCompletions(userID uint, resourceIDs []uint) (map[uint]bool, error) {
	if len(resourceIDs) == 0 {
		return map[uint]bool{}, nil
	}

	var records []model.ResourceProgress
	err := r.DB.Where("user_id = ? AND resource_id IN ?", userID, resourceIDs).
		Find(&records).Error
	if err != nil {
		return nil, err
	}

	statusMap := make(map[uint]bool, len(records))
	for _, rec := range records {
		statusMap[rec.ResourceID] = rec.IsCompleted
	}
	return statusMap, nil
}

func (r *ProgressRepository) FindModuleProgress(userID, moduleID uint) (*model.ModuleProgress, error) {
	var progress model.ModuleProgress
	err := r.DB.Where("user_id = ? AND module_id = ?", userID, moduleID).
		First(&progress).Error
	if err != nil {
		return nil, err
	}
	return &progress, nil
}

// UpsertModuleProgress 以 (user_id, module_id) 为键的原子 upsert
func (r *ProgressRepository) UpsertModuleProgress(progress *model.ModuleProgress) error {
	return r.DB.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "module_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"is_completed", "completed_at", "last_accessed_at", "updated_at",
		}),
	}).Create(progress).Error
}

// GetModuleCompletions 返回用户对一组模块的完成状态映射
func (r *ProgressRepository) GetModuleCompletions(userID uint, moduleIDs []uint) (map[uint]bool, error) {
	if len(moduleIDs) == 0 {
		return map[uint]bool{}, nil
	}

	var records []model.ModuleProgress
	err := r.DB.Where("user_id = ? AND module_id IN ?", userID, moduleIDs).
		Find(&records).Error
	if err != nil {
		return nil, err
	}

	statusMap := make(map[uint]bool, len(records))
	for _, rec := range records {
		statusMap[rec.ModuleID] = rec.IsCompleted
	}
	return statusMap, nil
}

func (r *ProgressRepository) ListModuleProgressByUser(userID uint, moduleIDs []uint) ([]model.ModuleProgress, error) {
	var records []model.ModuleProgress
	err := r.DB.Where("user_id = ? AND module_id IN ?", userID, moduleIDs).
		Find(&records).Error
	return records, err
}
