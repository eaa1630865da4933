package repository

import (
	"lms_backend/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AssignmentRepository struct {
	DB *gorm.DB
}

func NewAssignmentRepository(db *gorm.DB) *AssignmentRepository {
	return &AssignmentRepository{DB: db}
}

func (r *AssignmentRepository) FindByID(id uint) (*model.Assignment, error) {
	var assignment model.Assignment
	err := r.DB.First(&assignment, id).Error
	if err != nil {
		return nil, err
	}
	return &assignment, nil
}

func (r *AssignmentRepository) ListByCourse(courseID uint) ([]model.Assignment, error) {
	var assignments []model.Assignment
	err := r.DB.Where("course_id = ?", courseID).
		Order("created_at ASC").Find(&assignments).Error
	return assignments, err
}

func (r *AssignmentRepository) Create(assignment *model.Assignment) error {
	return r.DB.Create(assignment).Error
}

func (r *AssignmentRepository) Update(assignment *model.Assignment) error {
	return r.DB.Save(assignment).Error
}

func (r *AssignmentRepository) Delete(id uint) error {
	return r.DB.Delete(&model.Assignment{}, id).Error
}

// CountByCourse 证书资格校验的分母
func (r *AssignmentRepository) CountByCourse(courseID uint) (int64, error) {
	var count int64
	err := r.DB.Model(&model.Assignment{}).
		Where("course_id = ?", courseID).
		Count(&count).Error
	return count, err
}

// CountSubmittedByUser 用户在课程下已提交的作业数
func (r *AssignmentRepository) CountSubmittedByUser(userID, courseID uint) (int64, error) {
	var count int64
	err := r.DB.Model(&model.AssignmentSubmission{}).
		Joins("JOIN assignments ON assignments.id = assignment_submissions.assignment_id").
		Where("assignment_submissions.user_id = ? AND assignments.course_id = ?", userID, courseID).
		Where("assignments.deleted_at IS NULL").
		Count(&count).Error
	return count, err
}

// UpsertSubmission 同一作业重复提交覆盖旧内容
func (r *AssignmentRepository) UpsertSubmission(submission *model.AssignmentSubmission) error {
	return r.DB.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "assignment_id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"content", "file_url", "submitted_at", "updated_at",
		}),
	}).Create(submission).Error
}

func (r *AssignmentRepository) FindSubmission(assignmentID, userID uint) (*model.AssignmentSubmission, error) {
	var submission model.AssignmentSubmission
	err := r.DB.Where("assignment_id = ? AND user_id = ?", assignmentID, userID).
		First(&submission).Error
	if err != nil {
		return nil, err
	}
	return &submission, nil
}

func (r *AssignmentRepository) ListSubmissions(assignmentID uint) ([]model.AssignmentSubmission, error) {
	var submissions []model.AssignmentSubmission
	err := r.DB.Where("assignment_id = ?", assignmentID).
		Order("submitted_at DESC").Find(&submissions).Error
	return submissions, err
}

func (r *AssignmentRepository) SaveSubmission(submission *model.AssignmentSubmission) error {
	return r.DB.Save(submission).Error
}
