package service

import (
	"context"
	"errors"
	"fmt"
	"lms_backend/internal/model"
	"lms_backend/internal/repository"
	"lms_backend/internal/util"
	"mime/multipart"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AssignmentService struct {
	AssignmentRepo *repository.AssignmentRepository
	CourseRepo     *repository.CourseRepository
	EnrollmentRepo *repository.EnrollmentRepository
	Storage        *StorageService
}

func NewAssignmentService(
	assignmentRepo *repository.AssignmentRepository,
	courseRepo *repository.CourseRepository,
	enrollmentRepo *repository.EnrollmentRepository,
	storage *StorageService,
) *AssignmentService {
	return &AssignmentService{
		AssignmentRepo: assignmentRepo,
		CourseRepo:     courseRepo,
		EnrollmentRepo: enrollmentRepo,
		Storage:        storage,
	}
}

type AssignmentCreateRequest struct {
	CourseID    uint       `json:"courseId" binding:"required"`
	Title       string     `json:"title" binding:"required"`
	Description string     `json:"description"`
	MaxPoints   float64    `json:"maxPoints" binding:"omitempty,min=0"`
	DueAt       *time.Time `json:"dueAt"`
}

func (s *AssignmentService) CreateAssignment(instructorID uint, req AssignmentCreateRequest) (*model.Assignment, error) {
	course, err := s.CourseRepo.FindByID(req.CourseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrCourseNotFound
		}
		return nil, err
	}
	if course.InstructorID != instructorID {
		return nil, util.ErrPermissionDenied
	}

	maxPoints := req.MaxPoints
	if maxPoints == 0 {
		maxPoints = 100
	}
	assignment := &model.Assignment{
		CourseID:    req.CourseID,
		Title:       req.Title,
		Description: req.Description,
		MaxPoints:   maxPoints,
		DueAt:       req.DueAt,
	}
	if err := s.AssignmentRepo.Create(assignment); err != nil {
		return nil, err
	}
	return assignment, nil
}

func (s *AssignmentService) ListCourseAssignments(courseID uint) ([]model.Assignment, error) {
	if _, err := s.CourseRepo.FindByID(courseID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrCourseNotFound
		}
		return nil, err
	}
	return s.AssignmentRepo.ListByCourse(courseID)
}

func (s *AssignmentService) DeleteAssignment(instructorID, assignmentID uint) error {
	assignment, err := s.AssignmentRepo.FindByID(assignmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return util.ErrAssignmentNotFound
		}
		return err
	}
	course, err := s.CourseRepo.FindByID(assignment.CourseID)
	if err != nil {
		return err
	}
	if course.InstructorID != instructorID {
		return util.ErrPermissionDenied
	}
	return s.AssignmentRepo.Delete(assignmentID)
}

// SubmitAssignment 学员提交作业，可附带文件。重复提交覆盖旧内容
func (s *AssignmentService) SubmitAssignment(ctx context.Context, userID, assignmentID uint, content string, file *multipart.FileHeader) (*model.AssignmentSubmission, error) {
	assignment, err := s.AssignmentRepo.FindByID(assignmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrAssignmentNotFound
		}
		return nil, err
	}

	enrolled, err := s.EnrollmentRepo.Exists(userID, assignment.CourseID)
	if err != nil {
		return nil, err
	}
	if !enrolled {
		return nil, util.ErrNotEnrolled
	}

	var fileURL string
	if file != nil {
		src, err := file.Open()
		if err != nil {
			return nil, err
		}
		defer src.Close()

		filename := fmt.Sprintf("assignments/%d/%s%s", assignmentID, uuid.New().String(), filepath.Ext(file.Filename))
		fileURL, err = s.Storage.Upload(ctx, filename, src, file.Size, file.Header.Get("Content-Type"))
		if err != nil {
			return nil, err
		}
	}

	submission := &model.AssignmentSubmission{
		AssignmentID: assignmentID,
		UserID:       userID,
		Content:      content,
		FileURL:      fileURL,
		SubmittedAt:  time.Now(),
	}
	if err := s.AssignmentRepo.UpsertSubmission(submission); err != nil {
		return nil, err
	}
	return submission, nil
}

// GradeSubmission 讲师评分，分值不得超过作业满分
func (s *AssignmentService) GradeSubmission(instructorID, assignmentID, studentID uint, grade float64, feedback string) (*model.AssignmentSubmission, error) {
	assignment, err := s.AssignmentRepo.FindByID(assignmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrAssignmentNotFound
		}
		return nil, err
	}
	course, err := s.CourseRepo.FindByID(assignment.CourseID)
	if err != nil {
		return nil, err
	}
	if course.InstructorID != instructorID {
		return nil, util.ErrPermissionDenied
	}
	if grade < 0 || grade > assignment.MaxPoints {
		return nil, util.ErrGradeOutOfRange
	}

	submission, err := s.AssignmentRepo.FindSubmission(assignmentID, studentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrNotSubmitted
		}
		return nil, err
	}

	submission.Grade = &grade
	submission.Feedback = feedback
	if err := s.AssignmentRepo.SaveSubmission(submission); err != nil {
		return nil, err
	}
	return submission, nil
}

// GetSubmission 本人或课程讲师可查看
func (s *AssignmentService) GetSubmission(requesterID, assignmentID, studentID uint) (*model.AssignmentSubmission, error) {
	assignment, err := s.AssignmentRepo.FindByID(assignmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrAssignmentNotFound
		}
		return nil, err
	}
	if requesterID != studentID {
		course, err := s.CourseRepo.FindByID(assignment.CourseID)
		if err != nil {
			return nil, err
		}
		if course.InstructorID != requesterID {
			return nil, util.ErrPermissionDenied
		}
	}

	submission, err := s.AssignmentRepo.FindSubmission(assignmentID, studentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrNotSubmitted
		}
		return nil, err
	}
	return submission, nil
}

// ListSubmissions 讲师查看作业的全部提交
func (s *AssignmentService) ListSubmissions(instructorID, assignmentID uint) ([]model.AssignmentSubmission, error) {
	assignment, err := s.AssignmentRepo.FindByID(assignmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrAssignmentNotFound
		}
		return nil, err
	}
	course, err := s.CourseRepo.FindByID(assignment.CourseID)
	if err != nil {
		return nil, err
	}
	if course.InstructorID != instructorID {
		return nil, util.ErrPermissionDenied
	}
	return s.AssignmentRepo.ListSubmissions(assignmentID)
}
