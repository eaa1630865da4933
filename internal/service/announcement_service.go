package service

import (
	"errors"
	"lms_backend/internal/model"
	"lms_backend/internal/repository"
	"lms_backend/internal/util"

	"gorm.io/gorm"
)

// AnnouncementService 课程公告，讲师发布，选课学员可见
type AnnouncementService struct {
	AnnouncementRepo *repository.AnnouncementRepository
	CourseRepo       *repository.CourseRepository
	EnrollmentRepo   *repository.EnrollmentRepository
}

func NewAnnouncementService(
	announcementRepo *repository.AnnouncementRepository,
	courseRepo *repository.CourseRepository,
	enrollmentRepo *repository.EnrollmentRepository,
) *AnnouncementService {
	return &AnnouncementService{
		AnnouncementRepo: announcementRepo,
		CourseRepo:       courseRepo,
		EnrollmentRepo:   enrollmentRepo,
	}
}

type AnnouncementCreateRequest struct {
	Title    string `json:"title" binding:"required,max=255"`
	Content  string `json:"content" binding:"required"`
	IsPinned bool   `json:"isPinned"`
}

func (s *AnnouncementService) Create(instructorID, courseID uint, req AnnouncementCreateRequest) (*model.Announcement, error) {
	course, err := s.CourseRepo.FindByID(courseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrCourseNotFound
		}
		return nil, err
	}
	if course.InstructorID != instructorID {
		return nil, util.ErrPermissionDenied
	}

	announcement := &model.Announcement{
		CourseID: courseID,
		AuthorID: instructorID,
		Title:    req.Title,
		Content:  req.Content,
		IsPinned: req.IsPinned,
	}
	if err := s.AnnouncementRepo.Create(announcement); err != nil {
		return nil, err
	}
	return announcement, nil
}

// ListByCourse 讲师或已选课学员可见
func (s *AnnouncementService) ListByCourse(userID, courseID uint) ([]model.Announcement, error) {
	course, err := s.CourseRepo.FindByID(courseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrCourseNotFound
		}
		return nil, err
	}

	if course.InstructorID != userID {
		enrolled, err := s.EnrollmentRepo.Exists(userID, courseID)
		if err != nil {
			return nil, err
		}
		if !enrolled {
			return nil, util.ErrNotEnrolled
		}
	}
	return s.AnnouncementRepo.ListByCourse(courseID)
}

type AnnouncementUpdateRequest struct {
	Title    *string `json:"title" binding:"omitempty,max=255"`
	Content  *string `json:"content"`
	IsPinned *bool   `json:"isPinned"`
}

func (s *AnnouncementService) Update(instructorID, announcementID uint, req AnnouncementUpdateRequest) (*model.Announcement, error) {
	announcement, err := s.AnnouncementRepo.FindByID(announcementID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrAnnouncementNotFound
		}
		return nil, err
	}
	course, err := s.CourseRepo.FindByID(announcement.CourseID)
	if err != nil {
		return nil, err
	}
	if course.InstructorID != instructorID {
		return nil, util.ErrPermissionDenied
	}

	if req.Title != nil {
		announcement.Title = *req.Title
	}
	if req.Content != nil {
		announcement.Content = *req.Content
	}
	if req.IsPinned != nil {
		announcement.IsPinned = *req.IsPinned
	}
	if err := s.AnnouncementRepo.Update(announcement); err != nil {
		return nil, err
	}
	return announcement, nil
}

func (s *AnnouncementService) Delete(instructorID, announcementID uint) error {
	announcement, err := s.AnnouncementRepo.FindByID(announcementID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return util.ErrAnnouncementNotFound
		}
		return err
	}
	course, err := s.CourseRepo.FindByID(announcement.CourseID)
	if err != nil {
		return err
	}
	if course.InstructorID != instructorID {
		return util.ErrPermissionDenied
	}
	return s.AnnouncementRepo.Delete(announcementID)
}
