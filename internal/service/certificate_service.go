package service

import (
	"errors"
	"lms_backend/internal/model"
	"lms_backend/internal/repository"
	"lms_backend/internal/util"
	"lms_backend/pkg/logger"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// EligibilityResult 证书资格判定结果。已有证书时直接短路返回，
// 否则附带逐项核对明细
type EligibilityResult struct {
	Eligible       bool               `json:"eligible"`
	HasCertificate bool               `json:"hasCertificate"`
	Certificate    *model.Certificate `json:"certificate,omitempty"`
	Reason         string             `json:"reason,omitempty"`
	Progress       int                `json:"progress"`
	ProgressMet    bool               `json:"progressMet"`
	Assignments    int64              `json:"assignments"`
	Submitted      int64              `json:"submitted"`
	AssignmentsMet bool               `json:"assignmentsMet"`
}

// CertificateService 结业证书：进度 100% 且所有作业已提交才可颁发
type CertificateService struct {
	CertificateRepo *repository.CertificateRepository
	EnrollmentRepo  *repository.EnrollmentRepository
	AssignmentRepo  *repository.AssignmentRepository
	CourseRepo      *repository.CourseRepository
}

func NewCertificateService(
	certificateRepo *repository.CertificateRepository,
	enrollmentRepo *repository.EnrollmentRepository,
	assignmentRepo *repository.AssignmentRepository,
	courseRepo *repository.CourseRepository,
) *CertificateService {
	return &CertificateService{
		CertificateRepo: certificateRepo,
		EnrollmentRepo:  enrollmentRepo,
		AssignmentRepo:  assignmentRepo,
		CourseRepo:      courseRepo,
	}
}

// CheckEligibility 按固定顺序核对：选课 → 已有证书 → 进度 → 作业。
// 证书一经颁发即视为合格，后续进度回落不吊销
func (s *CertificateService) CheckEligibility(userID, courseID uint) (*EligibilityResult, error) {
	if _, err := s.CourseRepo.FindByID(courseID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrCourseNotFound
		}
		return nil, err
	}

	enrollment, err := s.EnrollmentRepo.Find(userID, courseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &EligibilityResult{Eligible: false, Reason: "未选修该课程"}, nil
		}
		return nil, err
	}

	if cert, err := s.CertificateRepo.Find(userID, courseID); err == nil {
		return &EligibilityResult{
			Eligible:       true,
			HasCertificate: true,
			Certificate:    cert,
		}, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	total, err := s.AssignmentRepo.CountByCourse(courseID)
	if err != nil {
		return nil, err
	}
	submitted, err := s.AssignmentRepo.CountSubmittedByUser(userID, courseID)
	if err != nil {
		return nil, err
	}

	result := &EligibilityResult{
		Progress:       enrollment.Progress,
		ProgressMet:    enrollment.Progress >= 100,
		Assignments:    total,
		Submitted:      submitted,
		AssignmentsMet: submitted >= total,
	}
	result.Eligible = result.ProgressMet && result.AssignmentsMet
	switch {
	case !result.ProgressMet:
		result.Reason = "课程进度未达 100%"
	case !result.AssignmentsMet:
		result.Reason = "尚有作业未提交"
	}
	return result, nil
}

// IssueCertificate 资格达标后颁发证书。并发重复颁发由唯一索引兜底，
// 撞键时返回已存在的证书
func (s *CertificateService) IssueCertificate(userID, courseID uint) (*model.Certificate, error) {
	result, err := s.CheckEligibility(userID, courseID)
	if err != nil {
		return nil, err
	}
	if result.HasCertificate {
		return result.Certificate, nil
	}
	if !result.Eligible {
		return nil, util.ErrNotEligible
	}

	cert := &model.Certificate{
		UserID:       userID,
		CourseID:     courseID,
		SerialNumber: uuid.New().String(),
		IssuedAt:     time.Now(),
	}
	if err := s.CertificateRepo.Create(cert); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			existing, findErr := s.CertificateRepo.Find(userID, courseID)
			if findErr != nil {
				return nil, findErr
			}
			return existing, nil
		}
		return nil, err
	}

	logger.Log.Info("已颁发结业证书",
		zap.Uint("userID", userID),
		zap.Uint("courseID", courseID),
		zap.String("serial", cert.SerialNumber))
	return cert, nil
}

// ListUserCertificates 用户名下全部证书
func (s *CertificateService) ListUserCertificates(userID uint) ([]model.Certificate, error) {
	return s.CertificateRepo.ListByUser(userID)
}
