package service

import (
	"context"
	"errors"
	"fmt"
	"lms_backend/internal/model"
	"lms_backend/internal/repository"
	"lms_backend/internal/util"
	"lms_backend/pkg/logger"
	"math"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// answerGrader 按题型分派的判分策略，新增题型时在 graders 表登记
type answerGrader interface {
	grade(question *model.QuizQuestion, answer string) (isCorrect *bool, points float64)
}

// objectiveGrader 客观题：与标准答案做裁剪后精确匹配
type objectiveGrader struct{}

func (objectiveGrader) grade(question *model.QuizQuestion, answer string) (*bool, float64) {
	correct := strings.TrimSpace(answer) == strings.TrimSpace(question.CorrectAnswer)
	points := 0.0
	if correct {
		points = question.Points
	}
	return &correct, points
}

// subjectiveGrader 主观题：记录答案，正误与得分留待讲师评分
type subjectiveGrader struct{}

func (subjectiveGrader) grade(*model.QuizQuestion, string) (*bool, float64) {
	return nil, 0
}

var graders = map[model.QuestionType]answerGrader{
	model.MultipleChoice: objectiveGrader{},
	model.TrueFalse:      objectiveGrader{},
	model.ShortAnswer:    subjectiveGrader{},
	model.Essay:          subjectiveGrader{},
}

// QuestionView 答题视图。未开启 ShowAnswers 时对学员隐藏答案与解析
type QuestionView struct {
	ID            uint               `json:"id"`
	Type          model.QuestionType `json:"type"`
	Content       string             `json:"content"`
	Options       string             `json:"options,omitempty"`
	Points        float64            `json:"points"`
	Order         int                `json:"order"`
	CorrectAnswer string             `json:"correctAnswer,omitempty"`
	Explanation   string             `json:"explanation,omitempty"`
}

type AttemptView struct {
	Submission *model.QuizSubmission `json:"submission"`
	Questions  []QuestionView        `json:"questions"`
}

// FinalizeResult 交卷结果，包含本次实际发出的成就事件
type FinalizeResult struct {
	Submission   *model.QuizSubmission `json:"submission"`
	EarnedPoints float64               `json:"earnedPoints"`
	TotalPoints  float64               `json:"totalPoints"`
	Events       []EmittedEvent        `json:"events,omitempty"`
}

// QuizService 多次作答的测验状态机：开卷 → 答题（可覆盖） → 交卷定稿 → 重判
type QuizService struct {
	QuizRepo       *repository.QuizRepository
	CourseRepo     *repository.CourseRepository
	EnrollmentRepo *repository.EnrollmentRepository
	Notifier       AchievementNotifier
	Redis          *redis.Client
}

func NewQuizService(
	quizRepo *repository.QuizRepository,
	courseRepo *repository.CourseRepository,
	enrollmentRepo *repository.EnrollmentRepository,
	notifier AchievementNotifier,
	redisClient *redis.Client,
) *QuizService {
	return &QuizService{
		QuizRepo:       quizRepo,
		CourseRepo:     courseRepo,
		EnrollmentRepo: enrollmentRepo,
		Notifier:       notifier,
		Redis:          redisClient,
	}
}

func activeAttemptKey(userID, quizID uint) string {
	return fmt.Sprintf("quiz:active:%d:%d", userID, quizID)
}

// round2 分数保留两位小数
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func (s *QuizService) isInstructorOf(userID uint, quiz *model.Quiz) (bool, error) {
	course, err := s.CourseRepo.FindByID(quiz.CourseID)
	if err != nil {
		return false, err
	}
	return course.InstructorID == userID, nil
}

// StartAttempt 开启新一次作答。尝试序号严格递增，并发抢号撞唯一索引时
// 返回 ErrConflict 由调用方重试
func (s *QuizService) StartAttempt(ctx context.Context, userID, quizID uint) (*AttemptView, error) {
	quiz, err := s.QuizRepo.FindByIDWithQuestions(quizID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrQuizNotFound
		}
		return nil, err
	}
	if !quiz.IsPublished {
		return nil, util.ErrQuizNotPublished
	}

	isInstructor, err := s.isInstructorOf(userID, quiz)
	if err != nil {
		return nil, err
	}
	if !isInstructor {
		enrolled, err := s.EnrollmentRepo.Exists(userID, quiz.CourseID)
		if err != nil {
			return nil, err
		}
		if !enrolled {
			return nil, util.ErrNotEnrolled
		}
	}

	if quiz.MaxAttempts > 0 {
		count, err := s.QuizRepo.CountSubmissions(userID, quizID)
		if err != nil {
			return nil, err
		}
		if count >= int64(quiz.MaxAttempts) {
			return nil, util.ErrMaxAttemptsReached
		}
	}

	last, err := s.QuizRepo.LastAttemptNumber(userID, quizID)
	if err != nil {
		return nil, err
	}

	submission := &model.QuizSubmission{
		UserID:        userID,
		QuizID:        quizID,
		AttemptNumber: last + 1,
		StartedAt:     time.Now(),
	}
	if err := s.QuizRepo.CreateSubmission(submission); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, util.ErrConflict
		}
		return nil, err
	}

	if s.Redis != nil {
		ttl := 24 * time.Hour
		if quiz.TimeLimit > 0 {
			ttl = time.Duration(quiz.TimeLimit) * time.Minute
		}
		if err := s.Redis.Set(ctx, activeAttemptKey(userID, quizID), submission.ID, ttl).Err(); err != nil {
			logger.Log.Warn("作答中缓存写入失败", zap.Error(err))
		}
	}

	showAnswers := isInstructor || quiz.ShowAnswers
	views := make([]QuestionView, 0, len(quiz.Questions))
	for _, q := range quiz.Questions {
		view := QuestionView{
			ID:      q.ID,
			Type:    q.Type,
			Content: q.Content,
			Options: q.Options,
			Points:  q.Points,
			Order:   q.Order,
		}
		if showAnswers {
			view.CorrectAnswer = q.CorrectAnswer
			view.Explanation = q.Explanation
		}
		views = append(views, view)
	}

	return &AttemptView{Submission: submission, Questions: views}, nil
}

// SubmitAnswer 记录一道题的作答并即时判分。同一题重复作答后写覆盖先写；
// 已交卷的提交拒绝再答
func (s *QuizService) SubmitAnswer(userID, submissionID, questionID uint, answerText string) (*model.QuizAnswer, error) {
	submission, err := s.QuizRepo.FindSubmissionByID(submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrSubmissionNotFound
		}
		return nil, err
	}
	if submission.UserID != userID {
		return nil, util.ErrPermissionDenied
	}
	if submission.SubmittedAt != nil {
		return nil, util.ErrAlreadySubmitted
	}

	question, err := s.QuizRepo.FindQuestionByID(questionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrQuestionNotFound
		}
		return nil, err
	}
	if question.QuizID != submission.QuizID {
		return nil, util.ErrQuestionNotFound
	}

	isCorrect, points := graders[question.Type].grade(question, answerText)
	answer := &model.QuizAnswer{
		SubmissionID: submissionID,
		QuestionID:   questionID,
		Answer:       answerText,
		IsCorrect:    isCorrect,
		PointsEarned: points,
	}
	if err := s.QuizRepo.UpsertAnswer(answer); err != nil {
		return nil, err
	}
	return answer, nil
}

// Finalize 交卷定稿：汇总得分、判定通过与否并按提交发一次成就事件。
// 未作答的题按零分计
func (s *QuizService) Finalize(ctx context.Context, userID, submissionID uint) (*FinalizeResult, error) {
	submission, err := s.QuizRepo.FindSubmissionByID(submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrSubmissionNotFound
		}
		return nil, err
	}
	if submission.UserID != userID {
		return nil, util.ErrPermissionDenied
	}
	if submission.SubmittedAt != nil {
		return nil, util.ErrAlreadySubmitted
	}

	quiz, err := s.QuizRepo.FindByID(submission.QuizID)
	if err != nil {
		return nil, err
	}

	questions, err := s.QuizRepo.ListQuestions(submission.QuizID)
	if err != nil {
		return nil, err
	}
	answers, err := s.QuizRepo.ListAnswers(submissionID)
	if err != nil {
		return nil, err
	}

	total, earned := tallyPoints(questions, answers)
	// 空卷（总分为零）记零分，不做除零
	score := 0.0
	if total > 0 {
		score = round2(earned / total * 100)
	}

	now := time.Now()
	timeSpent := int(now.Sub(submission.StartedAt).Seconds())
	submission.SubmittedAt = &now
	submission.Score = &score
	submission.IsPassed = score >= quiz.PassingScore
	submission.TimeSpent = &timeSpent
	if err := s.QuizRepo.SaveSubmission(submission); err != nil {
		return nil, err
	}

	contextTitle, err := s.quizContextTitle(quiz)
	if err != nil {
		return nil, err
	}

	result := &FinalizeResult{
		Submission:   submission,
		EarnedPoints: round2(earned),
		TotalPoints:  round2(total),
	}
	emitted, err := s.Notifier.NotifyQuizCompleted(ctx, QuizCompletedEvent{
		UserID:       userID,
		QuizID:       quiz.ID,
		SubmissionID: submission.ID,
		QuizTitle:    quiz.Title,
		ContextTitle: contextTitle,
		Score:        score,
		IsPassed:     submission.IsPassed,
	})
	if err != nil {
		return nil, err
	}
	if emitted {
		result.Events = append(result.Events, EmittedEvent{
			Type:  model.QuizCompleted,
			Key:   fmt.Sprintf("quiz_completed:submission:%d", submission.ID),
			Title: quiz.Title,
		})
	}

	if s.Redis != nil {
		if err := s.Redis.Del(ctx, activeAttemptKey(userID, quiz.ID)).Err(); err != nil {
			logger.Log.Warn("作答中缓存清理失败", zap.Error(err))
		}
	}
	return result, nil
}

// RegradeAnswer 讲师重判单题：改写得分与评语后重算整卷，不再发成就事件
func (s *QuizService) RegradeAnswer(instructorID, submissionID, answerID uint, points float64, feedback string) (*model.QuizSubmission, error) {
	submission, err := s.QuizRepo.FindSubmissionByID(submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrSubmissionNotFound
		}
		return nil, err
	}
	if submission.SubmittedAt == nil {
		return nil, util.ErrNotSubmitted
	}

	quiz, err := s.QuizRepo.FindByID(submission.QuizID)
	if err != nil {
		return nil, err
	}
	isInstructor, err := s.isInstructorOf(instructorID, quiz)
	if err != nil {
		return nil, err
	}
	if !isInstructor {
		return nil, util.ErrPermissionDenied
	}

	answer, err := s.QuizRepo.FindAnswerByID(answerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrAnswerNotFound
		}
		return nil, err
	}
	if answer.SubmissionID != submissionID {
		return nil, util.ErrAnswerNotFound
	}

	question, err := s.QuizRepo.FindQuestionByID(answer.QuestionID)
	if err != nil {
		return nil, err
	}
	if points < 0 || points > question.Points {
		return nil, util.ErrGradeOutOfRange
	}

	now := time.Now()
	// 满分记为答对，其余含部分得分记为答错
	correct := points == question.Points
	answer.IsCorrect = &correct
	answer.PointsEarned = points
	answer.Feedback = feedback
	answer.GradedBy = &instructorID
	answer.GradedAt = &now
	if err := s.QuizRepo.SaveAnswer(answer); err != nil {
		return nil, err
	}

	questions, err := s.QuizRepo.ListQuestions(submission.QuizID)
	if err != nil {
		return nil, err
	}
	answers, err := s.QuizRepo.ListAnswers(submissionID)
	if err != nil {
		return nil, err
	}
	total, earned := tallyPoints(questions, answers)
	score := 0.0
	if total > 0 {
		score = round2(earned / total * 100)
	}
	submission.Score = &score
	submission.IsPassed = score >= quiz.PassingScore
	if err := s.QuizRepo.SaveSubmission(submission); err != nil {
		return nil, err
	}
	return submission, nil
}

// tallyPoints 只统计仍然属于测验的题目，孤儿答案不计分
func tallyPoints(questions []model.QuizQuestion, answers []model.QuizAnswer) (total, earned float64) {
	known := make(map[uint]bool, len(questions))
	for _, q := range questions {
		total += q.Points
		known[q.ID] = true
	}
	for _, a := range answers {
		if known[a.QuestionID] {
			earned += a.PointsEarned
		}
	}
	return total, earned
}

func (s *QuizService) quizContextTitle(quiz *model.Quiz) (string, error) {
	if quiz.ModuleID != nil {
		module, err := s.CourseRepo.FindModuleByID(*quiz.ModuleID)
		if err == nil {
			return module.Title, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return "", err
		}
	}
	course, err := s.CourseRepo.FindByID(quiz.CourseID)
	if err != nil {
		return "", err
	}
	return course.Title, nil
}

// GetSubmission 本人或课程讲师可查看提交详情
func (s *QuizService) GetSubmission(requesterID, submissionID uint) (*model.QuizSubmission, error) {
	submission, err := s.QuizRepo.FindSubmissionByID(submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrSubmissionNotFound
		}
		return nil, err
	}
	if submission.UserID == requesterID {
		return submission, nil
	}

	quiz, err := s.QuizRepo.FindByID(submission.QuizID)
	if err != nil {
		return nil, err
	}
	isInstructor, err := s.isInstructorOf(requesterID, quiz)
	if err != nil {
		return nil, err
	}
	if !isInstructor {
		return nil, util.ErrPermissionDenied
	}
	return submission, nil
}

// ListAttempts 用户在某测验下的全部尝试，按序号升序
func (s *QuizService) ListAttempts(userID, quizID uint) ([]model.QuizSubmission, error) {
	if _, err := s.QuizRepo.FindByID(quizID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrQuizNotFound
		}
		return nil, err
	}
	return s.QuizRepo.ListSubmissions(userID, quizID)
}

// ListQuizSubmissions 讲师视角：某测验的全部学员提交
func (s *QuizService) ListQuizSubmissions(instructorID, quizID uint) ([]model.QuizSubmission, error) {
	quiz, err := s.QuizRepo.FindByID(quizID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrQuizNotFound
		}
		return nil, err
	}
	isInstructor, err := s.isInstructorOf(instructorID, quiz)
	if err != nil {
		return nil, err
	}
	if !isInstructor {
		return nil, util.ErrPermissionDenied
	}
	return s.QuizRepo.ListSubmissionsByQuiz(quizID)
}

// QuizCreateRequest 创建测验请求，可一并带题目
type QuizCreateRequest struct {
	CourseID     uint                    `json:"courseId" binding:"required"`
	ModuleID     *uint                   `json:"moduleId"`
	Title        string                  `json:"title" binding:"required"`
	Description  string                  `json:"description"`
	PassingScore float64                 `json:"passingScore" binding:"omitempty,min=0,max=100"`
	MaxAttempts  int                     `json:"maxAttempts" binding:"omitempty,min=0"`
	TimeLimit    int                     `json:"timeLimit" binding:"omitempty,min=0"`
	ShowAnswers  bool                    `json:"showAnswers"`
	Questions    []QuestionCreateRequest `json:"questions"`
}

type QuestionCreateRequest struct {
	Type          model.QuestionType `json:"type" binding:"required,oneof=multiple_choice true_false short_answer essay"`
	Content       string             `json:"content" binding:"required"`
	Options       string             `json:"options"`
	CorrectAnswer string             `json:"correctAnswer"`
	Explanation   string             `json:"explanation"`
	Points        float64            `json:"points" binding:"omitempty,min=0"`
	Order         int                `json:"order"`
}

func (req *QuestionCreateRequest) toModel(quizID uint) (*model.QuizQuestion, error) {
	// 客观题必须配标准答案，否则无法自动判分
	if req.Type.IsObjective() && strings.TrimSpace(req.CorrectAnswer) == "" {
		return nil, fmt.Errorf("客观题必须提供标准答案")
	}
	points := req.Points
	if points == 0 {
		points = 1
	}
	return &model.QuizQuestion{
		QuizID:        quizID,
		Type:          req.Type,
		Content:       req.Content,
		Options:       req.Options,
		CorrectAnswer: req.CorrectAnswer,
		Explanation:   req.Explanation,
		Points:        points,
		Order:         req.Order,
	}, nil
}

// CreateQuiz 讲师在自己的课程下创建测验
func (s *QuizService) CreateQuiz(instructorID uint, req QuizCreateRequest) (*model.Quiz, error) {
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
	if req.ModuleID != nil {
		module, err := s.CourseRepo.FindModuleByID(*req.ModuleID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, util.ErrModuleNotFound
			}
			return nil, err
		}
		if module.CourseID != req.CourseID {
			return nil, util.ErrModuleNotFound
		}
	}

	passingScore := req.PassingScore
	if passingScore == 0 {
		passingScore = 60
	}
	quiz := &model.Quiz{
		CourseID:     req.CourseID,
		ModuleID:     req.ModuleID,
		Title:        req.Title,
		Description:  req.Description,
		PassingScore: passingScore,
		MaxAttempts:  req.MaxAttempts,
		TimeLimit:    req.TimeLimit,
		ShowAnswers:  req.ShowAnswers,
	}
	for i := range req.Questions {
		question, err := req.Questions[i].toModel(0)
		if err != nil {
			return nil, err
		}
		quiz.Questions = append(quiz.Questions, *question)
	}
	if err := s.QuizRepo.Create(quiz); err != nil {
		return nil, err
	}
	return quiz, nil
}

// QuizUpdateRequest 更新测验配置，nil 字段不变
type QuizUpdateRequest struct {
	Title        *string  `json:"title"`
	Description  *string  `json:"description"`
	PassingScore *float64 `json:"passingScore" binding:"omitempty,min=0,max=100"`
	MaxAttempts  *int     `json:"maxAttempts" binding:"omitempty,min=0"`
	TimeLimit    *int     `json:"timeLimit" binding:"omitempty,min=0"`
	ShowAnswers  *bool    `json:"showAnswers"`
	IsPublished  *bool    `json:"isPublished"`
}

func (s *QuizService) UpdateQuiz(instructorID, quizID uint, req QuizUpdateRequest) (*model.Quiz, error) {
	quiz, err := s.QuizRepo.FindByID(quizID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrQuizNotFound
		}
		return nil, err
	}
	isInstructor, err := s.isInstructorOf(instructorID, quiz)
	if err != nil {
		return nil, err
	}
	if !isInstructor {
		return nil, util.ErrPermissionDenied
	}

	if req.Title != nil {
		quiz.Title = *req.Title
	}
	if req.Description != nil {
		quiz.Description = *req.Description
	}
	if req.PassingScore != nil {
		quiz.PassingScore = *req.PassingScore
	}
	if req.MaxAttempts != nil {
		quiz.MaxAttempts = *req.MaxAttempts
	}
	if req.TimeLimit != nil {
		quiz.TimeLimit = *req.TimeLimit
	}
	if req.ShowAnswers != nil {
		quiz.ShowAnswers = *req.ShowAnswers
	}
	if req.IsPublished != nil {
		quiz.IsPublished = *req.IsPublished
	}
	if err := s.QuizRepo.Update(quiz); err != nil {
		return nil, err
	}
	return quiz, nil
}

func (s *QuizService) DeleteQuiz(instructorID, quizID uint) error {
	quiz, err := s.QuizRepo.FindByID(quizID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return util.ErrQuizNotFound
		}
		return err
	}
	isInstructor, err := s.isInstructorOf(instructorID, quiz)
	if err != nil {
		return err
	}
	if !isInstructor {
		return util.ErrPermissionDenied
	}
	return s.QuizRepo.Delete(quizID)
}

func (s *QuizService) AddQuestion(instructorID, quizID uint, req QuestionCreateRequest) (*model.QuizQuestion, error) {
	quiz, err := s.QuizRepo.FindByID(quizID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrQuizNotFound
		}
		return nil, err
	}
	isInstructor, err := s.isInstructorOf(instructorID, quiz)
	if err != nil {
		return nil, err
	}
	if !isInstructor {
		return nil, util.ErrPermissionDenied
	}

	question, err := req.toModel(quizID)
	if err != nil {
		return nil, err
	}
	if err := s.QuizRepo.CreateQuestion(question); err != nil {
		return nil, err
	}
	return question, nil
}

func (s *QuizService) DeleteQuestion(instructorID, quizID, questionID uint) error {
	quiz, err := s.QuizRepo.FindByID(quizID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return util.ErrQuizNotFound
		}
		return err
	}
	isInstructor, err := s.isInstructorOf(instructorID, quiz)
	if err != nil {
		return err
	}
	if !isInstructor {
		return util.ErrPermissionDenied
	}

	question, err := s.QuizRepo.FindQuestionByID(questionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return util.ErrQuestionNotFound
		}
		return err
	}
	if question.QuizID != quizID {
		return util.ErrQuestionNotFound
	}
	return s.QuizRepo.DeleteQuestion(questionID)
}

// ListCourseQuizzes 学员只看已发布测验，讲师看全部
func (s *QuizService) ListCourseQuizzes(userID, courseID uint) ([]model.Quiz, error) {
	course, err := s.CourseRepo.FindByID(courseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrCourseNotFound
		}
		return nil, err
	}
	onlyPublished := course.InstructorID != userID
	return s.QuizRepo.ListByCourse(courseID, onlyPublished)
}

// GetQuizForUser 获取测验详情，按角色与 ShowAnswers 做答案脱敏
func (s *QuizService) GetQuizForUser(userID, quizID uint) (*model.Quiz, []QuestionView, error) {
	quiz, err := s.QuizRepo.FindByIDWithQuestions(quizID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, util.ErrQuizNotFound
		}
		return nil, nil, err
	}
	isInstructor, err := s.isInstructorOf(userID, quiz)
	if err != nil {
		return nil, nil, err
	}
	if !quiz.IsPublished && !isInstructor {
		return nil, nil, util.ErrQuizNotPublished
	}

	showAnswers := isInstructor || quiz.ShowAnswers
	views := make([]QuestionView, 0, len(quiz.Questions))
	for _, q := range quiz.Questions {
		view := QuestionView{
			ID:      q.ID,
			Type:    q.Type,
			Content: q.Content,
			Options: q.Options,
			Points:  q.Points,
			Order:   q.Order,
		}
		if showAnswers {
			view.CorrectAnswer = q.CorrectAnswer
			view.Explanation = q.Explanation
		}
		views = append(views, view)
	}
	quiz.Questions = nil
	return quiz, views, nil
}
