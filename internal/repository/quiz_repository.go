package repository

import (
	"lms_backend/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type QuizRepository struct {
	DB *gorm.DB
}

func NewQuizRepository(db *gorm.DB) *QuizRepository {
	return &QuizRepository{DB: db}
}

func (r *QuizRepository) FindByID(id uint) (*model.Quiz, error) {
	var quiz model.Quiz
	err := r.DB.First(&quiz, id).Error
	if err != nil {
		return nil, err
	}
	return &quiz, nil
}

func (r *QuizRepository) FindByIDWithQuestions(id uint) (*model.Quiz, error) {
	var quiz model.Quiz
	err := r.DB.Preload("Questions", func(db *gorm.DB) *gorm.DB {
		// order 是保留字，让 GORM 按方言加引号
		return db.Order(clause.OrderByColumn{Column: clause.Column{Name: "order"}})
	}).First(&quiz, id).Error
	if err != nil {
		return nil, err
	}
	return &quiz, nil
}

func (r *QuizRepository) ListByCourse(courseID uint, onlyPublished bool) ([]model.Quiz, error) {
	query := r.DB.Where("course_id = ?", courseID)
	if onlyPublished {
		query = query.Where("is_published = ?", true)
	}

	var quizzes []model.Quiz
	err := query.Order("created_at ASC").Find(&quizzes).Error
	return quizzes, err
}

func (r *QuizRepository) Create(quiz *model.Quiz) error {
	return r.DB.Create(quiz).Error
}

func (r *QuizRepository) Update(quiz *model.Quiz) error {
	return r.DB.Save(quiz).Error
}

func (r *QuizRepository) Delete(id uint) error {
	return r.DB.Delete(&model.Quiz{}, id).Error
}

func (r *QuizRepository) FindQuestionByID(id uint) (*model.QuizQuestion, error) {
	var question model.QuizQuestion
	err := r.DB.First(&question, id).Error
	if err != nil {
		return nil, err
	}
	return &question, nil
}

func (r *QuizRepository) ListQuestions(quizID uint) ([]model.QuizQuestion, error) {
	var questions []model.QuizQuestion
	err := r.DB.Where("quiz_id = ?", quizID).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "order"}}).
		Find(&questions).Error
	return questions, err
}

func (r *QuizRepository) CreateQuestion(question *model.QuizQuestion) error {
	return r.DB.Create(question).Error
}

func (r *QuizRepository) UpdateQuestion(question *model.QuizQuestion) error {
	return r.DB.Save(question).Error
}

func (r *QuizRepository) DeleteQuestion(id uint) error {
	return r.DB.Delete(&model.QuizQuestion{}, id).Error
}

func (r *QuizRepository) CountSubmissions(userID, quizID uint) (int64, error) {
	var count int64
	err := r.DB.Model(&model.QuizSubmission{}).
		Where("user_id = ? AND quiz_id = ?", userID, quizID).
		Count(&count).Error
	return count, err
}

// LastAttemptNumber 返回已有的最大尝试序号，无记录时为 0
func (r *QuizRepository) LastAttemptNumber(userID, quizID uint) (int, error) {
	var last int
	err := r.DB.Model(&model.QuizSubmission{}).
		Where("user_id = ? AND quiz_id = ?", userID, quizID).
		Select("COALESCE(MAX(attempt_number), 0)").
		Scan(&last).Error
	return last, err
}

// CreateSubmission 依赖 (user_id, quiz_id, attempt_number) 唯一索引，
// 并发抢号时由存储层报冲突，调用方重读后重试
func (r *QuizRepository) CreateSubmission(submission *model.QuizSubmission) error {
	return r.DB.Create(submission).Error
}

func (r *QuizRepository) FindSubmissionByID(id uint) (*model.QuizSubmission, error) {
	var submission model.QuizSubmission
	err := r.DB.Preload("Answers").First(&submission, id).Error
	if err != nil {
		return nil, err
	}
	return &submission, nil
}

func (r *QuizRepository) ListSubmissions(userID, quizID uint) ([]model.QuizSubmission, error) {
	var submissions []model.QuizSubmission
	err := r.DB.Where("user_id = ? AND quiz_id = ?", userID, quizID).
		Order("attempt_number ASC").Find(&submissions).Error
	return submissions, err
}

func (r *QuizRepository) ListSubmissionsByQuiz(quizID uint) ([]model.QuizSubmission, error) {
	var submissions []model.QuizSubmission
	err := r.DB.Where("quiz_id = ?", quizID).
		Order("created_at DESC").Find(&submissions).Error
	return submissions, err
}

func (r *QuizRepository) SaveSubmission(submission *model.QuizSubmission) error {
	return r.DB.Save(submission).Error
}

// UpsertAnswer 同一 (submission, question) 后写覆盖先写，不保留历史
func (r *QuizRepository) UpsertAnswer(answer *model.QuizAnswer) error {
	return r.DB.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "submission_id"}, {Name: "question_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"answer", "is_correct", "points_earned", "updated_at",
		}),
	}).Create(answer).Error
}

func (r *QuizRepository) FindAnswerByID(id uint) (*model.QuizAnswer, error) {
	var answer model.QuizAnswer
	err := r.DB.First(&answer, id).Error
	if err != nil {
		return nil, err
	}
	return &answer, nil
}

func (r *QuizRepository) ListAnswers(submissionID uint) ([]model.QuizAnswer, error) {
	var answers []model.QuizAnswer
	err := r.DB.Where("submission_id = ?", submissionID).Find(&answers).Error
	return answers, err
}

func (r *QuizRepository) SaveAnswer(answer *model.QuizAnswer) error {
	return r.DB.Save(answer).Error
}
