package service

import (
	"context"
	"testing"
	"time"

	"lms_backend/internal/model"
	"lms_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func (e *testEnv) seedQuiz(t *testing.T, courseID uint, mutate func(*model.Quiz)) *model.Quiz {
	t.Helper()
	quiz := &model.Quiz{
		CourseID:     courseID,
		Title:        "单元测验",
		PassingScore: 60,
		IsPublished:  true,
	}
	if mutate != nil {
		mutate(quiz)
	}
	require.NoError(t, e.db.Create(quiz).Error)
	return quiz
}

func (e *testEnv) seedQuestion(t *testing.T, quizID uint, qType model.QuestionType, correctAnswer string, points float64) *model.QuizQuestion {
	t.Helper()
	question := &model.QuizQuestion{
		QuizID:        quizID,
		Type:          qType,
		Content:       "题干",
		CorrectAnswer: correctAnswer,
		Points:        points,
		Order:         int(nextSeq()),
	}
	require.NoError(t, e.db.Create(question).Error)
	return question
}

func TestStartAttemptRequiresPublishedQuiz(t *testing.T) {
	env := newTestEnv(t)
	instructor := env.seedUser(t, model.Instructor)
	student := env.seedUser(t, model.Student)
	course := env.seedCourse(t, instructor.ID)
	quiz := env.seedQuiz(t, course.ID, func(q *model.Quiz) { q.IsPublished = false })
	env.enroll(t, student.ID, course.ID)

	_, err := env.quizzes.StartAttempt(context.Background(), student.ID, quiz.ID)
	assert.ErrorIs(t, err, util.ErrQuizNotPublished)
}

func TestStartAttemptRequiresEnrollment(t *testing.T) {
	env := newTestEnv(t)
	instructor := env.seedUser(t, model.Instructor)
	student := env.seedUser(t, model.Student)
	course := env.seedCourse(t, instructor.ID)
	quiz := env.seedQuiz(t, course.ID, nil)

	_, err := env.quizzes.StartAttempt(context.Background(), student.ID, quiz.ID)
	assert.ErrorIs(t, err, util.ErrNotEnrolled)

	// 课程讲师免选课直接试做
	attempt, err := env.quizzes.StartAttempt(context.Background(), instructor.ID, quiz.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, attempt.Submission.AttemptNumber)
}

func TestAttemptNumbersIncreaseStrictly(t *testing.T) {
	env := newTestEnv(t)
	instructor := env.seedUser(t, model.Instructor)
	student := env.seedUser(t, model.Student)
	course := env.seedCourse(t, instructor.ID)
	quiz := env.seedQuiz(t, course.ID, nil)
	env.enroll(t, student.ID, course.ID)

	ctx := context.Background()
	first, err := env.quizzes.StartAttempt(ctx, student.ID, quiz.ID)
	require.NoError(t, err)
	second, err := env.quizzes.StartAttempt(ctx, student.ID, quiz.ID)
	require.NoError(t, err)

	assert.Equal(t, 1, first.Submission.AttemptNumber)
	assert.Equal(t, 2, second.Submission.AttemptNumber)

	attempts, err := env.quizzes.ListAttempts(student.ID, quiz.ID)
	require.NoError(t, err)
	require.Len(t, attempts, 2)
	assert.Equal(t, 1, attempts[0].AttemptNumber)
	assert.Equal(t, 2, attempts[1].AttemptNumber)
}

func TestDuplicateAttemptNumberHitsUniqueIndex(t *testing.T) {
	env := newTestEnv(t)
	instructor := env.seedUser(t, model.Instructor)
	student := env.seedUser(t, model.Student)
	course := env.seedCourse(t, instructor.ID)
	quiz := env.seedQuiz(t, course.ID, nil)
	env.enroll(t, student.ID, course.ID)

	sub := &model.QuizSubmission{UserID: student.ID, QuizID: quiz.ID, AttemptNumber: 1, StartedAt: time.Now()}
	require.NoError(t, env.db.Create(sub).Error)

	// 并发抢号的兜底：同号插入被唯一索引拒绝并翻译为统一冲突错误
	dup := &model.QuizSubmission{UserID: student.ID, QuizID: quiz.ID, AttemptNumber: 1, StartedAt: time.Now()}
	err := env.db.Create(dup).Error
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)
}

func TestStartAttemptEnforcesMaxAttempts(t *testing.T) {
	env := newTestEnv(t)
	instructor := env.seedUser(t, model.Instructor)
	student := env.seedUser(t, model.Student)
	course := env.seedCourse(t, instructor.ID)
	quiz := env.seedQuiz(t, course.ID, func(q *model.Quiz) { q.MaxAttempts = 1 })
	env.enroll(t, student.ID, course.ID)

	ctx := context.Background()
	_, err := env.quizzes.StartAttempt(ctx, student.ID, quiz.ID)
	require.NoError(t, err)

	_, err = env.quizzes.StartAttempt(ctx, student.ID, quiz.ID)
	assert.ErrorIs(t, err, util.ErrMaxAttemptsReached)
}

func TestQuestionsReturnedInPositionOrder(t *testing.T) {
	env := newTestEnv(t)
	instructor := env.seedUser(t, model.Instructor)
	course := env.seedCourse(t, instructor.ID)
	quiz := env.seedQuiz(t, course.ID, nil)

	// 故意倒序入库，读取必须按位置排序
	second := &model.QuizQuestion{QuizID: quiz.ID, Type: model.MultipleChoice, Content: "第二题", CorrectAnswer: "B", Points: 1, Order: 2}
	require.NoError(t, env.db.Create(second).Error)
	first := &model.QuizQuestion{QuizID: quiz.ID, Type: model.MultipleChoice, Content: "第一题", CorrectAnswer: "A", Points: 1, Order: 1}
	require.NoError(t, env.db.Create(first).Error)

	_, views, err := env.quizzes.GetQuizForUser(instructor.ID, quiz.ID)
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, first.ID, views[0].ID)
	assert.Equal(t, second.ID, views[1].ID)
}

func TestStartAttemptRedactsAnswersForStudents(t *testing.T) {
	env := newTestEnv(t)
	instructor := env.seedUser(t, model.Instructor)
	student := env.seedUser(t, model.Student)
	course := env.seedCourse(t, instructor.ID)
	quiz := env.seedQuiz(t, course.ID, nil)
	env.seedQuestion(t, quiz.ID, model.MultipleChoice, "B", 1)
	env.enroll(t, student.ID, course.ID)

	ctx := context.Background()
	attempt, err := env.quizzes.StartAttempt(ctx, student.ID, quiz.ID)
	require.NoError(t, err)
	require.Len(t, attempt.Questions, 1)
	assert.Empty(t, attempt.Questions[0].CorrectAnswer)
	assert.Empty(t, attempt.Questions[0].Explanation)

	attempt, err = env.quizzes.StartAttempt(ctx, instructor.ID, quiz.ID)
	require.NoError(t, err)
	assert.Equal(t, "B", attempt.Questions[0].CorrectAnswer)
}

func TestSubmitAnswerGradesObjectiveQuestions(t *testing.T) {
	env := newTestEnv(t)
	instructor := env.seedUser(t, model.Instructor)
	student := env.seedUser(t, model.Student)
	course := env.seedCourse(t, instructor.ID)
	quiz := env.seedQuiz(t, course.ID, nil)
	choice := env.seedQuestion(t, quiz.ID, model.MultipleChoice, "B", 2)
	trueFalse := env.seedQuestion(t, quiz.ID, model.TrueFalse, "true", 1)
	env.enroll(t, student.ID, course.ID)

	attempt, err := env.quizzes.StartAttempt(context.Background(), student.ID, quiz.ID)
	require.NoError(t, err)
	subID := attempt.Submission.ID

	answer, err := env.quizzes.SubmitAnswer(student.ID, subID, choice.ID, " B ")
	require.NoError(t, err)
	require.NotNil(t, answer.IsCorrect)
	assert.True(t, *answer.IsCorrect)
	assert.Equal(t, 2.0, answer.PointsEarned)

	answer, err = env.quizzes.SubmitAnswer(student.ID, subID, trueFalse.ID, "false")
	require.NoError(t, err)
	require.NotNil(t, answer.IsCorrect)
	assert.False(t, *answer.IsCorrect)
	assert.Zero(t, answer.PointsEarned)
}

func TestSubmitAnswerLeavesSubjectivePending(t *testing.T) {
	env := newTestEnv(t)
	instructor := env.seedUser(t, model.Instructor)
	student := env.seedUser(t, model.Student)
	course := env.seedCourse(t, instructor.ID)
	quiz := env.seedQuiz(t, course.ID, nil)
	essay := env.seedQuestion(t, quiz.ID, model.Essay, "", 10)
	env.enroll(t, student.ID, course.ID)

	attempt, err := env.quizzes.StartAttempt(context.Background(), student.ID, quiz.ID)
	require.NoError(t, err)

	answer, err := env.quizzes.SubmitAnswer(student.ID, attempt.Submission.ID, essay.ID, "论述内容")
	require.NoError(t, err)
	assert.Nil(t, answer.IsCorrect)
	assert.Zero(t, answer.PointsEarned)
}

func TestSubmitAnswerLastWriteWins(t *testing.T) {
	env := newTestEnv(t)
	instructor := env.seedUser(t, model.Instructor)
	student := env.seedUser(t, model.Student)
	course := env.seedCourse(t, instructor.ID)
	quiz := env.seedQuiz(t, course.ID, nil)
	question := env.seedQuestion(t, quiz.ID, model.MultipleChoice, "A", 1)
	env.enroll(t, student.ID, course.ID)

	attempt, err := env.quizzes.StartAttempt(context.Background(), student.ID, quiz.ID)
	require.NoError(t, err)
	subID := attempt.Submission.ID

	_, err = env.quizzes.SubmitAnswer(student.ID, subID, question.ID, "B")
	require.NoError(t, err)
	_, err = env.quizzes.SubmitAnswer(student.ID, subID, question.ID, "A")
	require.NoError(t, err)

	var answers []model.QuizAnswer
	require.NoError(t, env.db.Where("submission_id = ?", subID).Find(&answers).Error)
	require.Len(t, answers, 1)
	assert.Equal(t, "A", answers[0].Answer)
	assert.Equal(t, 1.0, answers[0].PointsEarned)
}

func TestSubmitAnswerRejectsForeignQuestion(t *testing.T) {
	env := newTestEnv(t)
	instructor := env.seedUser(t, model.Instructor)
	student := env.seedUser(t, model.Student)
	course := env.seedCourse(t, instructor.ID)
	quiz := env.seedQuiz(t, course.ID, nil)
	other := env.seedQuiz(t, course.ID, nil)
	foreign := env.seedQuestion(t, other.ID, model.MultipleChoice, "A", 1)
	env.enroll(t, student.ID, course.ID)

	attempt, err := env.quizzes.StartAttempt(context.Background(), student.ID, quiz.ID)
	require.NoError(t, err)

	_, err = env.quizzes.SubmitAnswer(student.ID, attempt.Submission.ID, foreign.ID, "A")
	assert.ErrorIs(t, err, util.ErrQuestionNotFound)
}

func TestFinalizeComputesRoundedScore(t *testing.T) {
	env := newTestEnv(t)
	instructor := env.seedUser(t, model.Instructor)
	student := env.seedUser(t, model.Student)
	course := env.seedCourse(t, instructor.ID)
	quiz := env.seedQuiz(t, course.ID, func(q *model.Quiz) { q.PassingScore = 70 })
	q1 := env.seedQuestion(t, quiz.ID, model.MultipleChoice, "A", 1)
	q2 := env.seedQuestion(t, quiz.ID, model.MultipleChoice, "B", 1)
	env.seedQuestion(t, quiz.ID, model.MultipleChoice, "C", 1)
	env.enroll(t, student.ID, course.ID)

	ctx := context.Background()
	attempt, err := env.quizzes.StartAttempt(ctx, student.ID, quiz.ID)
	require.NoError(t, err)
	subID := attempt.Submission.ID

	_, err = env.quizzes.SubmitAnswer(student.ID, subID, q1.ID, "A")
	require.NoError(t, err)
	_, err = env.quizzes.SubmitAnswer(student.ID, subID, q2.ID, "B")
	require.NoError(t, err)

	// 三题答对两题，未答按零分计：2/3 → 66.67
	result, err := env.quizzes.Finalize(ctx, student.ID, subID)
	require.NoError(t, err)
	require.NotNil(t, result.Submission.Score)
	assert.InDelta(t, 66.67, *result.Submission.Score, 0.001)
	assert.InDelta(t, 2, result.EarnedPoints, 0.001)
	assert.InDelta(t, 3, result.TotalPoints, 0.001)
	assert.False(t, result.Submission.IsPassed)
	assert.NotNil(t, result.Submission.SubmittedAt)
	assert.NotNil(t, result.Submission.TimeSpent)
}

func TestFinalizeEmptyQuizScoresZero(t *testing.T) {
	env := newTestEnv(t)
	instructor := env.seedUser(t, model.Instructor)
	student := env.seedUser(t, model.Student)
	course := env.seedCourse(t, instructor.ID)
	quiz := env.seedQuiz(t, course.ID, nil)
	env.enroll(t, student.ID, course.ID)

	ctx := context.Background()
	attempt, err := env.quizzes.StartAttempt(ctx, student.ID, quiz.ID)
	require.NoError(t, err)

	result, err := env.quizzes.Finalize(ctx, student.ID, attempt.Submission.ID)
	require.NoError(t, err)
	require.NotNil(t, result.Submission.Score)
	assert.Zero(t, *result.Submission.Score)
	assert.False(t, result.Submission.IsPassed)
}

func TestFinalizeIsTerminal(t *testing.T) {
	env := newTestEnv(t)
	instructor := env.seedUser(t, model.Instructor)
	student := env.seedUser(t, model.Student)
	course := env.seedCourse(t, instructor.ID)
	quiz := env.seedQuiz(t, course.ID, nil)
	question := env.seedQuestion(t, quiz.ID, model.MultipleChoice, "A", 1)
	env.enroll(t, student.ID, course.ID)

	ctx := context.Background()
	attempt, err := env.quizzes.StartAttempt(ctx, student.ID, quiz.ID)
	require.NoError(t, err)
	subID := attempt.Submission.ID

	_, err = env.quizzes.Finalize(ctx, student.ID, subID)
	require.NoError(t, err)

	_, err = env.quizzes.Finalize(ctx, student.ID, subID)
	assert.ErrorIs(t, err, util.ErrAlreadySubmitted)

	_, err = env.quizzes.SubmitAnswer(student.ID, subID, question.ID, "A")
	assert.ErrorIs(t, err, util.ErrAlreadySubmitted)
}

func TestFinalizeEmitsEventPerSubmission(t *testing.T) {
	env := newTestEnv(t)
	instructor := env.seedUser(t, model.Instructor)
	student := env.seedUser(t, model.Student)
	course := env.seedCourse(t, instructor.ID)
	quiz := env.seedQuiz(t, course.ID, nil)
	env.enroll(t, student.ID, course.ID)

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		attempt, err := env.quizzes.StartAttempt(ctx, student.ID, quiz.ID)
		require.NoError(t, err)
		result, err := env.quizzes.Finalize(ctx, student.ID, attempt.Submission.ID)
		require.NoError(t, err)
		// 每次提交都是新事件，按 submission 去重而非按测验
		require.Len(t, result.Events, 1)
		assert.Equal(t, model.QuizCompleted, result.Events[0].Type)
	}
	assert.EqualValues(t, 2, env.achievementCount(t, student.ID))
	assert.EqualValues(t, 2, env.notificationCount(t, student.ID))
}

func TestRegradeRecomputesScoreWithoutNewEvent(t *testing.T) {
	env := newTestEnv(t)
	instructor := env.seedUser(t, model.Instructor)
	student := env.seedUser(t, model.Student)
	course := env.seedCourse(t, instructor.ID)
	quiz := env.seedQuiz(t, course.ID, nil)
	essay := env.seedQuestion(t, quiz.ID, model.Essay, "", 10)
	env.enroll(t, student.ID, course.ID)

	ctx := context.Background()
	attempt, err := env.quizzes.StartAttempt(ctx, student.ID, quiz.ID)
	require.NoError(t, err)
	subID := attempt.Submission.ID

	answer, err := env.quizzes.SubmitAnswer(student.ID, subID, essay.ID, "论述内容")
	require.NoError(t, err)

	result, err := env.quizzes.Finalize(ctx, student.ID, subID)
	require.NoError(t, err)
	assert.Zero(t, *result.Submission.Score)
	require.EqualValues(t, 1, env.achievementCount(t, student.ID))

	submission, err := env.quizzes.RegradeAnswer(instructor.ID, subID, answer.ID, 8, "论证尚可")
	require.NoError(t, err)
	require.NotNil(t, submission.Score)
	assert.InDelta(t, 80, *submission.Score, 0.001)
	assert.True(t, submission.IsPassed)

	var graded model.QuizAnswer
	require.NoError(t, env.db.First(&graded, answer.ID).Error)
	require.NotNil(t, graded.IsCorrect)
	assert.False(t, *graded.IsCorrect)
	assert.Equal(t, "论证尚可", graded.Feedback)
	require.NotNil(t, graded.GradedBy)
	assert.Equal(t, instructor.ID, *graded.GradedBy)

	// 重判不重发成就事件
	assert.EqualValues(t, 1, env.achievementCount(t, student.ID))

	// 满分重判记为答对
	_, err = env.quizzes.RegradeAnswer(instructor.ID, subID, answer.ID, 10, "")
	require.NoError(t, err)
	require.NoError(t, env.db.First(&graded, answer.ID).Error)
	assert.True(t, *graded.IsCorrect)
}

func TestRegradeValidations(t *testing.T) {
	env := newTestEnv(t)
	instructor := env.seedUser(t, model.Instructor)
	other := env.seedUser(t, model.Instructor)
	student := env.seedUser(t, model.Student)
	course := env.seedCourse(t, instructor.ID)
	quiz := env.seedQuiz(t, course.ID, nil)
	essay := env.seedQuestion(t, quiz.ID, model.Essay, "", 10)
	env.enroll(t, student.ID, course.ID)

	ctx := context.Background()
	attempt, err := env.quizzes.StartAttempt(ctx, student.ID, quiz.ID)
	require.NoError(t, err)
	subID := attempt.Submission.ID

	answer, err := env.quizzes.SubmitAnswer(student.ID, subID, essay.ID, "论述内容")
	require.NoError(t, err)

	// 未交卷不可评分
	_, err = env.quizzes.RegradeAnswer(instructor.ID, subID, answer.ID, 5, "")
	assert.ErrorIs(t, err, util.ErrNotSubmitted)

	_, err = env.quizzes.Finalize(ctx, student.ID, subID)
	require.NoError(t, err)

	// 非本课讲师无权评分
	_, err = env.quizzes.RegradeAnswer(other.ID, subID, answer.ID, 5, "")
	assert.ErrorIs(t, err, util.ErrPermissionDenied)

	// 得分必须落在 [0, 题目分值]
	_, err = env.quizzes.RegradeAnswer(instructor.ID, subID, answer.ID, 11, "")
	assert.ErrorIs(t, err, util.ErrGradeOutOfRange)
	_, err = env.quizzes.RegradeAnswer(instructor.ID, subID, answer.ID, -1, "")
	assert.ErrorIs(t, err, util.ErrGradeOutOfRange)
}

func TestGetSubmissionPermissions(t *testing.T) {
	env := newTestEnv(t)
	instructor := env.seedUser(t, model.Instructor)
	student := env.seedUser(t, model.Student)
	stranger := env.seedUser(t, model.Student)
	course := env.seedCourse(t, instructor.ID)
	quiz := env.seedQuiz(t, course.ID, nil)
	env.enroll(t, student.ID, course.ID)

	attempt, err := env.quizzes.StartAttempt(context.Background(), student.ID, quiz.ID)
	require.NoError(t, err)
	subID := attempt.Submission.ID

	_, err = env.quizzes.GetSubmission(student.ID, subID)
	assert.NoError(t, err)
	_, err = env.quizzes.GetSubmission(instructor.ID, subID)
	assert.NoError(t, err)
	_, err = env.quizzes.GetSubmission(stranger.ID, subID)
	assert.ErrorIs(t, err, util.ErrPermissionDenied)
}

func TestCreateQuizValidatesObjectiveAnswers(t *testing.T) {
	env := newTestEnv(t)
	instructor := env.seedUser(t, model.Instructor)
	course := env.seedCourse(t, instructor.ID)

	_, err := env.quizzes.CreateQuiz(instructor.ID, QuizCreateRequest{
		CourseID: course.ID,
		Title:    "无标准答案",
		Questions: []QuestionCreateRequest{
			{Type: model.MultipleChoice, Content: "题干", CorrectAnswer: "  "},
		},
	})
	assert.Error(t, err)

	quiz, err := env.quizzes.CreateQuiz(instructor.ID, QuizCreateRequest{
		CourseID: course.ID,
		Title:    "默认值检查",
		Questions: []QuestionCreateRequest{
			{Type: model.Essay, Content: "论述题"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 60.0, quiz.PassingScore)
	require.Len(t, quiz.Questions, 1)
	assert.Equal(t, 1.0, quiz.Questions[0].Points)
}

func TestListCourseQuizzesFiltersByRole(t *testing.T) {
	env := newTestEnv(t)
	instructor := env.seedUser(t, model.Instructor)
	student := env.seedUser(t, model.Student)
	course := env.seedCourse(t, instructor.ID)
	env.seedQuiz(t, course.ID, nil)
	env.seedQuiz(t, course.ID, func(q *model.Quiz) { q.IsPublished = false })
	env.enroll(t, student.ID, course.ID)

	quizzes, err := env.quizzes.ListCourseQuizzes(student.ID, course.ID)
	require.NoError(t, err)
	assert.Len(t, quizzes, 1)

	quizzes, err = env.quizzes.ListCourseQuizzes(instructor.ID, course.ID)
	require.NoError(t, err)
	assert.Len(t, quizzes, 2)
}
