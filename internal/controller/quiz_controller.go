package controller

import (
	"lms_backend/internal/service"
	"lms_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type QuizController struct {
	QuizService *service.QuizService
}

func NewQuizController(quizService *service.QuizService) *QuizController {
	return &QuizController{QuizService: quizService}
}

// CreateQuiz godoc
// @Summary 创建测验
// @Tags 测验
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body service.QuizCreateRequest true "测验信息，可携带题目"
// @Success 201 {object} util.Response
// @Router /api/instructor/quizzes [post]
func (c *QuizController) CreateQuiz(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	var req service.QuizCreateRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	quiz, err := c.QuizService.CreateQuiz(claims.UserID, req)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Created(ctx, quiz)
}

// UpdateQuiz godoc
// @Summary 更新测验配置
// @Tags 测验
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "测验ID"
// @Param body body service.QuizUpdateRequest true "更新字段"
// @Success 200 {object} util.Response
// @Router /api/instructor/quizzes/{id} [put]
func (c *QuizController) UpdateQuiz(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	var req service.QuizUpdateRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	quiz, err := c.QuizService.UpdateQuiz(claims.UserID, util.MustParseUint(ctx.Param("id")), req)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, quiz)
}

// DeleteQuiz godoc
// @Summary 删除测验
// @Tags 测验
// @Produce json
// @Security BearerAuth
// @Param id path int true "测验ID"
// @Success 200 {object} util.Response
// @Router /api/instructor/quizzes/{id} [delete]
func (c *QuizController) DeleteQuiz(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if err := c.QuizService.DeleteQuiz(claims.UserID, util.MustParseUint(ctx.Param("id"))); err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// AddQuestion godoc
// @Summary 添加题目
// @Tags 测验
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "测验ID"
// @Param body body service.QuestionCreateRequest true "题目信息"
// @Success 201 {object} util.Response
// @Router /api/instructor/quizzes/{id}/questions [post]
func (c *QuizController) AddQuestion(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	var req service.QuestionCreateRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	question, err := c.QuizService.AddQuestion(claims.UserID, util.MustParseUint(ctx.Param("id")), req)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Created(ctx, question)
}

// DeleteQuestion godoc
// @Summary 删除题目
// @Tags 测验
// @Produce json
// @Security BearerAuth
// @Param id path int true "测验ID"
// @Param questionId path int true "题目ID"
// @Success 200 {object} util.Response
// @Router /api/instructor/quizzes/{id}/questions/{questionId} [delete]
func (c *QuizController) DeleteQuestion(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if err := c.QuizService.DeleteQuestion(claims.UserID, util.MustParseUint(ctx.Param("id")), util.MustParseUint(ctx.Param("questionId"))); err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// ListCourseQuizzes godoc
// @Summary 课程测验列表
// @Tags 测验
// @Produce json
// @Security BearerAuth
// @Param id path int true "课程ID"
// @Success 200 {object} util.Response
// @Router /api/courses/{id}/quizzes [get]
func (c *QuizController) ListCourseQuizzes(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	quizzes, err := c.QuizService.ListCourseQuizzes(claims.UserID, util.MustParseUint(ctx.Param("id")))
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, quizzes)
}

// GetQuiz godoc
// @Summary 测验详情
// @Description 学员视角按 ShowAnswers 配置隐藏答案与解析
// @Tags 测验
// @Produce json
// @Security BearerAuth
// @Param id path int true "测验ID"
// @Success 200 {object} util.Response
// @Router /api/quizzes/{id} [get]
func (c *QuizController) GetQuiz(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	quiz, questions, err := c.QuizService.GetQuizForUser(claims.UserID, util.MustParseUint(ctx.Param("id")))
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{
		"quiz":      quiz,
		"questions": questions,
	})
}

// StartAttempt godoc
// @Summary 开始新一次作答
// @Description 尝试序号严格递增；并发开卷冲突返回 409，重试即可
// @Tags 测验
// @Produce json
// @Security BearerAuth
// @Param id path int true "测验ID"
// @Success 201 {object} util.Response
// @Failure 409 {object} util.Response "并发抢号冲突"
// @Failure 422 {object} util.Response "次数用尽或未发布"
// @Router /api/quizzes/{id}/attempts [post]
func (c *QuizController) StartAttempt(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	attempt, err := c.QuizService.StartAttempt(ctx.Request.Context(), claims.UserID, util.MustParseUint(ctx.Param("id")))
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Created(ctx, attempt)
}

// ListAttempts godoc
// @Summary 我的作答记录
// @Tags 测验
// @Produce json
// @Security BearerAuth
// @Param id path int true "测验ID"
// @Success 200 {object} util.Response
// @Router /api/quizzes/{id}/attempts [get]
func (c *QuizController) ListAttempts(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	attempts, err := c.QuizService.ListAttempts(claims.UserID, util.MustParseUint(ctx.Param("id")))
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, attempts)
}

type SubmitAnswerRequest struct {
	QuestionID uint   `json:"questionId" binding:"required"`
	Answer     string `json:"answer"`
}

// SubmitAnswer godoc
// @Summary 提交单题答案
// @Description 客观题即时判分，主观题等待讲师评分；同题重复提交覆盖旧答案
// @Tags 测验
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param submissionId path int true "提交ID"
// @Param body body SubmitAnswerRequest true "答案"
// @Success 200 {object} util.Response
// @Failure 422 {object} util.Response "已交卷"
// @Router /api/submissions/{submissionId}/answers [put]
func (c *QuizController) SubmitAnswer(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	var req SubmitAnswerRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	answer, err := c.QuizService.SubmitAnswer(claims.UserID, util.MustParseUint(ctx.Param("submissionId")), req.QuestionID, req.Answer)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, answer)
}

// Finalize godoc
// @Summary 交卷
// @Description 汇总得分、判定通过与否并发出测验完成事件
// @Tags 测验
// @Produce json
// @Security BearerAuth
// @Param submissionId path int true "提交ID"
// @Success 200 {object} util.Response
// @Failure 422 {object} util.Response "重复交卷"
// @Router /api/submissions/{submissionId}/finalize [post]
func (c *QuizController) Finalize(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	result, err := c.QuizService.Finalize(ctx.Request.Context(), claims.UserID, util.MustParseUint(ctx.Param("submissionId")))
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// GetSubmission godoc
// @Summary 提交详情
// @Tags 测验
// @Produce json
// @Security BearerAuth
// @Param submissionId path int true "提交ID"
// @Success 200 {object} util.Response
// @Router /api/submissions/{submissionId} [get]
func (c *QuizController) GetSubmission(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	submission, err := c.QuizService.GetSubmission(claims.UserID, util.MustParseUint(ctx.Param("submissionId")))
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, submission)
}

// ListQuizSubmissions godoc
// @Summary 测验全部提交（讲师）
// @Tags 测验
// @Produce json
// @Security BearerAuth
// @Param id path int true "测验ID"
// @Success 200 {object} util.Response
// @Router /api/instructor/quizzes/{id}/submissions [get]
func (c *QuizController) ListQuizSubmissions(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	submissions, err := c.QuizService.ListQuizSubmissions(claims.UserID, util.MustParseUint(ctx.Param("id")))
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, submissions)
}

type RegradeRequest struct {
	Points   float64 `json:"points" binding:"min=0"`
	Feedback string  `json:"feedback"`
}

// RegradeAnswer godoc
// @Summary 重判单题（讲师）
// @Description 改写得分与评语后重算整卷分数，不重复发成就事件
// @Tags 测验
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param submissionId path int true "提交ID"
// @Param answerId path int true "答案ID"
// @Param body body RegradeRequest true "评分"
// @Success 200 {object} util.Response
// @Failure 422 {object} util.Response "分值越界"
// @Router /api/instructor/submissions/{submissionId}/answers/{answerId}/grade [put]
func (c *QuizController) RegradeAnswer(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	var req RegradeRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	submission, err := c.QuizService.RegradeAnswer(claims.UserID, util.MustParseUint(ctx.Param("submissionId")), util.MustParseUint(ctx.Param("answerId")), req.Points, req.Feedback)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, submission)
}
