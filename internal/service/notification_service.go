package service

import (
	"context"
	"encoding/json"
	"fmt"
	"lms_backend/internal/model"
	"lms_backend/internal/repository"
	"lms_backend/pkg/logger"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// ModuleCompletedEvent 模块首次完成时发出
type ModuleCompletedEvent struct {
	UserID      uint   `json:"userId"`
	ModuleID    uint   `json:"moduleId"`
	ModuleTitle string `json:"moduleTitle"`
	CourseTitle string `json:"courseTitle"`
}

// CourseCompletedEvent 课程进度首次到达 100% 时发出
type CourseCompletedEvent struct {
	UserID      uint   `json:"userId"`
	CourseID    uint   `json:"courseId"`
	CourseTitle string `json:"courseTitle"`
}

// QuizCompletedEvent 测验交卷定稿时按提交发出，重判不会再次触发
type QuizCompletedEvent struct {
	UserID       uint    `json:"userId"`
	QuizID       uint    `json:"quizId"`
	SubmissionID uint    `json:"submissionId"`
	QuizTitle    string  `json:"quizTitle"`
	ContextTitle string  `json:"contextTitle"`
	Score        float64 `json:"score"`
	IsPassed     bool    `json:"isPassed"`
}

// EmittedEvent 本次操作实际发出的成就事件摘要，随响应返回
type EmittedEvent struct {
	Type  model.AchievementType `json:"type"`
	Key   string                `json:"key"`
	Title string                `json:"title"`
}

// AchievementNotifier 成就通知边界。每个 (用户, 成就) 至多投递一次，
// 返回值表示本次调用是否赢得了首次投递
type AchievementNotifier interface {
	NotifyModuleCompleted(ctx context.Context, ev ModuleCompletedEvent) (bool, error)
	NotifyCourseCompleted(ctx context.Context, ev CourseCompletedEvent) (bool, error)
	NotifyQuizCompleted(ctx context.Context, ev QuizCompletedEvent) (bool, error)
}

type NotificationService struct {
	NotificationRepo *repository.NotificationRepository
	Redis            *redis.Client
}

func NewNotificationService(notificationRepo *repository.NotificationRepository, redisClient *redis.Client) *NotificationService {
	return &NotificationService{
		NotificationRepo: notificationRepo,
		Redis:            redisClient,
	}
}

func unreadCacheKey(userID uint) string {
	return fmt.Sprintf("notify:unread:%d", userID)
}

// notifyOnce 先以唯一键抢占去重记录，抢占成功才写站内通知。
// 去重表是权威判定，通知写失败只记日志不回滚抢占
func (s *NotificationService) notifyOnce(ctx context.Context, userID uint, achType model.AchievementType, key, title, body string, payload interface{}) (bool, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return false, err
	}

	claimed, err := s.NotificationRepo.ClaimAchievement(&model.AchievementEvent{
		UserID:         userID,
		AchievementKey: key,
		Type:           achType,
		Payload:        string(raw),
	})
	if err != nil {
		return false, err
	}
	if !claimed {
		return false, nil
	}

	notification := &model.Notification{
		UserID: userID,
		Type:   achType,
		Title:  title,
		Body:   body,
	}
	if err := s.NotificationRepo.Create(notification); err != nil {
		logger.Log.Error("写入站内通知失败",
			zap.Uint("userID", userID),
			zap.String("key", key),
			zap.Error(err))
		return true, nil
	}

	if s.Redis != nil {
		if err := s.Redis.Incr(ctx, unreadCacheKey(userID)).Err(); err != nil {
			logger.Log.Warn("未读计数缓存更新失败", zap.Error(err))
		}
	}
	return true, nil
}

func (s *NotificationService) NotifyModuleCompleted(ctx context.Context, ev ModuleCompletedEvent) (bool, error) {
	key := fmt.Sprintf("module_completed:%d", ev.ModuleID)
	body := fmt.Sprintf("你已完成《%s》中的模块「%s」", ev.CourseTitle, ev.ModuleTitle)
	return s.notifyOnce(ctx, ev.UserID, model.ModuleCompleted, key, "模块完成", body, ev)
}

func (s *NotificationService) NotifyCourseCompleted(ctx context.Context, ev CourseCompletedEvent) (bool, error) {
	key := fmt.Sprintf("course_completed:%d", ev.CourseID)
	body := fmt.Sprintf("恭喜！你已完成课程《%s》的全部模块", ev.CourseTitle)
	return s.notifyOnce(ctx, ev.UserID, model.CourseCompleted, key, "课程完成", body, ev)
}

func (s *NotificationService) NotifyQuizCompleted(ctx context.Context, ev QuizCompletedEvent) (bool, error) {
	// 按提交去重：同一次提交只通知一次，新的 attempt 是新事件
	key := fmt.Sprintf("quiz_completed:submission:%d", ev.SubmissionID)
	verdict := "未通过"
	if ev.IsPassed {
		verdict = "已通过"
	}
	body := fmt.Sprintf("测验「%s」（%s）已交卷，得分 %.2f，%s", ev.QuizTitle, ev.ContextTitle, ev.Score, verdict)
	return s.notifyOnce(ctx, ev.UserID, model.QuizCompleted, key, "测验完成", body, ev)
}

// ListNotifications 分页获取用户通知
func (s *NotificationService) ListNotifications(userID uint, page, limit int) ([]model.Notification, int64, error) {
	return s.NotificationRepo.ListByUser(userID, page, limit)
}

func (s *NotificationService) MarkRead(userID, notificationID uint) error {
	if err := s.NotificationRepo.MarkRead(userID, notificationID); err != nil {
		return err
	}
	s.invalidateUnreadCache(userID)
	return nil
}

func (s *NotificationService) MarkAllRead(userID uint) error {
	if err := s.NotificationRepo.MarkAllRead(userID); err != nil {
		return err
	}
	s.invalidateUnreadCache(userID)
	return nil
}

// UnreadCount 未读数，优先走缓存，缓存缺失时回源并回填
func (s *NotificationService) UnreadCount(ctx context.Context, userID uint) (int64, error) {
	if s.Redis != nil {
		cached, err := s.Redis.Get(ctx, unreadCacheKey(userID)).Int64()
		if err == nil {
			return cached, nil
		}
	}

	count, err := s.NotificationRepo.CountUnread(userID)
	if err != nil {
		return 0, err
	}
	if s.Redis != nil {
		if err := s.Redis.Set(ctx, unreadCacheKey(userID), count, 10*time.Minute).Err(); err != nil {
			logger.Log.Warn("未读计数缓存回填失败", zap.Error(err))
		}
	}
	return count, nil
}

func (s *NotificationService) invalidateUnreadCache(userID uint) {
	if s.Redis == nil {
		return
	}
	if err := s.Redis.Del(context.Background(), unreadCacheKey(userID)).Err(); err != nil {
		logger.Log.Warn("未读计数缓存清理失败", zap.Error(err))
	}
}
