// 手动触发全量进度回填脚本
//
// 模块上下架、资源必修标志批量调整或历史数据导入后，已落库的
// 聚合进度可能过期。此脚本为所有选课关系重算模块完成度与课程
// 进度（沿用服务层的级联逻辑，成就事件照常去重，不会重复通知）。
//
// 用法: go run scripts/backfill_progress.go

package main

import (
	"context"
	"lms_backend/internal/config"
	"lms_backend/internal/model"
	"lms_backend/internal/repository"
	"lms_backend/internal/service"
	"lms_backend/pkg/database"
	"lms_backend/pkg/logger"
	"log"
	"os"

	"gopkg.in/yaml.v3"
)

func main() {
	data, err := os.ReadFile("configs/config.yaml")
	if err != nil {
		log.Fatalf("无法读取配置文件: %v", err)
	}

	var cfg config.Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		log.Fatalf("解析配置文件失败: %v", err)
	}

	logger.InitLogger(&cfg)

	db, err := database.InitDB(&cfg.Database)
	if err != nil {
		log.Fatalf("数据库连接失败: %v", err)
	}

	progressRepo := repository.NewProgressRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	// 脚本场景不依赖 Redis，未读计数缓存留给服务端回源修正
	notifier := service.NewNotificationService(notificationRepo, nil)
	progress := service.NewProgressService(progressRepo, courseRepo, enrollmentRepo, notifier)

	var enrollments []model.Enrollment
	if err := db.Find(&enrollments).Error; err != nil {
		log.Fatalf("读取选课关系失败: %v", err)
	}

	log.Printf("开始回填 %d 条选课进度...", len(enrollments))
	ctx := context.Background()
	failed := 0
	for _, e := range enrollments {
		modules, err := courseRepo.ListPublishedModules(e.CourseID)
		if err != nil {
			log.Printf("课程 %d 模块读取失败: %v", e.CourseID, err)
			failed++
			continue
		}
		for _, m := range modules {
			if _, err := progress.ReevaluateModule(ctx, e.UserID, m.ID); err != nil {
				log.Printf("用户 %d 模块 %d 重算失败: %v", e.UserID, m.ID, err)
				failed++
			}
		}
	}

	if failed > 0 {
		log.Printf("完成，失败 %d 项", failed)
		return
	}
	log.Println("完成！")
}
