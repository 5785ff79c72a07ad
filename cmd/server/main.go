// Package main — точка входа приложения.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tender-kb-go/internal/config"
	"tender-kb-go/internal/handler"
	"tender-kb-go/internal/middleware"
	"tender-kb-go/internal/model"
	"tender-kb-go/internal/pipeline"
	"tender-kb-go/internal/repository"
	"tender-kb-go/internal/service"
	"tender-kb-go/pkg/database"
	"tender-kb-go/pkg/es"
	"tender-kb-go/pkg/kafka"
	"tender-kb-go/pkg/log"
	"tender-kb-go/pkg/storage"
	"tender-kb-go/pkg/token"

	"github.com/gin-gonic/gin"
)

func main() {
	// 1. Конфигурация
	config.Init("./configs/config.yaml")
	cfg := config.Conf

	// 2. Журналирование
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync()
	log.Info("Журналирование инициализировано")

	// 3. Инфраструктура: MySQL, Redis, MinIO, Elasticsearch, Kafka
	database.InitMySQL(cfg.Database.MySQL.DSN)
	database.InitRedis(cfg.Database.Redis.Addr, cfg.Database.Redis.Password, cfg.Database.Redis.DB)
	storage.InitMinIO(cfg.MinIO)
	if err := es.InitES(cfg.Elasticsearch); err != nil {
		log.Errorf("Не удалось инициализировать Elasticsearch: %s", err)
		return
	}
	kafka.InitProducer(cfg.Kafka)

	// 4. Миграция схемы базы данных
	if err := database.DB.AutoMigrate(
		&model.User{},
		&model.Stage{},
		&model.StageTransition{},
		&model.Tender{},
		&model.TenderFile{},
		&model.Position{},
		&model.AuditLog{},
		&model.NomenclatureNode{},
		&model.NomenclatureNodeVersion{},
		&model.NomenclatureAttributePreset{},
		&model.NomenclatureClassSchema{},
		&model.ClassSchemaPreset{},
		&model.ClassAttributeRevision{},
	); err != nil {
		log.Fatalf("Миграция базы данных завершилась ошибкой: %v", err)
	}

	// 5. Репозитории
	userRepo := repository.NewUserRepository(database.DB)
	tenderRepo := repository.NewTenderRepository(database.DB)
	positionRepo := repository.NewPositionRepository(database.DB)
	auditRepo := repository.NewAuditRepository(database.DB)
	nodeRepo := repository.NewNodeRepository(database.DB)
	schemaRepo := repository.NewSchemaRepository(database.DB)
	presetRepo := repository.NewPresetRepository(database.DB)

	// 6. Сервисы
	jwtManager := token.NewJWTManager(cfg.JWT.Secret, cfg.JWT.AccessTokenExpireHours, cfg.JWT.RefreshTokenExpireDays)
	userService := service.NewUserService(userRepo, jwtManager)
	auditService := service.NewAuditService(auditRepo)
	registryService := service.NewRegistryService(nodeRepo, schemaRepo)
	tenderService := service.NewTenderService(tenderRepo, positionRepo, auditService)
	positionService := service.NewPositionService(positionRepo, registryService, auditService)
	fileService := service.NewFileService(tenderRepo, auditService, cfg.MinIO)
	nodeService := service.NewNodeService(nodeRepo, auditService)
	schemaService := service.NewSchemaService(schemaRepo, nodeRepo, presetRepo, registryService, auditService)
	presetService := service.NewPresetService(presetRepo)
	searchService := service.NewSearchService(es.ESClient, cfg.Elasticsearch.IndexName)

	// 7. Наполнение справочников
	if err := tenderService.SeedStages(); err != nil {
		log.Fatalf("Не удалось наполнить справочник стадий: %v", err)
	}
	seedAdmin(userService)

	// 8. Фоновый потребитель задач индексации
	processor := pipeline.NewProcessor(cfg.Elasticsearch, tenderRepo, positionRepo)
	go kafka.StartConsumer(cfg.Kafka, processor)

	// 9. HTTP-маршруты
	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(middleware.RequestLogger(), gin.Recovery())

	authHandler := handler.NewAuthHandler(userService)
	userHandler := handler.NewUserHandler(userService)
	tenderHandler := handler.NewTenderHandler(tenderService, positionService, fileService, auditService)
	nomenclatureHandler := handler.NewNomenclatureHandler(nodeService, schemaService, presetService, registryService)
	searchHandler := handler.NewSearchHandler(searchService)
	auditHandler := handler.NewAuditHandler(auditService)

	authRequired := middleware.AuthMiddleware(jwtManager, userService)
	adminRequired := middleware.AdminAuthMiddleware()

	apiV1 := r.Group("/api/v1")
	{
		auth := apiV1.Group("/auth")
		{
			auth.POST("/login", authHandler.Login)
			auth.POST("/refresh", authHandler.Refresh)
			auth.POST("/logout", authRequired, authHandler.Logout)
		}

		users := apiV1.Group("/users", authRequired)
		{
			users.GET("/me", userHandler.GetProfile)
			users.POST("/me/password", userHandler.ChangePassword)

			users.GET("", adminRequired, userHandler.ListUsers)
			users.POST("", adminRequired, userHandler.Register)
			users.PATCH("/:id/active", adminRequired, userHandler.SetActive)
		}

		apiV1.GET("/stages", authRequired, tenderHandler.ListStages)

		tenders := apiV1.Group("/tenders", authRequired)
		{
			tenders.POST("", tenderHandler.Create)
			tenders.GET("", tenderHandler.List)
			tenders.GET("/:id", tenderHandler.Get)
			tenders.PATCH("/:id", tenderHandler.Update)
			tenders.POST("/:id/stage", tenderHandler.ChangeStage)
			tenders.POST("/:id/responsible", tenderHandler.AssignResponsible)
			tenders.POST("/:id/engineer", tenderHandler.AssignEngineer)
			tenders.POST("/:id/archive", tenderHandler.Archive)
			tenders.GET("/:id/audit", tenderHandler.ListAudit)

			tenders.POST("/:id/files", tenderHandler.UploadFile)
			tenders.GET("/:id/files", tenderHandler.ListFiles)
			tenders.GET("/:id/files/:fileId/download", tenderHandler.DownloadFile)
			tenders.DELETE("/:id/files/:fileId", tenderHandler.DeleteFile)

			tenders.POST("/:id/positions", tenderHandler.CreatePosition)
			tenders.GET("/:id/positions", tenderHandler.ListPositions)
			tenders.PATCH("/:id/positions/:positionId", tenderHandler.UpdatePosition)
			tenders.POST("/:id/positions/:positionId/status", tenderHandler.SetPositionStatus)
			tenders.DELETE("/:id/positions/:positionId", tenderHandler.DeletePosition)
		}

		nomenclature := apiV1.Group("/nomenclature", authRequired)
		{
			nodes := nomenclature.Group("/nodes")
			{
				nodes.GET("", nomenclatureHandler.ListNodes)
				nodes.GET("/tree", nomenclatureHandler.Tree)
				nodes.GET("/:id", nomenclatureHandler.GetNode)
				nodes.GET("/:id/versions", nomenclatureHandler.ListNodeVersions)
				nodes.GET("/:id/effective-schema", nomenclatureHandler.EffectiveSchema)
				nodes.GET("/:id/schemas", nomenclatureHandler.ListSchemaVersions)
				nodes.GET("/:id/schemas/:version/diff", nomenclatureHandler.GetSchemaDiff)

				nodes.POST("", adminRequired, nomenclatureHandler.CreateNode)
				nodes.PATCH("/:id", adminRequired, nomenclatureHandler.UpdateNode)
				nodes.POST("/:id/archive", adminRequired, nomenclatureHandler.ArchiveNode)
				nodes.POST("/:id/schemas", adminRequired, nomenclatureHandler.CreateSchemaVersion)
				nodes.POST("/:id/schemas/:version/publish", adminRequired, nomenclatureHandler.PublishSchemaVersion)
			}

			presets := nomenclature.Group("/presets")
			{
				presets.GET("", nomenclatureHandler.ListPresets)
				presets.GET("/:id", nomenclatureHandler.GetPreset)
				presets.POST("", adminRequired, nomenclatureHandler.CreatePreset)
				presets.PATCH("/:id", adminRequired, nomenclatureHandler.UpdatePreset)
				presets.POST("/:id/publish", adminRequired, nomenclatureHandler.PublishPreset)
				presets.DELETE("/:id", adminRequired, nomenclatureHandler.ArchivePreset)
			}
		}

		apiV1.GET("/search", authRequired, searchHandler.Search)
		apiV1.GET("/audit", authRequired, adminRequired, auditHandler.ListByEntity)
	}

	// Запуск HTTP-сервера с плавной остановкой
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("Сервис запущен на %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Ошибка HTTP-сервера: %s", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Получен сигнал остановки, завершаем работу...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Не удалось корректно остановить HTTP-сервер: %v", err)
	}
	log.Info("Сервис остановлен")
}

// seedAdmin создаёт учётную запись администратора при первом запуске.
// Пароль необходимо сменить после входа.
func seedAdmin(userService service.UserService) {
	user, err := userService.Register("admin", "admin12345", "Администратор")
	if err != nil {
		if errors.Is(err, service.ErrUserExists) {
			return
		}
		log.Warnf("Не удалось создать администратора: %v", err)
		return
	}
	user.Role = model.RoleAdmin
	if err := database.DB.Save(user).Error; err != nil {
		log.Warnf("Не удалось назначить роль администратора: %v", err)
		return
	}
	log.Info("Создана учётная запись администратора admin")
}
