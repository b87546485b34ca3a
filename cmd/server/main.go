// Package main 是应用程序的入口点。
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"quiz-bot-go/internal/config"
	"quiz-bot-go/internal/dispatcher"
	"quiz-bot-go/internal/handler"
	"quiz-bot-go/internal/middleware"
	"quiz-bot-go/internal/pipeline"
	"quiz-bot-go/internal/quiz"
	"quiz-bot-go/internal/repository"
	"quiz-bot-go/internal/service"
	"quiz-bot-go/internal/transport"
	"quiz-bot-go/pkg/database"
	"quiz-bot-go/pkg/es"
	"quiz-bot-go/pkg/hash"
	"quiz-bot-go/pkg/kafka"
	"quiz-bot-go/pkg/log"
	"quiz-bot-go/pkg/storage"
	"quiz-bot-go/pkg/token"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := flag.String("config", "./configs/config.yaml", "配置文件路径")
	hashPassword := flag.String("hash-password", "", "输出给定明文的 bcrypt 哈希后退出，用于填写 admin.password_hash")
	flag.Parse()

	if *hashPassword != "" {
		hashed, err := hash.HashPassword(*hashPassword)
		if err != nil {
			fmt.Fprintf(os.Stderr, "生成哈希失败: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(hashed)
		return
	}

	// 1. 初始化配置
	config.Init(*configPath)
	cfg := config.Conf

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync() // 确保在程序退出时刷新所有缓冲的日志条目
	log.Info("日志记录器初始化成功")

	// 3. 初始化数据库和 Redis
	database.InitDB(cfg.Database)
	database.InitRedis(cfg.Database.Redis)

	// 4. 可选的外部组件：Elasticsearch 用于事件检索，MinIO 用于发布导出文件
	var indexer pipeline.EventIndexer
	var searcher service.EventSearcher
	if cfg.Elasticsearch.Enabled {
		if err := es.InitES(cfg.Elasticsearch); err != nil {
			log.Errorf("es 初始化失败，事件检索不可用: %v", err)
		} else {
			index := es.NewEventIndex(cfg.Elasticsearch.IndexName)
			indexer, searcher = index, index
		}
	}
	var objects service.ObjectStore
	if cfg.MinIO.Enabled {
		storage.InitMinIO(cfg.MinIO)
		objects = storage.NewBucket(cfg.MinIO.BucketName)
	}

	// 5. 初始化 Repository
	store := repository.NewStore(database.DB)
	conversationRepo := repository.NewConversationRepository(database.RDB, cfg.Quiz.TranscriptLimit)
	dedupRepo := repository.NewDedupRepository(database.RDB, cfg.Quiz.DedupTTL)

	// 6. 分析事件管道：启用 Kafka 时异步投递，由消费者落库；否则同步落库
	processor := pipeline.NewProcessor(store.Analytics(), indexer)
	var sink service.AnalyticsSink
	var producer *kafka.Producer
	if cfg.Kafka.Enabled {
		producer = kafka.NewProducer(cfg.Kafka)
		sink = service.NewKafkaSink(producer, 5*time.Second)
	} else {
		sink = service.NewDirectSink(processor)
	}

	// 7. 初始化 Service (依赖注入)
	catalog := quiz.DefaultCatalog()
	jwtManager := token.NewJWTManager(cfg.JWT.Secret, cfg.JWT.AccessTokenExpireHours, cfg.JWT.RefreshTokenExpireDays)
	conversationService := service.NewConversationService(conversationRepo)
	quizEngine := service.NewQuizEngine(store, catalog, sink, conversationService)
	authService := service.NewAuthService(cfg.Admin, jwtManager, database.RDB)
	reportService := service.NewReportService(store, conversationService, searcher)
	exportService := service.NewExportService(store, catalog.QuestionCount(), objects,
		time.Duration(cfg.MinIO.PresignExpireMinutes)*time.Minute)

	// 8. 聊天通道：优先走 WebSocket，用户不在线时回退到 webhook
	hub := transport.NewHub()
	var fallback transport.Sender
	if cfg.Transport.WebhookURL != "" {
		fallback = transport.NewWebhookSender(cfg.Transport.WebhookURL, cfg.Transport.SendTimeout)
	}
	sender := transport.NewFallbackSender(hub, fallback)

	disp := dispatcher.New(quizEngine, sender, dedupRepo, dispatcher.Config{
		Workers:     cfg.Quiz.Workers,
		QueueSize:   cfg.Quiz.QueueSize,
		SendTimeout: cfg.Transport.SendTimeout,
	})
	dropoffService := service.NewDropoffService(store, sink, disp, service.DropoffConfig{
		IdleTimeout:   cfg.Quiz.IdleTimeout,
		SweepInterval: cfg.Quiz.SweepInterval,
		BatchSize:     cfg.Quiz.SweepBatch,
	})

	// 9. 设置 Gin 模式并创建路由引擎
	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(middleware.RequestLogger(), gin.Recovery())
	registerRoutes(r, routeDeps{
		jwtManager:    jwtManager,
		authService:   authService,
		reports:       reportService,
		exports:       exportService,
		conversations: conversationService,
		hub:           hub,
		inbound:       disp,
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	// 10. 启动后台任务和 HTTP 服务器，收到停机信号后统一退出
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return disp.Run(gctx) })
	g.Go(func() error { return dropoffService.Run(gctx) })
	if cfg.Kafka.Enabled {
		g.Go(func() error { return kafka.StartConsumer(gctx, cfg.Kafka, processor, database.RDB) })
	}
	g.Go(func() error {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP 服务监听失败: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("接收到停机信号，正在关闭服务...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Errorf("服务异常退出: %v", err)
	}
	if producer != nil {
		if err := producer.Close(); err != nil {
			log.Errorf("关闭 Kafka 生产者失败: %v", err)
		}
	}
	log.Info("服务已优雅关闭")
}

type routeDeps struct {
	jwtManager    *token.JWTManager
	authService   service.AuthService
	reports       service.ReportService
	exports       service.ExportService
	conversations service.ConversationService
	hub           *transport.Hub
	inbound       transport.Inbound
}

func registerRoutes(r *gin.Engine, d routeDeps) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// 聊天通道 (WebSocket)，路径参数为用户手机号
	r.GET("/chat/:userId", handler.NewChatHandler(d.hub, d.inbound).Handle)

	authHandler := handler.NewAuthHandler(d.authService)
	adminHandler := handler.NewAdminHandler(d.reports, d.exports)
	conversationHandler := handler.NewConversationHandler(d.conversations, d.reports)
	authRequired := middleware.AuthMiddleware(d.jwtManager, d.authService)

	apiV1 := r.Group("/api/v1")
	{
		// 聊天平台 webhook 入口
		apiV1.POST("/messages", handler.NewMessageHandler(d.inbound).Receive)

		auth := apiV1.Group("/auth")
		{
			auth.POST("/login", authHandler.Login)
			auth.POST("/refreshToken", authHandler.RefreshToken)
			auth.POST("/logout", authRequired, authHandler.Logout)
		}

		// 管理员路由组，需要同时通过认证和管理员授权两个中间件
		admin := apiV1.Group("/admin")
		admin.Use(authRequired, middleware.AdminAuthMiddleware())
		{
			admin.GET("/sessions", adminHandler.ListSessions)
			admin.GET("/sessions/:id", adminHandler.GetSession)
			admin.GET("/responses", adminHandler.ListResponses)
			admin.GET("/recommendations", adminHandler.ListRecommendations)

			analytics := admin.Group("/analytics")
			{
				analytics.GET("/stats", adminHandler.GetStats)
				analytics.GET("/events", adminHandler.ListEvents)
				analytics.GET("/events/search", adminHandler.SearchEvents)
			}

			export := admin.Group("/export")
			{
				export.GET("/:format", adminHandler.Export)
				export.POST("/:format/publish", adminHandler.PublishExport)
			}

			admin.GET("/conversations", conversationHandler.ListConversations)
			admin.GET("/conversations/:phone", conversationHandler.GetConversation)
		}
	}
}
