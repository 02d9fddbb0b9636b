package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/open-teleop/cleaner/domain/motion"
	"github.com/open-teleop/cleaner/domain/pose"
	"github.com/open-teleop/cleaner/pkg/api"
	"github.com/open-teleop/cleaner/pkg/config"
	customlog "github.com/open-teleop/cleaner/pkg/log"
	"github.com/open-teleop/cleaner/pkg/processing"
	"github.com/open-teleop/cleaner/pkg/zeromq"
	"github.com/open-teleop/cleaner/services"
)

func main() {
	configDir := flag.String("config", "./config", "Directory holding cleaner_config.yaml")
	startupManeuver := flag.String("maneuver", "", "Maneuver to queue once the controller is up (grid, spiral, home)")
	flag.Parse()

	bootstrapCfg, err := config.LoadBootstrapConfig(*configDir)
	if err != nil {
		log.Fatalf("Failed to load bootstrap config: %v", err)
	}

	appLogger, err := customlog.NewLogrusLogger(bootstrapCfg.Logging.Level, bootstrapCfg.Logging.LogPath)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	configService, err := services.NewMissionConfigService(bootstrapCfg.MissionConfigPath(), appLogger)
	if err != nil {
		appLogger.Fatalf("Failed to initialize mission config service: %v", err)
	}
	missionCfg := configService.GetCurrentConfig()
	appLogger.Infof("Mission config %s (version %s) for robot %s", missionCfg.ConfigID, missionCfg.Version, missionCfg.RobotID)

	zmqService, err := zeromq.NewZeroMQService(bootstrapCfg.ZeroMQ, appLogger)
	if err != nil {
		appLogger.Fatalf("Failed to initialize ZeroMQ service: %v", err)
	}
	configService.SetPublisher(zeromq.RegisterConfigHandlers(zmqService, configService, appLogger))

	topicRegistry := processing.NewTopicRegistry(appLogger)
	topicRegistry.LoadFromConfig(missionCfg)
	configService.OnUpdate(topicRegistry.LoadFromConfig)

	tracker := pose.NewTracker()
	poseListener, err := zmqService.NewPoseListener(missionCfg.Topics.Pose, tracker, topicRegistry)
	if err != nil {
		appLogger.Fatalf("Failed to subscribe to pose topic %s: %v", missionCfg.Topics.Pose, err)
	}

	commanders := func(cfg *config.Config) motion.Commander {
		return zeromq.NewTwistPublisher(zmqService, cfg.Topics.CmdVel, cfg.Limits, topicRegistry, appLogger)
	}
	missionService := services.NewMissionService(configService, tracker, commanders, nil, bootstrapCfg.Processing.QueueSize, appLogger)
	missionService.SetEventPublisher(zmqService)
	zeromq.NewMissionHandler(missionService, appLogger).Register(zmqService)

	if err := zmqService.Start(); err != nil {
		appLogger.Fatalf("Failed to start ZeroMQ service: %v", err)
	}
	zmqService.StartPoseListener(poseListener)
	missionService.Start()

	app := fiber.New(fiber.Config{
		AppName:      "Open-Teleop Cleaner",
		ErrorHandler: customErrorHandler,
	})
	app.Use(logger.New())
	app.Use(recover.New())

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":   "online",
			"service":  "open-teleop cleaner",
			"robot_id": configService.GetCurrentConfig().RobotID,
		})
	})
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "healthy"})
	})

	api.RegisterConfigRoutes(app, configService, appLogger)
	api.RegisterMissionRoutes(app, missionService, topicRegistry, appLogger)
	api.RegisterWebSocketRoutes(app, missionService, tracker, api.DefaultPoseStreamInterval, appLogger)

	go func() {
		addr := fmt.Sprintf(":%d", bootstrapCfg.Server.HTTPPort)
		appLogger.Infof("Server starting on %s", addr)
		if err := app.Listen(addr); err != nil {
			appLogger.Fatalf("Failed to start server: %v", err)
		}
	}()

	if *startupManeuver != "" {
		job, err := missionService.RunManeuver(*startupManeuver)
		if err != nil {
			appLogger.Errorf("Startup maneuver %s rejected: %v", *startupManeuver, err)
		} else {
			appLogger.Infof("Startup maneuver %s queued as job %s", job.Name, job.ID)
		}
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLogger.Infof("Shutting down...")

	// The worker publishes its final stop command before the sockets close.
	missionService.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(ctx); err != nil {
		appLogger.Errorf("Server forced to shutdown: %v", err)
	}
	zmqService.Stop()

	appLogger.Infof("Cleaner exited properly")
}

// Custom error handler
func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError

	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
	}

	return c.Status(code).JSON(fiber.Map{
		"error": err.Error(),
	})
}
