package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"webcam-motion/internal/application"
	"webcam-motion/internal/detection"
	"webcam-motion/internal/domain"
	"webcam-motion/internal/infrastructure/camera"
	"webcam-motion/internal/infrastructure/logger"
	"webcam-motion/internal/infrastructure/overlay"
	"webcam-motion/internal/infrastructure/streaming"
	"webcam-motion/internal/infrastructure/window"
	"webcam-motion/internal/infrastructure/zmqpub"
	"webcam-motion/internal/presentation/cli"
)

func main() {
	// Парсим окружение и флаги
	config, err := cli.LoadConfig(os.Args[1:])
	if err != nil {
		log.Fatalf("Ошибка конфигурации: %v", err)
	}

	// Инициализируем логгер
	stdLogger := logger.NewStdLogger(config.Debug)

	// Инициализируем инфраструктурные компоненты
	cameraManager := camera.NewSelector(camera.NewMediaDevicesManager(stdLogger))
	raster := overlay.NewRaster(config.Width, config.Height)
	surfaces := overlay.Fanout{raster}

	var opts []application.ServiceOption
	observers := []func(*domain.Frame){raster.ObserveFrame}
	var win *window.Window
	if config.Window {
		win = window.New("Микроскоп: детектор движения")
		surfaces = append(surfaces, win)
		observers = append(observers, win.ObserveFrame)
		opts = append(opts, application.WithServiceClock(win))
	}

	publishers, err := buildPublishers(config, stdLogger)
	if err != nil {
		log.Fatalf("Ошибка: %v", err)
	}

	detector, err := detection.New(config.DetectorConfig(), surfaces)
	if err != nil {
		log.Fatalf("Ошибка: %v", err)
	}

	// Инициализируем сервис приложения
	opts = append(opts,
		application.WithServiceSurface(surfaces),
		application.WithServiceFrameObserver(func(frame *domain.Frame) {
			for _, observe := range observers {
				observe(frame)
			}
		}),
		application.WithServiceRetryPolicy(config.RetryPolicy()),
		application.WithPublishers(publishers...),
	)
	service := application.NewMicroscopeService(cameraManager, detector, stdLogger, opts...)

	cliApp := cli.NewCLI(service, stdLogger, config)
	cliApp.SetSnapshotter(raster)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if win == nil {
		if err := cliApp.Run(ctx, os.Stdin, os.Stdout); err != nil {
			log.Fatalf("Ошибка: %v", err)
		}
		return
	}

	// Окно работает в главном потоке, консоль в отдельной горутине
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	consoleDone := make(chan error, 1)
	go func() {
		consoleDone <- cliApp.Run(ctx, os.Stdin, os.Stdout)
		win.Close()
	}()
	go func() {
		select {
		case <-win.Done():
			cancel()
		case <-ctx.Done():
			win.Close()
		}
	}()

	if err := win.Run(); err != nil {
		stdLogger.Error("Ошибка окна: %v", err)
	}
	cancel()
	if err := <-consoleDone; err != nil {
		log.Fatalf("Ошибка: %v", err)
	}
}

func buildPublishers(config *cli.Config, stdLogger *logger.StdLogger) ([]application.EventPublisher, error) {
	var publishers []application.EventPublisher

	if url := config.CollectorURL(); url != "" {
		ws, err := streaming.NewWebSocketPublisher(url, stdLogger, config.Debug)
		if err != nil {
			return nil, err
		}
		publishers = append(publishers, ws)
	}
	if config.ZMQEndpoint != "" {
		pub, err := zmqpub.NewZMQPublisher(config.ZMQEndpoint, stdLogger)
		if err != nil {
			return nil, err
		}
		publishers = append(publishers, pub)
	}
	if config.LogFile != "" {
		file, err := streaming.NewFilePublisher(config.LogFile)
		if err != nil {
			return nil, err
		}
		publishers = append(publishers, file)
	}
	return publishers, nil
}
