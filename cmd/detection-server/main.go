package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"webcam-motion/internal/collector"
	"webcam-motion/internal/infrastructure/logger"
)

func main() {
	// Парсинг флагов командной строки
	port := flag.Int("port", 8080, "порт для запуска сервера")
	outputDir := flag.String("output", "recordings", "директория для сохранения журналов событий")
	debug := flag.Bool("debug", false, "включить отладочные сообщения")
	flag.Parse()

	stdLogger := logger.NewWriterLogger(os.Stderr, "collector ", *debug)
	srv := collector.NewServer(*outputDir, stdLogger)

	addr := fmt.Sprintf(":%d", *port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		stdLogger.Info("Остановка сервера...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			stdLogger.Error("Ошибка остановки: %v", err)
		}
	}()

	// Запускаем HTTP-сервер
	stdLogger.Info("Запуск сервера на порту %d...", *port)
	stdLogger.Info("Статус сервера доступен по адресу http://localhost%s", addr)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
}
