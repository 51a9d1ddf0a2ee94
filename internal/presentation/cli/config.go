package cli

import (
	"errors"
	"flag"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"webcam-motion/internal/application"
	"webcam-motion/internal/domain"
)

// Config представляет конфигурацию CLI. Значения по умолчанию берутся из окружения.
type Config struct {
	Threshold     int           `env:"MICROSCOPE_THRESHOLD" envDefault:"35"`
	MinPixels     int           `env:"MICROSCOPE_MIN_PIXELS" envDefault:"300"`
	Width         int           `env:"MICROSCOPE_WIDTH" envDefault:"640"`
	Height        int           `env:"MICROSCOPE_HEIGHT" envDefault:"480"`
	FPS           int           `env:"MICROSCOPE_FPS" envDefault:"30"`
	DeviceID      string        `env:"MICROSCOPE_DEVICE"`
	RetryInterval time.Duration `env:"MICROSCOPE_RETRY_INTERVAL" envDefault:"500ms"`
	RetryAttempts int           `env:"MICROSCOPE_RETRY_ATTEMPTS" envDefault:"0"`
	Address       string        `env:"MICROSCOPE_COLLECTOR_ADDR"`
	ZMQEndpoint   string        `env:"MICROSCOPE_ZMQ_ENDPOINT"`
	LogFile       string        `env:"MICROSCOPE_LOG_FILE"`
	Window        bool          `env:"MICROSCOPE_WINDOW"`
	Open          bool          `env:"MICROSCOPE_OPEN"`
	Debug         bool          `env:"MICROSCOPE_DEBUG"`
	ListDevices   bool
}

// LoadConfig читает окружение и затем флаги командной строки
func LoadConfig(args []string) (*Config, error) {
	config := &Config{}
	if err := env.Parse(config); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	fs := flag.NewFlagSet("microscope", flag.ContinueOnError)
	fs.IntVar(&config.Threshold, "threshold", config.Threshold, "минимальная сумма разниц RGB для сдвинутого пикселя")
	fs.IntVar(&config.MinPixels, "min-pixels", config.MinPixels, "событие, только если сдвинутых пикселей больше")
	fs.IntVar(&config.Width, "width", config.Width, "ширина видео")
	fs.IntVar(&config.Height, "height", config.Height, "высота видео")
	fs.IntVar(&config.FPS, "fps", config.FPS, "частота кадров")
	fs.StringVar(&config.DeviceID, "device", config.DeviceID, "ID устройства камеры (synthetic - генератор кадров)")
	fs.DurationVar(&config.RetryInterval, "retry-interval", config.RetryInterval, "интервал ожидания готовности видео")
	fs.IntVar(&config.RetryAttempts, "retry-attempts", config.RetryAttempts, "число попыток ожидания видео (0 - без ограничения)")
	fs.StringVar(&config.Address, "addr", config.Address, "адрес сервера-сборщика событий (host:port)")
	fs.StringVar(&config.ZMQEndpoint, "zmq", config.ZMQEndpoint, "ZMQ endpoint для публикации событий, например tcp://*:5556")
	fs.StringVar(&config.LogFile, "log-file", config.LogFile, "файл CBOR журнала событий")
	fs.BoolVar(&config.Window, "window", config.Window, "показывать окно с видео и маркером")
	fs.BoolVar(&config.Open, "open", config.Open, "открыть камеру сразу при запуске")
	fs.BoolVar(&config.Debug, "debug", config.Debug, "включить отладочные сообщения")
	fs.BoolVar(&config.ListDevices, "list-devices", false, "показать список доступных камер и выйти")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate проверяет конфигурацию
func (c *Config) Validate() error {
	if err := c.DetectorConfig().Validate(); err != nil {
		return err
	}
	if c.FPS <= 0 {
		return errors.New("fps должен быть положительным")
	}
	if c.RetryInterval <= 0 {
		return errors.New("retry-interval должен быть положительным")
	}
	if c.RetryAttempts < 0 {
		return errors.New("retry-attempts не может быть отрицательным")
	}
	return nil
}

// DetectorConfig возвращает начальные параметры детектора
func (c *Config) DetectorConfig() domain.DetectorConfig {
	return domain.DetectorConfig{Threshold: c.Threshold, MinPixels: c.MinPixels}
}

// VideoConfig возвращает параметры захвата
func (c *Config) VideoConfig() domain.VideoConfig {
	return domain.VideoConfig{
		Width:     c.Width,
		Height:    c.Height,
		FrameRate: c.FPS,
		DeviceID:  c.DeviceID,
	}
}

// RetryPolicy возвращает политику ожидания первого кадра
func (c *Config) RetryPolicy() application.RetryPolicy {
	return application.RetryPolicy{Interval: c.RetryInterval, MaxAttempts: c.RetryAttempts}
}

// CollectorURL возвращает URL сборщика или пустую строку
func (c *Config) CollectorURL() string {
	if c.Address == "" {
		return ""
	}
	return fmt.Sprintf("ws://%s/ws", c.Address)
}
