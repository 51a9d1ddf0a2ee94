package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"webcam-motion/internal/application"
	"webcam-motion/internal/domain"
	"webcam-motion/internal/infrastructure/codec"
)

const helpText = `Команды:
  threshold N   порог разницы каналов
  minpixels N   минимум сдвинутых пикселей
  open          открыть камеру и запустить детекцию
  close         остановить детекцию и освободить камеру
  status        статус и параметры
  stats         счетчики цикла детекции
  log           журнал событий
  export PATH   сохранить журнал событий в CBOR файл
  snapshot PATH сохранить оверлей в PNG
  quit          выход`

// Snapshotter сохраняет текущий оверлей
type Snapshotter interface {
	SavePNG(path string) error
}

// CLI представляет CLI интерфейс приложения
type CLI struct {
	service     *application.MicroscopeService
	logger      application.Logger
	config      *Config
	snapshotter Snapshotter
}

// NewCLI создает новый CLI интерфейс
func NewCLI(service *application.MicroscopeService, logger application.Logger, config *Config) *CLI {
	return &CLI{
		service: service,
		logger:  logger,
		config:  config,
	}
}

// SetSnapshotter задает поверхность для команды snapshot
func (c *CLI) SetSnapshotter(s Snapshotter) {
	c.snapshotter = s
}

// Run запускает CLI: команды оператора читаются из in построчно до quit,
// конца ввода или отмены контекста.
func (c *CLI) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	// Если нужно вывести список устройств
	if c.config.ListDevices {
		return c.listDevices(out)
	}
	defer func() {
		if err := c.service.Close(); err != nil {
			c.logger.Error("Ошибка при завершении: %v", err)
		}
	}()

	if c.config.Open {
		c.open(out)
	} else {
		fmt.Fprintln(out, c.service.Status())
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Прерывание получено, закрытие...")
			return nil
		case line, ok := <-lines:
			if !ok {
				// Ввод закончился: детекция продолжается до сигнала
				if c.config.Open {
					<-ctx.Done()
					c.logger.Info("Прерывание получено, закрытие...")
				}
				return nil
			}
			if quit := c.execute(line, out); quit {
				return nil
			}
		}
	}
}

// execute выполняет одну команду оператора. Возвращает true для выхода.
func (c *CLI) execute(line string, out io.Writer) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}

	name, args := strings.ToLower(fields[0]), fields[1:]
	switch name {
	case "threshold", "minpixels":
		value, err := parseCount(args)
		if err != nil {
			fmt.Fprintf(out, "%s: %v\n", name, err)
			return false
		}
		config := c.service.Config()
		if name == "threshold" {
			config.Threshold = value
		} else {
			config.MinPixels = value
		}
		if err := c.service.Configure(config.Threshold, config.MinPixels); err != nil {
			fmt.Fprintf(out, "%s: %v\n", name, err)
			return false
		}
		fmt.Fprintln(out, c.service.Status())
	case "open":
		c.open(out)
	case "close":
		if err := c.service.StopCapture(); err != nil {
			fmt.Fprintln(out, err)
			return false
		}
		fmt.Fprintln(out, c.service.Status())
	case "status":
		config := c.service.Config()
		fmt.Fprintf(out, "%s | threshold: %d, minpixels: %d\n", c.service.Status(), config.Threshold, config.MinPixels)
	case "stats":
		s := c.service.Stats()
		fmt.Fprintf(out, "кадров: %d, сравнений: %d, событий: %d, пропущено тактов: %d, ожиданий старта: %d\n",
			s.Frames, s.Comparisons, s.Detections, s.Skipped, s.Retries)
	case "log":
		printDetections(out, c.service.Detections())
	case "export":
		if len(args) != 1 {
			fmt.Fprintln(out, "export: укажите путь к файлу")
			return false
		}
		events := c.service.Detections()
		if err := codec.WriteLogFile(args[0], events); err != nil {
			fmt.Fprintf(out, "export: %v\n", err)
			return false
		}
		fmt.Fprintf(out, "Сохранено событий: %d в %s\n", len(events), args[0])
	case "snapshot":
		if len(args) != 1 {
			fmt.Fprintln(out, "snapshot: укажите путь к файлу")
			return false
		}
		if c.snapshotter == nil {
			fmt.Fprintln(out, "snapshot: оверлей недоступен")
			return false
		}
		if err := c.snapshotter.SavePNG(args[0]); err != nil {
			fmt.Fprintf(out, "snapshot: %v\n", err)
			return false
		}
		fmt.Fprintf(out, "Оверлей сохранен: %s\n", args[0])
	case "help":
		fmt.Fprintln(out, helpText)
	case "quit", "exit":
		return true
	default:
		fmt.Fprintf(out, "Неизвестная команда %q, введите help\n", name)
	}
	return false
}

func (c *CLI) open(out io.Writer) {
	err := c.service.StartCapture(c.config.VideoConfig())
	var acqErr *domain.AcquisitionError
	if errors.As(err, &acqErr) {
		fmt.Fprintf(out, "%s. Введите open, чтобы повторить\n", c.service.Status())
		return
	}
	if err != nil {
		fmt.Fprintln(out, err)
		return
	}
	fmt.Fprintln(out, c.service.Status())
}

// listDevices выводит список доступных устройств
func (c *CLI) listDevices(out io.Writer) error {
	devices, err := c.service.ListDevices()
	if err != nil {
		return err
	}

	fmt.Fprintln(out, "Доступные устройства:")
	for i, device := range devices {
		fmt.Fprintf(out, "[%d] %s (%s) id=%s\n", i, device.Label, device.Kind, device.ID)
	}

	return nil
}

func parseCount(args []string) (int, error) {
	if len(args) != 1 {
		return 0, errors.New("ожидается одно число")
	}
	value, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, fmt.Errorf("не число: %q", args[0])
	}
	if value < 0 {
		return 0, fmt.Errorf("значение не может быть отрицательным: %d", value)
	}
	return value, nil
}

func printDetections(out io.Writer, events []domain.DetectionEvent) {
	if len(events) == 0 {
		fmt.Fprintln(out, "Событий нет")
		return
	}
	for _, e := range events {
		fmt.Fprintf(out, "%s  центр (%.1f, %.1f)  пикселей: %d\n",
			e.Time.Format("15:04:05"), e.Centroid.X, e.Centroid.Y, e.Pixels)
	}
}
