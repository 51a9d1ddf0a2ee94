// Package collector принимает события обнаружения от детекторов по WebSocket
// и сохраняет их в CBOR журналы, по одному файлу на подключение.
package collector

import (
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"webcam-motion/internal/application"
	"webcam-motion/internal/domain"
	"webcam-motion/internal/infrastructure/codec"
)

const (
	readLimit = 1 << 16
	pongWait  = 60 * time.Second
)

// EventWriter сохраняет события одной сессии в файл
type EventWriter struct {
	writer   *codec.LogWriter
	filePath string
	logger   application.Logger
}

// NewEventWriter создает журнал сессии в outputDir
func NewEventWriter(outputDir string, now time.Time, logger application.Logger) (*EventWriter, error) {
	// Создаем директорию, если она не существует
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию: %w", err)
	}

	// Генерируем имя файла на основе текущего времени
	timestamp := now.Format("2006-01-02_15-04-05")
	filePath := filepath.Join(outputDir, fmt.Sprintf("detections_%s.cbor", timestamp))

	writer, err := codec.CreateLog(filePath)
	if err != nil {
		return nil, err
	}

	logger.Info("Запись в файл: %s", filePath)

	return &EventWriter{writer: writer, filePath: filePath, logger: logger}, nil
}

// Write дописывает событие
func (ew *EventWriter) Write(event domain.DetectionEvent) error {
	return ew.writer.Write(event)
}

// Path возвращает путь к файлу журнала
func (ew *EventWriter) Path() string {
	return ew.filePath
}

// Close закрывает файл
func (ew *EventWriter) Close() error {
	ew.logger.Info("Закрытие файла: %s", ew.filePath)
	return ew.writer.Close()
}

// Server сервер-сборщик событий
type Server struct {
	upgrader  websocket.Upgrader
	outputDir string
	logger    application.Logger
	now       func() time.Time

	mutex   sync.Mutex
	events  []domain.DetectionEvent
	clients int
}

// NewServer создает сервер, пишущий журналы в outputDir
func NewServer(outputDir string, logger application.Logger) *Server {
	return &Server{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Разрешаем все подключения
			},
		},
		outputDir: outputDir,
		logger:    logger,
		now:       time.Now,
	}
}

// Handler возвращает маршруты сервера
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/events", s.handleEvents)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/", s.handleStatus)
	return mux
}

// Events возвращает события, принятые с момента запуска
func (s *Server) Events() []domain.DetectionEvent {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	out := make([]domain.DetectionEvent, len(s.events))
	copy(out, s.events)
	return out
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Ошибка при апгрейде до WebSocket: %v", err)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(readLimit)

	// Создаем файл для сохранения событий
	writer, err := NewEventWriter(s.outputDir, s.now(), s.logger)
	if err != nil {
		s.logger.Error("Не удалось создать запись: %v", err)
		return
	}
	defer writer.Close()

	clientAddr := conn.RemoteAddr().String()
	s.logger.Info("Клиент подключен: %s", clientAddr)
	s.trackClient(1)
	defer s.trackClient(-1)

	for {
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		messageType, message, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Error("Ошибка чтения: %v", err)
			}
			break
		}

		// Обрабатываем только бинарные сообщения (CBOR события)
		if messageType != websocket.BinaryMessage {
			continue
		}
		event, err := codec.Unmarshal(message)
		if err != nil {
			s.logger.Error("Пропущено сообщение от %s: %v", clientAddr, err)
			continue
		}
		if err := writer.Write(event); err != nil {
			s.logger.Error("Ошибка записи данных: %v", err)
			break
		}
		s.record(event)
	}

	s.logger.Info("Клиент отключен: %s", clientAddr)
}

func (s *Server) handleEvents(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.Events())
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

var statusPage = template.Must(template.New("status").Parse(`<!DOCTYPE html>
<html>
<head>
	<title>Сборщик событий микроскопа</title>
	<style>
		body { font-family: Arial, sans-serif; margin: 40px; }
		.status { padding: 20px; background-color: #e0f7fa; border-radius: 5px; }
	</style>
</head>
<body>
	<h1>Сборщик событий микроскопа</h1>
	<div class="status">
		<p>✅ Сервер запущен и принимает соединения</p>
		<p>Директория для журналов: <code>{{.OutputDir}}</code></p>
		<p>Подключено детекторов: {{.Clients}}, принято событий: {{.Events}}</p>
	</div>
</body>
</html>
`))

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	s.mutex.Lock()
	data := struct {
		OutputDir string
		Clients   int
		Events    int
	}{s.outputDir, s.clients, len(s.events)}
	s.mutex.Unlock()

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := statusPage.Execute(w, data); err != nil {
		s.logger.Error("Ошибка страницы статуса: %v", err)
	}
}

func (s *Server) record(event domain.DetectionEvent) {
	s.mutex.Lock()
	s.events = append(s.events, event)
	s.mutex.Unlock()
}

func (s *Server) trackClient(delta int) {
	s.mutex.Lock()
	s.clients += delta
	s.mutex.Unlock()
}
