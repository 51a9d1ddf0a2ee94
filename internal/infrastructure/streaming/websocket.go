package streaming

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"webcam-motion/internal/application"
	"webcam-motion/internal/domain"
	"webcam-motion/internal/infrastructure/codec"
)

const writeWait = 5 * time.Second

// WebSocketPublisher отправляет события на сервер-сборщик через WebSocket
type WebSocketPublisher struct {
	url       string
	logger    application.Logger
	dialer    *websocket.Dialer
	conn      *websocket.Conn
	mutex     sync.Mutex
	sent      int
	startTime time.Time
	debugMode bool
}

// NewWebSocketPublisher создает публикатор. Подключение происходит при первой отправке.
func NewWebSocketPublisher(rawURL string, logger application.Logger, debugMode bool) (*WebSocketPublisher, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("некорректный URL сборщика: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("некорректная схема URL сборщика: %q", u.Scheme)
	}
	return &WebSocketPublisher{
		url:       u.String(),
		logger:    logger,
		dialer:    websocket.DefaultDialer,
		debugMode: debugMode,
	}, nil
}

// Publish отправляет событие бинарным CBOR сообщением. После ошибки соединение
// сбрасывается и восстанавливается при следующей отправке.
func (p *WebSocketPublisher) Publish(ctx context.Context, event domain.DetectionEvent) error {
	payload, err := codec.Marshal(event)
	if err != nil {
		return err
	}

	p.mutex.Lock()
	defer p.mutex.Unlock()

	if p.conn == nil {
		if err := p.connectLocked(ctx); err != nil {
			return err
		}
	}

	deadline := time.Now().Add(writeWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = p.conn.SetWriteDeadline(deadline)
	if err := p.conn.WriteMessage(websocket.BinaryMessage, payload); err != nil {
		p.conn.Close()
		p.conn = nil
		return fmt.Errorf("отправка события: %w", err)
	}

	p.sent++
	if p.debugMode && p.sent%30 == 0 {
		elapsed := time.Since(p.startTime).Seconds()
		p.logger.Debug("Отправлено событий: %d, в секунду: %.2f", p.sent, float64(p.sent)/elapsed)
	}
	return nil
}

func (p *WebSocketPublisher) connectLocked(ctx context.Context) error {
	p.logger.Info("Подключение к %s", p.url)
	conn, _, err := p.dialer.DialContext(ctx, p.url, nil)
	if err != nil {
		return fmt.Errorf("подключение к сборщику: %w", err)
	}
	p.conn = conn
	p.sent = 0
	p.startTime = time.Now()
	p.logger.Info("Подключено к серверу")
	return nil
}

// IsConnected возвращает статус подключения
func (p *WebSocketPublisher) IsConnected() bool {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.conn != nil
}

// Close закрывает соединение
func (p *WebSocketPublisher) Close() error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if p.conn == nil {
		return nil
	}

	// Отправляем сообщение о закрытии
	err := p.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait),
	)
	if err != nil {
		p.logger.Error("Ошибка закрытия WebSocket: %v", err)
	}

	closeErr := p.conn.Close()
	p.conn = nil
	return closeErr
}
