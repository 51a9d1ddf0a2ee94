// Package zmqpub публикует события обнаружения в ZeroMQ PUB сокет.
package zmqpub

import (
	"context"
	"fmt"
	"sync"

	zmq "github.com/pebbe/zmq4"

	"webcam-motion/internal/application"
	"webcam-motion/internal/domain"
	"webcam-motion/internal/infrastructure/codec"
)

// DetectionTopic первая часть каждого ZMQ сообщения
const DetectionTopic = "detection"

// ZMQPublisher публикует события в PUB сокет: [topic, cbor]
type ZMQPublisher struct {
	mutex  sync.Mutex
	socket *zmq.Socket
	logger application.Logger
}

// NewZMQPublisher привязывает PUB сокет к endpoint, например tcp://*:5556
func NewZMQPublisher(endpoint string, logger application.Logger) (*ZMQPublisher, error) {
	socket, err := zmq.NewSocket(zmq.PUB)
	if err != nil {
		return nil, fmt.Errorf("создание zmq сокета: %w", err)
	}
	if err := socket.SetLinger(0); err != nil {
		socket.Close()
		return nil, fmt.Errorf("настройка zmq сокета: %w", err)
	}
	if err := socket.Bind(endpoint); err != nil {
		socket.Close()
		return nil, fmt.Errorf("bind %s: %w", endpoint, err)
	}
	logger.Info("ZMQ публикация событий на %s", endpoint)
	return &ZMQPublisher{socket: socket, logger: logger}, nil
}

// Publish отправляет событие подписчикам. Без подписчиков сообщение отбрасывается сокетом.
func (p *ZMQPublisher) Publish(_ context.Context, event domain.DetectionEvent) error {
	payload, err := codec.Marshal(event)
	if err != nil {
		return err
	}

	p.mutex.Lock()
	defer p.mutex.Unlock()
	if p.socket == nil {
		return fmt.Errorf("zmq сокет закрыт")
	}
	if _, err := p.socket.SendMessage(DetectionTopic, payload); err != nil {
		return fmt.Errorf("zmq отправка: %w", err)
	}
	return nil
}

// Close закрывает сокет
func (p *ZMQPublisher) Close() error {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	if p.socket == nil {
		return nil
	}
	err := p.socket.Close()
	p.socket = nil
	return err
}
