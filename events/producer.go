package events

import (
	"context"
	"time"

	"Gin_postgres_redis_marketplace/logger"

	"github.com/segmentio/kafka-go"
)

// Publisher 只负责投递；提交后才调用，失败不影响已提交的状态
type Publisher interface {
	Publish(key, value []byte, headers ...kafka.Header)
}

type Producer struct {
	w       *kafka.Writer
	log     *logger.Logger
	inbox   chan kafka.Message
	closeCh chan struct{}
}

func NewProducer(brokers []string, topic string, buf int, log *logger.Logger) *Producer {
	return &Producer{
		w: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
		},
		log:     log.With("component", "kafka-producer", "topic", topic),
		inbox:   make(chan kafka.Message, buf),
		closeCh: make(chan struct{}),
	}
}

func (p *Producer) Start() {
	go func() {
		defer close(p.closeCh)
		for m := range p.inbox {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			if err := p.w.WriteMessages(ctx, m); err != nil {
				p.log.Warn("publish failed", "key", string(m.Key), "error", err)
			}
			cancel()
		}
		if err := p.w.Close(); err != nil {
			p.log.Warn("close writer", "error", err)
		}
	}()
}

// Publish 不阻塞请求：inbox 满时丢弃并记录
func (p *Producer) Publish(key, value []byte, headers ...kafka.Header) {
	m := kafka.Message{Key: key, Value: value, Time: time.Now(), Headers: headers}
	select {
	case p.inbox <- m:
	default:
		p.log.Warn("publish buffer full, dropping event", "key", string(key))
	}
}

// Close 关闭 inbox，后台 goroutine 发完剩余消息后退出
func (p *Producer) Close() { close(p.inbox) }

func (p *Producer) WaitClosed() { <-p.closeCh }

// Nop 用于未配置 KAFKA_BROKERS 的环境
type Nop struct{}

func (Nop) Publish([]byte, []byte, ...kafka.Header) {}
