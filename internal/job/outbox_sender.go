package job

import (
	"context"
	"log"
	"time"

	"payledger/internal/config"
	"payledger/internal/model"
	"payledger/internal/repository"

	"gorm.io/gorm"
)

// EventPublisher 发件箱消息的投递端
type EventPublisher interface {
	Publish(topic, key, eventType, value string) error
}

type OutboxSender struct {
	db         *gorm.DB
	outboxRepo *repository.OutboxRepository
	publisher  EventPublisher
	cfg        *config.Config
	stopCh     chan struct{}
	interval   time.Duration
	batchSize  int

	// 退避：队首消息失败后到 nextAttempt 之前不再尝试
	now         func() time.Time
	nextAttempt time.Time
	baseBackoff time.Duration
	maxBackoff  time.Duration
}

func NewOutboxSender(db *gorm.DB, publisher EventPublisher, cfg *config.Config) *OutboxSender {
	return &OutboxSender{
		db:         db,
		outboxRepo: repository.NewOutboxRepository(db),
		publisher:  publisher,
		cfg:        cfg,
		stopCh:     make(chan struct{}),
		interval:   100 * time.Millisecond,
		batchSize:  100,

		now:         time.Now,
		baseBackoff: 200 * time.Millisecond,
		maxBackoff:  30 * time.Second,
	}
}

func (s *OutboxSender) Start(ctx context.Context) {
	log.Println("[OutboxSender] 消息发送任务启动")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[OutboxSender] 收到停止信号，任务退出")
			return
		case <-s.stopCh:
			log.Println("[OutboxSender] 任务停止")
			return
		case <-ticker.C:
			s.processPendingMessages(ctx)
		}
	}
}

func (s *OutboxSender) Stop() {
	close(s.stopCh)
}

// processPendingMessages 按 id 顺序发送，遇到失败就停在这一条，
// 后面的消息等它成功后再发，保证事件顺序和账本事务顺序一致
//
// 【关键点】消息不会因为重试次数多而被丢弃，只是退避间隔变长；
// 每个成功的账本事务至少投递一次
func (s *OutboxSender) processPendingMessages(ctx context.Context) {
	if s.now().Before(s.nextAttempt) {
		return
	}

	messages, err := s.outboxRepo.GetPendingMessages(ctx, s.batchSize)
	if err != nil {
		log.Printf("[OutboxSender] 查询消息失败: %v", err)
		return
	}

	for _, msg := range messages {
		if !s.sendMessage(ctx, msg) {
			return
		}
	}
}

func (s *OutboxSender) sendMessage(ctx context.Context, msg *model.OutboxMessage) bool {
	err := s.publisher.Publish(msg.Topic, msg.MessageKey, msg.EventType, msg.Payload)

	if err == nil {
		// 状态没更新成功会在下一轮重发，消费方按 at-least-once 处理
		if updateErr := s.outboxRepo.UpdateStatus(ctx, msg.ID, model.OutboxStatusSent); updateErr != nil {
			log.Printf("[OutboxSender] 更新消息状态失败: id=%d, err=%v", msg.ID, updateErr)
			return false
		}
		s.nextAttempt = time.Time{}
		log.Printf("[OutboxSender] 消息发送成功: id=%d, topic=%s, event=%s", msg.ID, msg.Topic, msg.EventType)
		return true
	}

	retry := msg.RetryCount + 1
	backoff := s.backoff(retry)
	s.nextAttempt = s.now().Add(backoff)
	log.Printf("[OutboxSender] 消息发送失败: id=%d, retry=%d, next=%s, err=%v", msg.ID, retry, backoff, err)

	if retry >= s.cfg.Business.MaxRetryCount {
		log.Printf("[OutboxSender] WARN 消息重试次数已达告警阈值，继续重试: id=%d, retry=%d", msg.ID, retry)
	}

	if err := s.outboxRepo.IncrementRetryCount(ctx, msg.ID); err != nil {
		log.Printf("[OutboxSender] 增加重试次数失败: id=%d, err=%v", msg.ID, err)
	}
	return false
}

// backoff 指数退避，封顶 maxBackoff
func (s *OutboxSender) backoff(retry int) time.Duration {
	d := s.baseBackoff
	for i := 1; i < retry && d < s.maxBackoff; i++ {
		d *= 2
	}
	if d > s.maxBackoff {
		d = s.maxBackoff
	}
	return d
}
