package job

import (
	"context"
	"log"
	"time"

	"eventpay/internal/config"
	"eventpay/internal/infrastructure/mq"
	"eventpay/internal/model"
	"eventpay/internal/repository"

	"gorm.io/gorm"
)

// OutboxSender 把报名/退款结果消息从 outbox 表投递到 Kafka
//
// 消息键是报名单号，同一条报名的状态变更按写入顺序投递。
// 投递失败累计重试，超过上限后标记 FAILED 等人工介入，不阻塞后续消息。
type OutboxSender struct {
	db         *gorm.DB
	outboxRepo *repository.OutboxRepository
	cfg        *config.Config
	stopCh     chan struct{}
	interval   time.Duration
	batchSize  int
}

func NewOutboxSender(db *gorm.DB, cfg *config.Config) *OutboxSender {
	return &OutboxSender{
		db:         db,
		outboxRepo: repository.NewOutboxRepository(db),
		cfg:        cfg,
		stopCh:     make(chan struct{}),
		interval:   100 * time.Millisecond,
		batchSize:  100,
	}
}

func (s *OutboxSender) Start(ctx context.Context) {
	log.Println("[OutboxSender] 结果消息投递任务启动")

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
			s.drainPending(ctx)
		}
	}
}

func (s *OutboxSender) Stop() {
	close(s.stopCh)
}

func (s *OutboxSender) drainPending(ctx context.Context) {
	messages, err := s.outboxRepo.GetPendingMessages(ctx, s.batchSize)
	if err != nil {
		log.Printf("[OutboxSender] 查询待投递消息失败: %v", err)
		return
	}
	if len(messages) == 0 {
		return
	}

	sent := 0
	for _, msg := range messages {
		if s.deliver(ctx, msg) {
			sent++
		}
	}
	if sent < len(messages) {
		log.Printf("[OutboxSender] 本批投递 %d/%d 条，其余等待重试", sent, len(messages))
	}
}

// deliver 投递一条消息，返回是否投递成功
func (s *OutboxSender) deliver(ctx context.Context, msg *model.OutboxMessage) bool {
	if err := mq.SendMessage(msg.Topic, msg.MessageKey, msg.Payload); err != nil {
		log.Printf("[OutboxSender] 投递失败: joinNo=%s, topic=%s, err=%v", msg.MessageKey, msg.Topic, err)

		if err := s.outboxRepo.IncrementRetryCount(ctx, msg.ID); err != nil {
			log.Printf("[OutboxSender] 增加重试次数失败: id=%d, err=%v", msg.ID, err)
		}
		if msg.RetryCount+1 >= s.cfg.Business.MaxRetryCount {
			if err := s.outboxRepo.MarkAsFailed(ctx, msg.ID); err != nil {
				log.Printf("[OutboxSender] 标记失败状态失败: id=%d, err=%v", msg.ID, err)
			} else {
				log.Printf("[OutboxSender] 超过最大重试次数，放弃投递: id=%d, joinNo=%s", msg.ID, msg.MessageKey)
			}
		}
		return false
	}

	if err := s.outboxRepo.UpdateStatus(ctx, msg.ID, model.OutboxStatusSent); err != nil {
		// 消息已出去但状态没落库，下个周期会重发，消费方按 join_no 幂等处理
		log.Printf("[OutboxSender] 更新消息状态失败: id=%d, err=%v", msg.ID, err)
		return true
	}

	log.Printf("[OutboxSender] 投递成功: joinNo=%s, topic=%s", msg.MessageKey, msg.Topic)
	return true
}
