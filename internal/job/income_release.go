package job

import (
	"context"
	"log"
	"time"

	"eventpay/internal/config"
	"eventpay/internal/repository"
	"eventpay/internal/service"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// IncomeReleaseJob 活动结束后解冻主办方票款收入
//
// 扫描已结束活动中"主办方已入账但收入未解冻"的报名记录，逐条解冻。
// 解冻与完成标记同一个事务，任务重跑不会重复解冻。
type IncomeReleaseJob struct {
	db        *gorm.DB
	joinRepo  *repository.JoinRequestRepository
	joinSvc   *service.JoinService
	cfg       *config.Config
	stopCh    chan struct{}
	interval  time.Duration
	batchSize int
}

func NewIncomeReleaseJob(db *gorm.DB, redisClient *redis.Client, cfg *config.Config) *IncomeReleaseJob {
	interval := time.Duration(cfg.Business.IncomeReleaseIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = 60 * time.Second
	}
	return &IncomeReleaseJob{
		db:        db,
		joinRepo:  repository.NewJoinRequestRepository(db),
		joinSvc:   service.NewJoinService(db, redisClient, cfg),
		cfg:       cfg,
		stopCh:    make(chan struct{}),
		interval:  interval,
		batchSize: 100,
	}
}

func (j *IncomeReleaseJob) Start(ctx context.Context) {
	log.Println("[IncomeReleaseJob] 收入解冻任务启动")

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[IncomeReleaseJob] 收到停止信号，任务退出")
			return
		case <-j.stopCh:
			log.Println("[IncomeReleaseJob] 任务停止")
			return
		case <-ticker.C:
			j.releaseFinishedEventIncome(ctx)
		}
	}
}

func (j *IncomeReleaseJob) Stop() {
	close(j.stopCh)
}

func (j *IncomeReleaseJob) releaseFinishedEventIncome(ctx context.Context) {
	requests, err := j.joinRepo.ListReleasableIncome(ctx, time.Now(), j.batchSize)
	if err != nil {
		log.Printf("[IncomeReleaseJob] 查询待解冻记录失败: %v", err)
		return
	}

	if len(requests) == 0 {
		return
	}

	log.Printf("[IncomeReleaseJob] 发现 %d 条待解冻收入", len(requests))

	releasedCount := 0
	for _, jr := range requests {
		if err := j.joinSvc.ReleaseIncome(ctx, jr); err != nil {
			log.Printf("[IncomeReleaseJob] 收入解冻失败: joinNo=%s, err=%v", jr.JoinNo, err)
			continue
		}
		releasedCount++
		log.Printf("[IncomeReleaseJob] 收入已解冻: joinNo=%s, amount=%d", jr.JoinNo, jr.Payment.OwnerAmount)
	}

	log.Printf("[IncomeReleaseJob] 本次解冻 %d 条收入", releasedCount)
}
