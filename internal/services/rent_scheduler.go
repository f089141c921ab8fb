package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"rentdesk/internal/models"
	"rentdesk/pkg/logger"
	"rentdesk/pkg/queue"

	"github.com/robfig/cron/v3"
)

// JobTypeRollForward 月度滚动任务类型
const JobTypeRollForward = "rent.roll_forward"

// monthKeyLayout 任务参数与防重键中的月份格式
const monthKeyLayout = "2006-01"

// rollForwardGuardTTL 月度滚动防重键的有效期，覆盖一个自然月
const rollForwardGuardTTL = 40 * 24 * time.Hour

// JobQueue 任务队列（Redis 实现见 pkg/queue）
type JobQueue interface {
	Enqueue(ctx context.Context, jobType, source string, params map[string]interface{}) (string, error)
	Dequeue(ctx context.Context, timeout time.Duration) (*queue.JobMessage, error)
	UpdateJobStatus(ctx context.Context, jobID, status, detail string) error
	AcquireOnce(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// ErrAlreadyRan 本月的滚动已经执行过
var ErrAlreadyRan = errors.New("rent roll-forward already ran for this month")

// RentScheduler 每月触发账单滚动：cron 入队，消费者出队执行
type RentScheduler struct {
	generator  *RentGenerator
	queue      JobQueue
	activities *ActivityService
	clock      Clock
	spec       string
	loc        *time.Location

	cron    *cron.Cron
	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewRentScheduler 创建调度器；activities 可为 nil
func NewRentScheduler(generator *RentGenerator, q JobQueue, activities *ActivityService, clock Clock, spec string, loc *time.Location) *RentScheduler {
	if loc == nil {
		loc = time.UTC
	}
	return &RentScheduler{
		generator:  generator,
		queue:      q,
		activities: activities,
		clock:      clock,
		spec:       spec,
		loc:        loc,
	}
}

// Start 启动调度器
func (s *RentScheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("调度器已经在运行")
	}

	s.cron = cron.New(cron.WithLocation(s.loc))
	if _, err := s.cron.AddFunc(s.spec, s.enqueueMonthly); err != nil {
		return fmt.Errorf("无效的cron表达式 %s: %w", s.spec, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.wg.Add(1)
	go s.consume(ctx)

	s.cron.Start()
	s.running = true
	logger.GetLogger().Infof("租金滚动调度器启动成功，cron: %s (%s)", s.spec, s.loc)
	return nil
}

// Stop 停止调度器，等待正在执行的任务结束
func (s *RentScheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cronCtx := s.cron.Stop()
	s.cancel()
	s.mu.Unlock()

	<-cronCtx.Done()
	s.wg.Wait()
	logger.GetLogger().Info("租金滚动调度器已停止")
}

// IsRunning 是否在运行
func (s *RentScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *RentScheduler) enqueueMonthly() {
	if _, err := s.Enqueue(context.Background(), "cron", false); err != nil {
		logger.GetLogger().WithError(err).Error("Failed to enqueue monthly rent roll-forward")
	}
}

// Enqueue 投递一次滚动任务，force 为 true 时忽略本月已执行标记
func (s *RentScheduler) Enqueue(ctx context.Context, source string, force bool) (string, error) {
	jobID, err := s.queue.Enqueue(ctx, JobTypeRollForward, source, map[string]interface{}{
		"month": s.now().Format(monthKeyLayout),
		"force": force,
	})
	if err != nil {
		return "", fmt.Errorf("enqueue roll-forward: %w", err)
	}
	logger.GetLogger().Infof("Rent roll-forward job %s enqueued (source=%s)", jobID, source)
	return jobID, nil
}

func (s *RentScheduler) consume(ctx context.Context) {
	defer s.wg.Done()
	log := logger.GetLogger()

	for {
		if ctx.Err() != nil {
			return
		}
		job, err := s.queue.Dequeue(ctx, 5*time.Second)
		if errors.Is(err, queue.ErrEmpty) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.WithError(err).Warn("Failed to dequeue job, retrying")
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		if job.JobType != JobTypeRollForward {
			log.Warnf("Unknown job type %s (job %s), dropped", job.JobType, job.JobID)
			continue
		}
		s.handle(ctx, job)
	}
}

func (s *RentScheduler) handle(ctx context.Context, job *queue.JobMessage) {
	log := logger.GetLogger()
	force, _ := job.Params["force"].(bool)

	month, err := s.jobMonth(job)
	if err != nil {
		log.WithError(err).Errorf("Rent roll-forward job %s rejected", job.JobID)
		_ = s.queue.UpdateJobStatus(ctx, job.JobID, "failed", err.Error())
		return
	}

	_ = s.queue.UpdateJobStatus(ctx, job.JobID, "running", "")
	summary, err := s.RunMonth(ctx, month, force)
	switch {
	case errors.Is(err, ErrAlreadyRan):
		log.Infof("Rent roll-forward job %s skipped: %v", job.JobID, err)
		_ = s.queue.UpdateJobStatus(ctx, job.JobID, "skipped", err.Error())
	case err != nil:
		log.WithError(err).Errorf("Rent roll-forward job %s failed", job.JobID)
		_ = s.queue.UpdateJobStatus(ctx, job.JobID, "failed", err.Error())
	default:
		detail, _ := json.Marshal(summary)
		_ = s.queue.UpdateJobStatus(ctx, job.JobID, "success", string(detail))
	}
}

// jobMonth 任务投递时记录的月份；旧任务没有 month 参数时取当前月份
func (s *RentScheduler) jobMonth(job *queue.JobMessage) (time.Time, error) {
	raw, ok := job.Params["month"]
	if !ok {
		return s.now(), nil
	}
	key, _ := raw.(string)
	month, err := time.ParseInLocation(monthKeyLayout, key, s.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid month %v in job params", raw)
	}
	return month, nil
}

// Run 执行本月滚动
func (s *RentScheduler) Run(ctx context.Context, force bool) (*RollForwardSummary, error) {
	return s.RunMonth(ctx, s.now(), force)
}

// RunMonth 执行 month 所在月份的滚动；同一月份只执行一次（跨实例），失败时释放标记以便重试
func (s *RentScheduler) RunMonth(ctx context.Context, month time.Time, force bool) (*RollForwardSummary, error) {
	key := "rollforward:" + month.Format(monthKeyLayout)
	if !force {
		ok, err := s.queue.AcquireOnce(ctx, key, rollForwardGuardTTL)
		if err != nil {
			return nil, fmt.Errorf("acquire roll-forward guard: %w", err)
		}
		if !ok {
			return nil, ErrAlreadyRan
		}
	}

	summary, err := s.generator.RollForwardAllMonth(ctx, month)
	if err != nil {
		if !force {
			if rerr := s.queue.Release(context.Background(), key); rerr != nil {
				logger.GetLogger().WithError(rerr).Warnf("Failed to release %s", key)
			}
		}
		return summary, err
	}

	if s.activities != nil {
		s.activities.RecordActivity(ctx, 0, models.ActivityRentRollForward, "RollForward", 0, map[string]interface{}{
			"month":    summary.Month,
			"created":  summary.Created,
			"covered":  summary.Covered,
			"existing": summary.Existing,
			"failed":   summary.Failed,
		})
	}
	return summary, nil
}

func (s *RentScheduler) now() time.Time {
	return s.clock.Now().In(s.loc)
}
