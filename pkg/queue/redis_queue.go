package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// ErrEmpty 队列在等待时间内没有消息
var ErrEmpty = errors.New("queue is empty")

// RedisQueue Redis队列实现
type RedisQueue struct {
	client *redis.Client
	prefix string
}

// JobMessage 队列中的任务消息
type JobMessage struct {
	JobID    string                 `json:"job_id"`
	JobType  string                 `json:"job_type"`
	Params   map[string]interface{} `json:"params,omitempty"`
	Created  int64                  `json:"created"`
	Source   string                 `json:"source"` // cron / api / cli
	Attempts int                    `json:"attempts"`
}

// Config Redis配置
type Config struct {
	Host     string
	Port     int
	Password string
	DB       int
	Prefix   string
}

// NewRedisQueue 创建Redis队列实例
func NewRedisQueue(config *Config) *RedisQueue {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", config.Host, config.Port),
		Password: config.Password,
		DB:       config.DB,
	})

	prefix := config.Prefix
	if prefix == "" {
		prefix = "rentdesk:queue"
	}

	return &RedisQueue{
		client: client,
		prefix: prefix,
	}
}

// Close 关闭Redis连接
func (q *RedisQueue) Close() error {
	return q.client.Close()
}

// Ping 测试Redis连接
func (q *RedisQueue) Ping(ctx context.Context) error {
	return q.client.Ping(ctx).Err()
}

// Enqueue 将任务加入队列，返回任务ID
func (q *RedisQueue) Enqueue(ctx context.Context, jobType, source string, params map[string]interface{}) (string, error) {
	message := JobMessage{
		JobID:   uuid.New().String(),
		JobType: jobType,
		Params:  params,
		Created: time.Now().Unix(),
		Source:  source,
	}

	data, err := json.Marshal(message)
	if err != nil {
		return "", fmt.Errorf("serialize job message: %w", err)
	}

	// 左侧入队，右侧出队
	if err := q.client.LPush(ctx, q.jobsKey(), data).Err(); err != nil {
		return "", fmt.Errorf("enqueue job: %w", err)
	}

	q.client.HSet(ctx, q.statusKey(message.JobID), map[string]interface{}{
		"job_type":  jobType,
		"status":    "queued",
		"queued_at": message.Created,
	})
	q.client.Expire(ctx, q.statusKey(message.JobID), 24*time.Hour)

	return message.JobID, nil
}

// Dequeue 阻塞等待一条任务，超时返回 ErrEmpty
func (q *RedisQueue) Dequeue(ctx context.Context, timeout time.Duration) (*JobMessage, error) {
	result, err := q.client.BRPop(ctx, timeout, q.jobsKey()).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrEmpty
		}
		return nil, err
	}
	// BRPOP 返回 [key, value]
	if len(result) != 2 {
		return nil, fmt.Errorf("unexpected BRPOP reply: %v", result)
	}

	var message JobMessage
	if err := json.Unmarshal([]byte(result[1]), &message); err != nil {
		return nil, fmt.Errorf("decode job message: %w", err)
	}
	return &message, nil
}

// UpdateJobStatus 更新任务状态
func (q *RedisQueue) UpdateJobStatus(ctx context.Context, jobID, status, detail string) error {
	updates := map[string]interface{}{
		"status":     status,
		"updated_at": time.Now().Unix(),
	}
	if detail != "" {
		updates["detail"] = detail
	}
	return q.client.HSet(ctx, q.statusKey(jobID), updates).Err()
}

// GetJobStatus 获取任务状态
func (q *RedisQueue) GetJobStatus(ctx context.Context, jobID string) (map[string]string, error) {
	return q.client.HGetAll(ctx, q.statusKey(jobID)).Result()
}

// AcquireOnce 以 SETNX 占用一个键，成功返回 true；用于多实例间只执行一次
func (q *RedisQueue) AcquireOnce(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return q.client.SetNX(ctx, q.prefix+":once:"+key, time.Now().Unix(), ttl).Result()
}

// Release 释放 AcquireOnce 占用的键
func (q *RedisQueue) Release(ctx context.Context, key string) error {
	return q.client.Del(ctx, q.prefix+":once:"+key).Err()
}

// Publish 向频道发布消息
func (q *RedisQueue) Publish(ctx context.Context, channel string, payload []byte) error {
	return q.client.Publish(ctx, q.ChannelKey(channel), payload).Err()
}

// Subscribe 订阅频道，调用方负责 Close
func (q *RedisQueue) Subscribe(ctx context.Context, channel string) *redis.PubSub {
	return q.client.Subscribe(ctx, q.ChannelKey(channel))
}

// ChannelKey 频道完整名称
func (q *RedisQueue) ChannelKey(channel string) string {
	return q.prefix + ":channel:" + channel
}

func (q *RedisQueue) jobsKey() string {
	return q.prefix + ":jobs"
}

func (q *RedisQueue) statusKey(jobID string) string {
	return q.prefix + ":job:" + jobID
}
