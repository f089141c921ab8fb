package database

import (
	"context"
	"sync"

	"rentdesk/pkg/config"
	"rentdesk/pkg/queue"
)

var (
	redisQueueInstance *queue.RedisQueue
	redisQueueOnce     sync.Once
)

// GetRedisQueue 获取Redis队列的单例实例
func GetRedisQueue() *queue.RedisQueue {
	redisQueueOnce.Do(func() {
		cfg := config.GetConfig()
		redisQueueInstance = queue.NewRedisQueue(&queue.Config{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
		})
	})
	return redisQueueInstance
}

// ReachableRedisQueue Redis 可达时原样返回 q，否则返回 nil 与连接错误
// 调用方据此关闭依赖 Redis 的功能，不把不可用的实例交给调度器
func ReachableRedisQueue(ctx context.Context, q *queue.RedisQueue) (*queue.RedisQueue, error) {
	if q == nil {
		return nil, nil
	}
	if err := q.Ping(ctx); err != nil {
		return nil, err
	}
	return q, nil
}

// CloseRedisQueue 关闭Redis连接
func CloseRedisQueue() error {
	if redisQueueInstance != nil {
		return redisQueueInstance.Close()
	}
	return nil
}
