package services

import (
	"context"
	"encoding/json"
	"time"

	"rentdesk/internal/models"
	"rentdesk/pkg/logger"
	"rentdesk/pkg/pagination"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ActivityChannel 操作记录实时推送频道
const ActivityChannel = "activities"

// Publisher 消息发布（Redis pub/sub）
type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// ActivityService 操作记录
type ActivityService struct {
	db        *gorm.DB
	publisher Publisher
}

// NewActivityService 创建操作记录服务，publisher 可为 nil
func NewActivityService(db *gorm.DB, publisher Publisher) *ActivityService {
	return &ActivityService{db: db, publisher: publisher}
}

// ActivityEvent 推送给 websocket 客户端的消息
type ActivityEvent struct {
	ID            uint                   `json:"id"`
	Key           string                 `json:"key"`
	OwnerID       uint                   `json:"owner_id"`
	TrackableType string                 `json:"trackable_type"`
	TrackableID   uint                   `json:"trackable_id"`
	Parameters    map[string]interface{} `json:"parameters,omitempty"`
	CreatedAt     time.Time              `json:"created_at"`
}

// RecordActivity 记录一次操作并推送，失败只记录日志，不影响业务
func (s *ActivityService) RecordActivity(ctx context.Context, actorID uint, key, trackableType string, trackableID uint, params map[string]interface{}) {
	log := logger.GetLogger()

	var raw datatypes.JSON
	if len(params) > 0 {
		b, err := json.Marshal(params)
		if err != nil {
			log.WithError(err).Warnf("Failed to encode activity parameters for %s", key)
		} else {
			raw = datatypes.JSON(b)
		}
	}

	activity := &models.Activity{
		Key:           key,
		OwnerID:       actorID,
		TrackableType: trackableType,
		TrackableID:   trackableID,
		Parameters:    raw,
	}
	if err := s.db.Create(activity).Error; err != nil {
		log.WithError(err).Errorf("Failed to record activity %s for %s %d", key, trackableType, trackableID)
		return
	}

	if s.publisher == nil {
		return
	}
	payload, err := json.Marshal(ActivityEvent{
		ID:            activity.ID,
		Key:           key,
		OwnerID:       actorID,
		TrackableType: trackableType,
		TrackableID:   trackableID,
		Parameters:    params,
		CreatedAt:     activity.CreatedAt,
	})
	if err != nil {
		return
	}
	if err := s.publisher.Publish(ctx, ActivityChannel, payload); err != nil {
		log.WithError(err).Warnf("Failed to publish activity %s", key)
	}
}

// List 分页查询操作记录，按时间倒序
func (s *ActivityService) List(key, trackableType string, page *pagination.PageParams) ([]models.Activity, int64, error) {
	query := s.db.Model(&models.Activity{})
	if key != "" {
		query = query.Where("key = ?", key)
	}
	if trackableType != "" {
		query = query.Where("trackable_type = ?", trackableType)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var activities []models.Activity
	err := query.Order("id DESC").Scopes(page.Scope()).Find(&activities).Error
	return activities, total, err
}
