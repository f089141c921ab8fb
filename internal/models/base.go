package models

import (
	"time"
)

// BaseModel 基础模型
type BaseModel struct {
	ID        uint      `json:"id" gorm:"primarykey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// InvariantError 模型保存前的字段校验失败
type InvariantError struct {
	Model   string
	Field   string
	Message string
}

func (e *InvariantError) Error() string {
	return e.Model + " " + e.Field + " " + e.Message
}

func invariant(model, field, message string) error {
	return &InvariantError{Model: model, Field: field, Message: message}
}
