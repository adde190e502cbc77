package repository

import (
	"context"
	"errors"

	"eventpay/internal/model"

	"gorm.io/gorm"
)

var (
	ErrEventNotFound = errors.New("活动不存在")
	ErrEventFull     = errors.New("活动名额已满")
)

type EventRepository struct {
	db *gorm.DB
}

func NewEventRepository(db *gorm.DB) *EventRepository {
	return &EventRepository{db: db}
}

func (r *EventRepository) GetByID(ctx context.Context, id int64) (*model.Event, error) {
	var event model.Event
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&event).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, err
	}
	return &event, nil
}

// IncrementRegistered 报名计数变更
//
// 计数不是独立维护的：只允许在触发它的状态转移所在事务内调用。
// 加一时带名额守卫，减一时带非负守卫，守卫失败返回业务错误而不是写脏数据。
func (r *EventRepository) IncrementRegistered(ctx context.Context, tx *gorm.DB, eventID int64, delta int) error {
	if tx == nil {
		tx = r.db
	}

	query := tx.WithContext(ctx).Model(&model.Event{})
	if delta > 0 {
		query = query.Where("id = ? AND (capacity = 0 OR registered_count + ? <= capacity)", eventID, delta)
	} else {
		query = query.Where("id = ? AND registered_count + ? >= 0", eventID, delta)
	}

	result := query.UpdateColumn("registered_count", gorm.Expr("registered_count + ?", delta))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		if delta > 0 {
			return ErrEventFull
		}
		return ErrEventNotFound
	}
	return nil
}
