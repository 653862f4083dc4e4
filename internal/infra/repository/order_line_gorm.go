package repository

import (
	"context"

	"bookstore/internal/domain/model"

	"gorm.io/gorm"
)

type OrderLineGormRepository struct {
	db *gorm.DB
}

func NewOrderLineGormRepository(db *gorm.DB) *OrderLineGormRepository {
	return &OrderLineGormRepository{db: db}
}

func (r *OrderLineGormRepository) CreateBulk(ctx context.Context, orderID string, lines []model.OrderLine) error {
	if len(lines) == 0 {
		return nil
	}
	rows := make([]model.OrderLine, len(lines))
	for i, l := range lines {
		l.OrderID = orderID
		rows[i] = l
	}
	return r.db.WithContext(ctx).Create(&rows).Error
}

func (r *OrderLineGormRepository) ListByOrderID(ctx context.Context, orderID string) ([]model.OrderLine, error) {
	lines := []model.OrderLine{}
	err := r.db.WithContext(ctx).Where("order_id = ?", orderID).Order("product_id asc").Find(&lines).Error
	if err != nil {
		return []model.OrderLine{}, err
	}
	return lines, nil
}

func (r *OrderLineGormRepository) DeleteByOrderID(ctx context.Context, orderID string) (int64, error) {
	res := r.db.WithContext(ctx).Where("order_id = ?", orderID).Delete(&model.OrderLine{})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}
