package repository

import (
	"context"
	"errors"

	"payledger/internal/model"

	"gorm.io/gorm"
)

type PaymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) Create(ctx context.Context, tx *gorm.DB, rec *model.PaymentRecord) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(rec).Error
}

// GetByOrderID 不存在时返回 (nil, nil)
func (r *PaymentRepository) GetByOrderID(ctx context.Context, tx *gorm.DB, ledgerAddr, orderID string) (*model.PaymentRecord, error) {
	if tx == nil {
		tx = r.db
	}
	var rec model.PaymentRecord
	err := tx.WithContext(ctx).
		Where("ledger_address = ? AND order_id = ?", ledgerAddr, orderID).
		First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

func (r *PaymentRepository) Count(ctx context.Context, tx *gorm.DB, ledgerAddr string) (int64, error) {
	if tx == nil {
		tx = r.db
	}
	var count int64
	err := tx.WithContext(ctx).
		Model(&model.PaymentRecord{}).
		Where("ledger_address = ?", ledgerAddr).
		Count(&count).Error
	return count, err
}

// ListOrderIDs 按写入顺序返回订单号
func (r *PaymentRepository) ListOrderIDs(ctx context.Context, tx *gorm.DB, ledgerAddr string) ([]string, error) {
	if tx == nil {
		tx = r.db
	}
	var ids []string
	err := tx.WithContext(ctx).
		Model(&model.PaymentRecord{}).
		Where("ledger_address = ?", ledgerAddr).
		Order("id ASC").
		Pluck("order_id", &ids).Error
	return ids, err
}

// Each 按主键（即写入顺序）分批遍历全部记录
func (r *PaymentRepository) Each(ctx context.Context, tx *gorm.DB, ledgerAddr string, batchSize int, fn func(rec *model.PaymentRecord) error) error {
	if tx == nil {
		tx = r.db
	}
	var batch []*model.PaymentRecord
	result := tx.WithContext(ctx).
		Where("ledger_address = ?", ledgerAddr).
		FindInBatches(&batch, batchSize, func(_ *gorm.DB, _ int) error {
			for _, rec := range batch {
				if err := fn(rec); err != nil {
					return err
				}
			}
			return nil
		})
	return result.Error
}
