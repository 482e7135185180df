package repository

import (
	"context"
	"errors"

	"payledger/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrLedgerNotProvisioned = errors.New("账本未初始化")

type LedgerStateRepository struct {
	db *gorm.DB
}

func NewLedgerStateRepository(db *gorm.DB) *LedgerStateRepository {
	return &LedgerStateRepository{db: db}
}

// Provision 首次部署时写入账本状态；已存在则原样返回，owner 以库中为准
func (r *LedgerStateRepository) Provision(ctx context.Context, address, owner string) (*model.LedgerState, error) {
	state := &model.LedgerState{
		Address:       address,
		Owner:         owner,
		TotalReceived: "0",
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "address"}},
			DoNothing: true,
		}).
		Create(state).Error
	if err != nil {
		return nil, err
	}
	return r.Get(ctx, nil, address)
}

func (r *LedgerStateRepository) Get(ctx context.Context, tx *gorm.DB, address string) (*model.LedgerState, error) {
	if tx == nil {
		tx = r.db
	}
	var state model.LedgerState
	err := tx.WithContext(ctx).Where("address = ?", address).First(&state).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLedgerNotProvisioned
		}
		return nil, err
	}
	return &state, nil
}

// GetForUpdate 行锁读取，保证累计金额的读-改-写不被并发覆盖
func (r *LedgerStateRepository) GetForUpdate(ctx context.Context, tx *gorm.DB, address string) (*model.LedgerState, error) {
	var state model.LedgerState
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("address = ?", address).
		First(&state).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLedgerNotProvisioned
		}
		return nil, err
	}
	return &state, nil
}

func (r *LedgerStateRepository) UpdateTotal(ctx context.Context, tx *gorm.DB, address, total string) error {
	result := tx.WithContext(ctx).
		Model(&model.LedgerState{}).
		Where("address = ?", address).
		Update("total_received", total)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrLedgerNotProvisioned
	}
	return nil
}
