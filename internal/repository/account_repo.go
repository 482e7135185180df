package repository

import (
	"context"
	"errors"

	"payledger/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrAccountNotFound = errors.New("账户不存在")
	ErrOptimisticLock  = errors.New("乐观锁冲突，请重试")
)

type AccountRepository struct {
	db *gorm.DB
}

func NewAccountRepository(db *gorm.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

func (r *AccountRepository) GetByAddress(ctx context.Context, tx *gorm.DB, address string) (*model.Account, error) {
	if tx == nil {
		tx = r.db
	}
	var account model.Account
	err := tx.WithContext(ctx).Where("address = ?", address).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

func (r *AccountRepository) GetByAddressForUpdate(ctx context.Context, tx *gorm.DB, address string) (*model.Account, error) {
	var account model.Account
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("address = ?", address).
		First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

// GetOrCreateForUpdate 没有钱包时先建一个零余额钱包，再加行锁读取
func (r *AccountRepository) GetOrCreateForUpdate(ctx context.Context, tx *gorm.DB, address string) (*model.Account, error) {
	account, err := r.GetByAddressForUpdate(ctx, tx, address)
	if err == nil {
		return account, nil
	}
	if !errors.Is(err, ErrAccountNotFound) {
		return nil, err
	}

	err = tx.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "address"}},
			DoNothing: true,
		}).
		Create(&model.Account{Address: address, Balance: "0"}).Error
	if err != nil {
		return nil, err
	}

	return r.GetByAddressForUpdate(ctx, tx, address)
}

// UpdateBalance 按版本号更新余额，版本不一致说明被并发修改
func (r *AccountRepository) UpdateBalance(ctx context.Context, tx *gorm.DB, account *model.Account, balance string) error {
	result := tx.WithContext(ctx).
		Model(&model.Account{}).
		Where("address = ? AND version = ?", account.Address, account.Version).
		Updates(map[string]interface{}{
			"balance": balance,
			"version": gorm.Expr("version + 1"),
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrOptimisticLock
	}

	account.Balance = balance
	account.Version++
	return nil
}
