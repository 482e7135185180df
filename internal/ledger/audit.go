package ledger

import (
	"context"

	"github.com/holiman/uint256"
)

// AuditReport 账本不变量核对结果
type AuditReport struct {
	RecordCount   uint64
	IndexCount    uint64
	SumOfAmounts  *uint256.Int
	TotalReceived *uint256.Int
}

// Consistent 订单索引与记录一一对应，且累计金额等于记录金额之和
func (r *AuditReport) Consistent() bool {
	return r.RecordCount == r.IndexCount && r.SumOfAmounts.Eq(r.TotalReceived)
}

// Audit 遍历全部记录核对不变量，只读
func (l *Ledger) Audit(ctx context.Context) (*AuditReport, error) {
	report := &AuditReport{SumOfAmounts: new(uint256.Int)}
	err := l.store.View(ctx, func(ctx context.Context, tx Tx) error {
		err := tx.EachPayment(ctx, func(rec *PaymentRecord) error {
			report.RecordCount++
			report.SumOfAmounts.Add(report.SumOfAmounts, rec.Amount)
			return nil
		})
		if err != nil {
			return err
		}
		if report.IndexCount, err = tx.PaymentCount(ctx); err != nil {
			return err
		}
		total, err := tx.TotalReceived(ctx)
		if err != nil {
			return err
		}
		report.TotalReceived = total.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}
