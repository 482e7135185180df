package job

import (
	"context"
	"log"
	"time"

	"payledger/internal/ledger"
)

// Auditor 账本对账
type Auditor interface {
	Audit(ctx context.Context) (*ledger.AuditReport, error)
}

// ReconcileJob 定时核对账本不变量：
//   - 订单索引数量 == 记录数量
//   - 累计金额 == 所有记录金额之和
type ReconcileJob struct {
	auditor  Auditor
	stopCh   chan struct{}
	interval time.Duration

	lastReport *ledger.AuditReport
}

func NewReconcileJob(auditor Auditor, interval time.Duration) *ReconcileJob {
	if interval <= 0 {
		interval = time.Minute
	}
	return &ReconcileJob{
		auditor:  auditor,
		stopCh:   make(chan struct{}),
		interval: interval,
	}
}

func (j *ReconcileJob) Start(ctx context.Context) {
	log.Println("[ReconcileJob] 对账任务启动")

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[ReconcileJob] 收到停止信号，任务退出")
			return
		case <-j.stopCh:
			log.Println("[ReconcileJob] 任务停止")
			return
		case <-ticker.C:
			j.reconcile(ctx)
		}
	}
}

func (j *ReconcileJob) Stop() {
	close(j.stopCh)
}

// reconcile 返回本次对账是否一致
func (j *ReconcileJob) reconcile(ctx context.Context) bool {
	report, err := j.auditor.Audit(ctx)
	if err != nil {
		log.Printf("[ReconcileJob] 对账失败: %v", err)
		return false
	}
	j.lastReport = report

	if !report.Consistent() {
		log.Printf("[ReconcileJob] 账本不一致: records=%d, index=%d, sum=%s, total=%s",
			report.RecordCount, report.IndexCount, report.SumOfAmounts.Dec(), report.TotalReceived.Dec())
		return false
	}

	log.Printf("[ReconcileJob] 对账一致: records=%d, total=%s", report.RecordCount, report.TotalReceived.Dec())
	return true
}
