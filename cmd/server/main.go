package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"payledger/internal/config"
	"payledger/internal/handler"
	"payledger/internal/infrastructure/cache"
	"payledger/internal/infrastructure/database"
	"payledger/internal/infrastructure/lock"
	"payledger/internal/infrastructure/mq"
	"payledger/internal/job"
	"payledger/internal/ledger"
	"payledger/internal/repository"
	"payledger/internal/service"
	"payledger/internal/store/memory"
	"payledger/pkg/idgen"

	"github.com/ethereum/go-ethereum/common"
)

func main() {
	// 加载配置
	cfg := config.LoadConfig("config/config.yaml")

	// 初始化 ID 生成器
	idgen.Init(cfg.Server.WorkerID)

	if !common.IsHexAddress(cfg.Ledger.Address) || !common.IsHexAddress(cfg.Ledger.Owner) {
		log.Fatalf("账本地址或所有者地址配置错误: address=%q, owner=%q", cfg.Ledger.Address, cfg.Ledger.Owner)
	}
	self := common.HexToAddress(cfg.Ledger.Address)
	owner := common.HexToAddress(cfg.Ledger.Owner)

	// 创建上下文（用于优雅关闭）
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	receivers := ledger.NewReceivers()

	var (
		store  ledger.Store
		locker lock.InvocationLocker
		nonces handler.NonceChecker
		pcache service.PaymentCache
	)

	switch cfg.Ledger.Store {
	case config.StoreMemory:
		// 单进程调试模式：不依赖 MySQL / Redis / Kafka
		memStore := memory.New(receivers)
		memStore.Subscribe(func(evt ledger.Event) {
			log.Printf("[Event] %s: %+v", evt.EventName(), evt)
		})
		store = memStore
		locker = lock.NewLocalInvoker()

	case config.StoreMySQL:
		db := database.InitMySQL(&cfg.MySQL)

		ledgerStore := repository.NewLedgerStore(db, self, cfg.Kafka.Topic, receivers)
		stored, err := ledgerStore.Provision(ctx, owner)
		if err != nil {
			log.Fatalf("初始化账本失败: %v", err)
		}
		if stored != owner {
			log.Printf("[Ledger] 所有者以库中为准: %s", stored.Hex())
		}
		owner = stored
		store = ledgerStore

		redisClient := cache.InitRedis(&cfg.Redis)
		defer cache.CloseRedis()
		locker = lock.NewRedisInvoker(redisClient, self.Hex(), cfg.Business.InvokeLockRetry(), cfg.Business.InvokeLockMaxRetries)
		nonces = lock.NewNonceStore(redisClient, cfg.Business.NonceTTL())
		pcache = cache.NewPaymentCache(redisClient, self.Hex(), cfg.Business.PaymentCacheTTL())

		// 初始化 Kafka
		producer := mq.InitKafka(&cfg.Kafka)
		defer mq.CloseKafka()

		outboxSender := job.NewOutboxSender(db, mq.NewPublisher(producer), cfg)
		go outboxSender.Start(ctx)

	default:
		log.Fatalf("不支持的存储类型: %s", cfg.Ledger.Store)
	}

	l, err := ledger.New(self, owner, store)
	if err != nil {
		log.Fatalf("创建账本失败: %v", err)
	}
	receivers.Register(self, l.ReceiveHook())

	reconcileJob := job.NewReconcileJob(l, cfg.Business.ReconcileInterval())
	go reconcileJob.Start(ctx)

	// 设置路由
	h := handler.NewHandler(
		service.NewLedgerService(l, locker, pcache),
		service.NewWalletService(store, self, cfg.Business.FaucetEnabled),
		cfg.Ledger.Decimals,
	)
	router := handler.SetupRouter(h, nonces)

	// 启动 HTTP 服务
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Printf("服务启动，监听端口: %d, 账本: %s, 所有者: %s", cfg.Server.Port, self.Hex(), owner.Hex())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("服务启动失败: %v", err)
		}
	}()

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("正在关闭服务...")

	// 取消上下文，停止后台任务
	cancel()

	// 关闭 HTTP 服务（等待最多5秒）
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("服务关闭异常: %v", err)
	}

	log.Println("服务已关闭")
}
