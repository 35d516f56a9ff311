package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"RecordStore/account"
	"RecordStore/auth"
	"RecordStore/cart"
	"RecordStore/catalog"
	"RecordStore/config"
	"RecordStore/jwt"
	"RecordStore/logger"
	"RecordStore/metrics"
	"RecordStore/repository"
	"RecordStore/repository/gormstore"
	"RecordStore/repository/memory"
	"RecordStore/routers"
)

type stores struct {
	accounts repository.AccountStore
	items    repository.ItemStore
	carts    repository.CartStore
	close    func()
}

func main() {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = config.DefaultPath
	}
	cfg, err := config.LoadConfig(path)
	if err != nil {
		panic("無法讀取設定檔: " + err.Error())
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Env)
	if err != nil {
		panic("無法建立logger: " + err.Error())
	}
	defer func() { _ = log.Sync() }()
	zap.ReplaceGlobals(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStores(cfg)
	if err != nil {
		log.Fatal("無法連接到資料庫", zap.Error(err))
	}
	defer st.close()

	denylist, closeDenylist, err := openDenylist(ctx, cfg.Redis)
	if err != nil {
		log.Fatal("無法連接到Redis", zap.Error(err))
	}
	defer closeDenylist()

	tokens, err := newTokenService(cfg.JWT)
	if err != nil {
		log.Fatal("無法建立JWT服務", zap.Error(err))
	}

	m := metrics.New()
	hasher := auth.NewHasher(cfg.Bcrypt.Cost)
	authenticator, err := auth.NewAuthenticator(st.accounts, hasher, cfg.Store.Timeout, log)
	if err != nil {
		log.Fatal("無法建立驗證服務", zap.Error(err))
	}
	engine := cart.NewEngine(st.items, st.carts, cart.Options{
		StoreTimeout: cfg.Store.Timeout,
		StockRetries: cfg.Store.StockRetries,
	}, log, m)
	items := catalog.NewService(st.items, cfg.Store.Timeout, cfg.Store.StockRetries, log, m)
	accounts := account.NewService(account.Deps{
		Accounts: st.accounts,
		Hasher:   hasher,
		Carts:    engine,
		Denylist: denylist,
		TokenTTL: tokens.TTL(),
		Timeout:  cfg.Store.Timeout,
		Log:      log,
	})
	if err := accounts.EnsureManager(ctx, cfg.Bootstrap.ManagerEmail, cfg.Bootstrap.ManagerPassword); err != nil {
		log.Fatal("無法建立管理者帳號", zap.Error(err))
	}

	router := routers.SetupRouters(routers.Deps{
		Authenticator: authenticator,
		Tokens:        tokens,
		Denylist:      denylist,
		Accounts:      accounts,
		Catalog:       items,
		Carts:         engine,
		Metrics:       m,
		Log:           log,
	})

	srv := &http.Server{Addr: cfg.Server.Addr, Handler: router}
	go func() {
		log.Info("http server starting", zap.String("addr", cfg.Server.Addr), zap.String("storage", cfg.Storage.Driver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutdown requested")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("graceful shutdown failed", zap.Error(err))
	}
	log.Info("bye")
}

func openStores(cfg config.Config) (stores, error) {
	if cfg.Storage.Driver != "mysql" {
		s := memory.New()
		return stores{accounts: s, items: s, carts: s, close: func() {}}, nil
	}

	db, err := config.SetupMySQLConnection(cfg.Database)
	if err != nil {
		return stores{}, err
	}
	s := gormstore.New(db)
	return stores{accounts: s, items: s, carts: s, close: func() {
		dbInstance, _ := db.DB()
		_ = dbInstance.Close()
	}}, nil
}

func openDenylist(ctx context.Context, cfg config.RedisConfig) (jwt.Denylist, func(), error) {
	if !cfg.Enabled {
		return jwt.NewMemoryDenylist(), func() {}, nil
	}
	rdb, err := config.SetupRedisConnection(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return jwt.NewRedisDenylist(rdb), func() { _ = rdb.Close() }, nil
}

// 有設定金鑰檔時使用RS256，否則使用HS256
func newTokenService(cfg config.JWTConfig) (*jwt.Service, error) {
	if cfg.PrivateKeyPath != "" && cfg.PublicKeyPath != "" {
		return jwt.NewRSAFromFiles(cfg.PrivateKeyPath, cfg.PublicKeyPath, cfg.TTL)
	}
	return jwt.NewHMAC([]byte(cfg.Secret), cfg.TTL)
}
