package main

import (
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"project-oversight-be/internal/api/http"
	"project-oversight-be/internal/broadcast"
	"project-oversight-be/internal/config"
	"project-oversight-be/internal/generator"
	"project-oversight-be/internal/logger"
	"project-oversight-be/internal/service"
	"project-oversight-be/internal/service/game"
	"project-oversight-be/internal/state"
	"project-oversight-be/internal/store"
	"project-oversight-be/internal/store/sqlite"
)

func main() {
	// .env 不存在时忽略，环境变量仍可直接注入
	godotenv.Load()

	// 加载配置
	cfg := config.InitConfig()

	// 初始化日志器
	logger.InitLogger(cfg.LogLevel)

	// 打开持久层
	st := openStore(cfg)
	defer st.Close()

	// 内容生成：OpenAI 兼容客户端外层叠加重试与兜底
	gen := generator.NewService(
		generator.NewClient(
			cfg.Generator.BaseURL,
			cfg.Generator.APIKey,
			cfg.Generator.Model,
			time.Duration(cfg.Generator.TimeoutSeconds)*time.Second,
		),
		cfg.Generator.MaxTries,
		time.Duration(cfg.Generator.TimeoutSeconds)*time.Second,
	)

	hub := broadcast.NewHub()

	sessionSvc := service.NewSessionService(hub, st, gen, rulesFromConfig(cfg.Game))
	defer sessionSvc.Close()

	// 组装应用状态
	appState := state.NewAppState(cfg, sessionSvc)

	// 启动服务器
	http.RunServer(appState)
}

func openStore(cfg *config.AppConfig) store.Store {
	if cfg.Store.Driver == "memory" {
		zap.S().Warn("使用内存存储，进程退出后会话记录即丢失")
		return store.NewMemoryStore()
	}

	st, err := sqlite.Open(cfg.Store.DSN)
	if err != nil {
		panic(err)
	}

	return st
}

func rulesFromConfig(gc config.GameConfig) game.Rules {
	rules := game.DefaultRules()

	if gc.MaxRounds > 0 {
		rules.MaxRounds = gc.MaxRounds
	}

	if gc.VoteTimerSeconds > 0 {
		rules.VoteTimer = time.Duration(gc.VoteTimerSeconds) * time.Second
	}

	rules.RequireAllReady = gc.RequireAllReady
	rules.Elimination = game.NewEliminationPolicy(gc.EliminationPolicy, gc.EliminationThreshold)

	baseline := make(map[string]int, len(game.ResourceNames))
	for i, name := range game.ResourceNames {
		baseline[name] = gc.Baseline[i]
	}

	rules.Baseline = baseline

	return rules
}
