package generator

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
)

// Service 在 Generator 外层叠加有限重试与兜底内容
// 两个方法都不会失败：重试耗尽后返回兜底结果，回合因此永远不会卡死
type Service struct {
	inner    Generator
	maxTries uint
	timeout  time.Duration
}

func NewService(inner Generator, maxTries int, timeout time.Duration) *Service {
	if maxTries < 1 {
		maxTries = 1
	}

	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	return &Service{
		inner:    inner,
		maxTries: uint(maxTries),
		timeout:  timeout,
	}
}

// Scenario 生成一轮剧本，失败时退回兜底剧本
func (s *Service) Scenario(ctx context.Context, sc SessionContext) *Scenario {
	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	scenario, err := backoff.Retry(
		cctx,
		func() (*Scenario, error) {
			return s.inner.GenerateScenario(cctx, sc)
		},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(s.maxTries),
	)
	if err != nil {
		zap.L().Warn(
			"剧本生成失败，使用兜底剧本",
			zap.String("session_id", sc.SessionID),
			zap.Int("round", sc.Round),
			zap.Error(err),
		)

		return FallbackScenario(sc.Round)
	}

	return scenario
}

// Outcome 生成一轮结算，失败时退回兜底结算
func (s *Service) Outcome(
	ctx context.Context,
	sc SessionContext,
	winning Option,
	totals map[string]float64,
) *Outcome {
	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	outcome, err := backoff.Retry(
		cctx,
		func() (*Outcome, error) {
			return s.inner.GenerateOutcome(cctx, sc, winning, totals)
		},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(s.maxTries),
	)
	if err != nil {
		zap.L().Warn(
			"结算生成失败，使用兜底结算",
			zap.String("session_id", sc.SessionID),
			zap.Int("round", sc.Round),
			zap.Error(err),
		)

		return FallbackOutcome(sc.Round)
	}

	return outcome
}
