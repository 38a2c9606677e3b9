// Package logger 初始化进程级的全局 zap 日志器
// 各包通过 zap.L()/zap.S() 取用，不在结构体之间传递日志器实例
package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// InitLogger 按配置的级别构建日志器并替换全局实例
// 级别字符串不合法时落到 info
func InitLogger(logLevel string) {
	cfg := zap.NewDevelopmentConfig()
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	level, err := zapcore.ParseLevel(logLevel)
	if err != nil {
		level = zapcore.InfoLevel
	}

	cfg.Level.SetLevel(level)

	lgr, err := cfg.Build()
	if err != nil {
		panic(fmt.Errorf("构建日志器失败: %w", err))
	}

	zap.ReplaceGlobals(lgr)
}
