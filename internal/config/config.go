package config

import (
	"fmt"

	"github.com/spf13/viper"
)

type GameConfig struct {
	MaxRounds            int    `mapstructure:"max_rounds"`
	VoteTimerSeconds     int    `mapstructure:"vote_timer_seconds"`
	RequireAllReady      bool   `mapstructure:"require_all_ready"`
	EliminationPolicy    string `mapstructure:"elimination_policy"`
	EliminationThreshold int    `mapstructure:"elimination_threshold"`
	Baseline             [5]int `mapstructure:"baseline"`
}

type GeneratorConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	APIKey         string `mapstructure:"api_key"`
	Model          string `mapstructure:"model"`
	MaxTries       int    `mapstructure:"max_tries"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

type StoreConfig struct {
	// driver 取 sqlite 或 memory
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type AppConfig struct {
	Host          string `mapstructure:"host"`
	Port          int    `mapstructure:"port"`
	LogLevel      string `mapstructure:"log_level"`
	PublicBaseURL string `mapstructure:"public_base_url"`

	Game      GameConfig      `mapstructure:"game"`
	Generator GeneratorConfig `mapstructure:"generator"`
	Store     StoreConfig     `mapstructure:"store"`
}

var cfg *AppConfig

func GetConfig() *AppConfig {
	if cfg == nil {
		cfg = InitConfig()
	}

	return cfg
}

func InitConfig() *AppConfig {
	v := viper.New()

	v.SetConfigFile("app_config")
	v.SetConfigType("json")
	v.AddConfigPath(".")

	setDefaults(v)

	// 密钥类配置允许仅由环境变量提供
	v.SetEnvPrefix("oversight")
	v.AutomaticEnv()
	v.BindEnv("generator.api_key", "OVERSIGHT_GENERATOR_API_KEY")

	if err := v.ReadInConfig(); err != nil {
		panic(fmt.Errorf("加载配置失败: %w", err))
	}

	var config AppConfig

	if err := v.Unmarshal(&config); err != nil {
		panic(fmt.Errorf("解析配置失败: %w", err))
	}

	return &config
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("port", 8080)
	v.SetDefault("log_level", "info")
	v.SetDefault("public_base_url", "http://localhost:8080")

	v.SetDefault("game.max_rounds", 10)
	v.SetDefault("game.vote_timer_seconds", 90)
	v.SetDefault("game.require_all_ready", true)
	v.SetDefault("game.elimination_policy", "dissent_streak")
	v.SetDefault("game.elimination_threshold", 2)
	v.SetDefault("game.baseline", []int{75, 60, 80, 90, 70})

	v.SetDefault("generator.base_url", "https://api.openai.com/v1")
	v.SetDefault("generator.model", "gpt-4o-mini")
	v.SetDefault("generator.max_tries", 3)
	v.SetDefault("generator.timeout_seconds", 20)

	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.dsn", "file:oversight.db")
}
