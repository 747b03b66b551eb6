// Package config 提供 TOML 配置加载、环境变量覆盖与默认值
package config

import (
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/wyfcoding/claimscortex/pkg/logger"
)

// Config 服务配置结构
type Config struct {
	// 服务名称
	ServiceName string `mapstructure:"service_name"`
	// 服务版本
	Version string `mapstructure:"version"`
	// 环境：dev, staging, prod
	Environment string `mapstructure:"environment"`
	// HTTP 服务配置
	HTTP HTTPConfig `mapstructure:"http"`
	// 数据库配置
	Database DatabaseConfig `mapstructure:"database"`
	// Kafka 配置
	Kafka KafkaConfig `mapstructure:"kafka"`
	// 日志配置
	Logger logger.Config `mapstructure:"logger"`
	// 指标配置
	Metrics MetricsConfig `mapstructure:"metrics"`
	// AI 推理服务配置
	AI AIConfig `mapstructure:"ai"`
	// 保单存储服务配置
	PolicyStore PolicyStoreConfig `mapstructure:"policystore"`
	// 欺诈评分配置
	Scoring ScoringConfig `mapstructure:"scoring"`
	// 阶段编排配置
	Workflow WorkflowConfig `mapstructure:"workflow"`
}

// HTTPConfig HTTP 服务配置
type HTTPConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	// 驱动：mysql
	Driver string `mapstructure:"driver"`
	// 数据源名称
	DSN string `mapstructure:"dsn"`
	// 最大连接数
	MaxOpenConns int `mapstructure:"max_open_conns"`
	// 最大空闲连接数
	MaxIdleConns int `mapstructure:"max_idle_conns"`
	// 连接最大生命周期（秒）
	ConnMaxLifetime int `mapstructure:"conn_max_lifetime"`
	// 是否启用 SQL 日志
	LogEnabled bool `mapstructure:"log_enabled"`
	// 慢查询阈值（毫秒）
	SlowQueryThreshold int `mapstructure:"slow_query_threshold"`
}

// KafkaConfig Kafka 配置
type KafkaConfig struct {
	// Broker 地址列表
	Brokers []string `mapstructure:"brokers"`
	// 裁决事件主题
	DecisionTopic string `mapstructure:"decision_topic"`
	// 发送最大重试次数
	MaxRetries int `mapstructure:"max_retries"`
	// 重试退避（毫秒）
	RetryBackoff int `mapstructure:"retry_backoff"`
	// Outbox 扫描间隔（毫秒）
	RelayInterval int `mapstructure:"relay_interval"`
	// 是否启用事件中继
	Enabled bool `mapstructure:"enabled"`
}

// MetricsConfig 指标配置
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// AIConfig AI 推理服务配置
type AIConfig struct {
	// 服务端点
	Endpoint string `mapstructure:"endpoint"`
	// 单次调用超时（毫秒）
	Timeout int `mapstructure:"timeout"`
	// 熔断器打开前允许的连续失败次数
	BreakerFailures int `mapstructure:"breaker_failures"`
	// 熔断器打开持续时间（秒）
	BreakerTimeout int `mapstructure:"breaker_timeout"`
}

// PolicyStoreConfig 保单存储服务配置
type PolicyStoreConfig struct {
	// 服务端点
	Endpoint string `mapstructure:"endpoint"`
	// 单次调用超时（毫秒）
	Timeout int `mapstructure:"timeout"`
}

// ScoringConfig 欺诈评分配置。权重为产品确认的策略常量，缺省值不可随意调整
type ScoringConfig struct {
	// 结构化信号权重
	InjuryWeight       int `mapstructure:"injury_weight"`
	PropertyWeight     int `mapstructure:"property_weight"`
	DescriptionWeight  int `mapstructure:"description_weight"`
	CompletenessWeight int `mapstructure:"completeness_weight"`
	// 描述长度阈值（字符）
	DescriptionLength int `mapstructure:"description_length"`
	// 结构分与 AI 信号的混合比例
	StructuralBlend float64 `mapstructure:"structural_blend"`
	AIBlend         float64 `mapstructure:"ai_blend"`
	// 风险等级阈值（含下界）
	MediumScore int `mapstructure:"medium_score"`
	HighScore   int `mapstructure:"high_score"`
	// 置信度
	BaseConfidence     float64 `mapstructure:"base_confidence"`
	FallbackConfidence float64 `mapstructure:"fallback_confidence"`
}

// WorkflowConfig 阶段编排配置
type WorkflowConfig struct {
	// 单阶段超时（毫秒）
	StageTimeout int `mapstructure:"stage_timeout"`
	// 单阶段最大尝试次数（含首次）
	MaxAttempts int `mapstructure:"max_attempts"`
	// 指数退避初始间隔（毫秒）
	BackoffInitial int `mapstructure:"backoff_initial"`
	// 指数退避最大间隔（毫秒）
	BackoffMax int `mapstructure:"backoff_max"`
}

// Load 从 TOML 文件加载配置，支持环境变量覆盖
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(configPath)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		if _, statErr := os.Stat(configPath); statErr == nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// 配置文件缺失时使用默认值 + 环境变量
	}

	v.SetEnvPrefix("APP")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// Validate 验证配置的有效性
func (c *Config) Validate() error {
	if c.ServiceName == "" {
		return fmt.Errorf("service_name is required")
	}
	if c.Environment == "" {
		c.Environment = "dev"
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTP.Port)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database DSN is required")
	}
	if c.AI.Endpoint == "" {
		return fmt.Errorf("ai.endpoint is required")
	}
	if c.PolicyStore.Endpoint == "" {
		return fmt.Errorf("policystore.endpoint is required")
	}
	if math.Abs(c.Scoring.StructuralBlend+c.Scoring.AIBlend-1.0) > 1e-9 {
		return fmt.Errorf("scoring blend weights must sum to 1.0")
	}
	if c.Scoring.MediumScore >= c.Scoring.HighScore {
		return fmt.Errorf("scoring.medium_score must be below scoring.high_score")
	}
	if c.Workflow.MaxAttempts <= 0 {
		return fmt.Errorf("workflow.max_attempts must be positive")
	}
	return nil
}

// setDefaults 设置默认值
func setDefaults(v *viper.Viper) {
	v.SetDefault("service_name", "claims")
	v.SetDefault("version", "1.0.0")
	v.SetDefault("environment", "dev")

	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.read_timeout", 30)
	v.SetDefault("http.write_timeout", 30)

	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 300)
	v.SetDefault("database.log_enabled", false)
	v.SetDefault("database.slow_query_threshold", 1000)

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.decision_topic", "claims.decisions")
	v.SetDefault("kafka.max_retries", 3)
	v.SetDefault("kafka.retry_backoff", 100)
	v.SetDefault("kafka.relay_interval", 1000)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")
	v.SetDefault("logger.output", "stdout")
	v.SetDefault("logger.file_path", "logs/claims.log")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 10)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.with_caller", false)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("ai.timeout", 5000)
	v.SetDefault("ai.breaker_failures", 5)
	v.SetDefault("ai.breaker_timeout", 30)

	v.SetDefault("policystore.timeout", 3000)

	v.SetDefault("scoring.injury_weight", 40)
	v.SetDefault("scoring.property_weight", 30)
	v.SetDefault("scoring.description_weight", 20)
	v.SetDefault("scoring.completeness_weight", 10)
	v.SetDefault("scoring.description_length", 100)
	v.SetDefault("scoring.structural_blend", 0.6)
	v.SetDefault("scoring.ai_blend", 0.4)
	v.SetDefault("scoring.medium_score", 30)
	v.SetDefault("scoring.high_score", 70)
	v.SetDefault("scoring.base_confidence", 0.85)
	v.SetDefault("scoring.fallback_confidence", 0.5)

	v.SetDefault("workflow.stage_timeout", 10000)
	v.SetDefault("workflow.max_attempts", 3)
	v.SetDefault("workflow.backoff_initial", 200)
	v.SetDefault("workflow.backoff_max", 5000)
}

// GetEnv 获取环境变量，支持默认值
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
