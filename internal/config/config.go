package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper" // 导入 Viper
)

// Config 结构体包含所有应用的配置
type Config struct {
	Server        ServerConfig        `mapstructure:"server"` // `mapstructure` 标签用于Viper绑定结构体
	MySQL         MySQLConfig         `mapstructure:"mysql"`
	Redis         RedisConfig         `mapstructure:"redis"`
	MinIO         MinIOConfig         `mapstructure:"minio"`
	AliyunOSS     AliyunOSSConfig     `mapstructure:"aliyun_oss"`
	JWT           JWTConfig           `mapstructure:"jwt"`
	Storage       StorageConfig       `mapstructure:"storageconfig"`
	Log           LogConfig           `mapstructure:"log"`
	Share         ShareConfig         `mapstructure:"share"`
	Preview       PreviewConfig       `mapstructure:"preview"`
	Sweeper       SweeperConfig       `mapstructure:"sweeper"`
	Mail          MailConfig          `mapstructure:"mail"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // gin 模式: debug / release / test
	// 信任的反向代理,用于从 X-Forwarded-For 中解析客户端 IP
	TrustedProxies []string `mapstructure:"trusted_proxies"`
}

// MySQLConfig 数据库配置
type MySQLConfig struct {
	DSN          string `mapstructure:"dsn"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

// RedisConfig Redis配置
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// MinIOConfig MinIO配置
type MinIOConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	BucketName      string `mapstructure:"bucket_name"`
}

type AliyunOSSConfig struct {
	Endpoint        string `mapstructure:"endpoint"` // 例如: https://oss-cn-hangzhou.aliyuncs.com
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	BucketName      string `mapstructure:"bucket_name"`
}

// JWTConfig JWT配置
type JWTConfig struct {
	SecretKey string        `mapstructure:"secret_key"`
	ExpiresIn time.Duration `mapstructure:"expires_in"` // 单位: 分钟
	Issuer    string        `mapstructure:"issuer"`
}

// StorageConfig 选择 Blob 存储后端: minio / aliyun_oss / memory
type StorageConfig struct {
	Type string `mapstructure:"type"`
}

// zap日志配置
type LogConfig struct {
	OutputPath string `mapstructure:"output_path"`
	ErrorPath  string `mapstructure:"error_path"`
	Level      string `mapstructure:"level"`
}

// ShareConfig 分享链接配置
type ShareConfig struct {
	FrontendURL string `mapstructure:"frontend_url"` // 拼接分享链接的前端地址
	TokenBytes  int    `mapstructure:"token_bytes"`  // 随机 token 字节数
}

// PreviewConfig 水印预览缓存配置
type PreviewConfig struct {
	Cache      string        `mapstructure:"cache"` // redis / memory
	TTL        time.Duration `mapstructure:"ttl"`
	MaxEntries int           `mapstructure:"max_entries"` // 仅 memory 缓存使用
	Compress   bool          `mapstructure:"compress"`    // redis 缓存是否使用 zstd 压缩
}

// SweeperConfig 过期文件清理任务配置
type SweeperConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Spec      string `mapstructure:"spec"` // 带秒的 cron 表达式
	BatchSize int    `mapstructure:"batch_size"`
}

// MailConfig 分享通知邮件配置, provider 为 smtp 或 log
type MailConfig struct {
	Provider string `mapstructure:"provider"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

// ElasticsearchConfig 审计日志镜像索引配置
type ElasticsearchConfig struct {
	Enabled    bool     `mapstructure:"enabled"`
	Addresses  []string `mapstructure:"addresses"`
	Username   string   `mapstructure:"username"`
	Password   string   `mapstructure:"password"`
	AuditIndex string   `mapstructure:"audit_index"`
}

// LoadConfig 加载配置, 按默认路径查找 config.yaml
func LoadConfig() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")              // 配置文件名 (不带扩展名)
	v.SetConfigType("yaml")                // 配置文件类型
	v.AddConfigPath(".")                   // 在当前目录查找配置文件
	v.AddConfigPath("./configs")           // 也可以添加其他路径，例如 ./configs/
	v.AddConfigPath("/etc/go-fileshare/") // 生产环境常见路径
	return load(v)
}

// LoadConfigFrom 从指定文件加载配置
func LoadConfigFrom(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	// 读取环境变量，例如 GO_FILESHARE_SERVER_PORT 对应 server.port
	v.SetEnvPrefix("GO_FILESHARE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			// 配置文件格式错误等
			return nil, fmt.Errorf("read config file: %w", err)
		}
		// 配置文件未找到不是致命错误，依赖环境变量和默认值
		log.Println("Warning: config file not found, using environment variables or default values.")
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "release")
	v.SetDefault("mysql.dsn", "root:root@tcp(mysql:3306)/fileshare_db?charset=utf8mb4&parseTime=True&loc=UTC")
	v.SetDefault("mysql.max_idle_conns", 10)
	v.SetDefault("mysql.max_open_conns", 100)
	v.SetDefault("redis.addr", "redis:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("minio.endpoint", "minio:9000")
	v.SetDefault("minio.use_ssl", false)
	v.SetDefault("minio.bucket_name", "go-fileshare-bucket")
	v.SetDefault("jwt.expires_in", 60) // 60 分钟
	v.SetDefault("jwt.issuer", "go-fileshare")
	v.SetDefault("storageconfig.type", "minio")
	v.SetDefault("log.output_path", "logs/app.log")
	v.SetDefault("log.error_path", "logs/error.log")
	v.SetDefault("log.level", "info")
	v.SetDefault("share.frontend_url", "http://localhost:3000")
	v.SetDefault("share.token_bytes", 24)
	v.SetDefault("preview.cache", "redis")
	v.SetDefault("preview.ttl", 60*time.Second)
	v.SetDefault("preview.max_entries", 256)
	v.SetDefault("preview.compress", true)
	v.SetDefault("sweeper.enabled", true)
	v.SetDefault("sweeper.spec", "0 */3 * * * *")
	v.SetDefault("sweeper.batch_size", 500)
	v.SetDefault("mail.provider", "log")
	v.SetDefault("mail.port", 587)
	v.SetDefault("elasticsearch.enabled", false)
	v.SetDefault("elasticsearch.audit_index", "fileshare-access-audit")
}
