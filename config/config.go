package config

import (
	"os"
	"strconv"
)

// Config 应用配置
type Config struct {
	Port     int
	MongoURI string
	MongoDB  string
	JWTKey   string
	Debug    bool

	// 分析重算调度配置
	RecalcIntervalMinutes int
	DisableScheduler      bool

	// 邮件营销配置
	TrackingBaseURL string
	SenderEmail     string
	SenderName      string
	SendBatchSize   int
}

// LoadConfig 从环境变量加载配置
func LoadConfig() *Config {
	port, _ := strconv.Atoi(getEnv("PORT", "8080"))
	recalcInterval, _ := strconv.Atoi(getEnv("RECALC_INTERVAL_MINUTES", "60"))
	batchSize, _ := strconv.Atoi(getEnv("SEND_BATCH_SIZE", "50"))

	return &Config{
		Port:     port,
		MongoURI: getEnv("MONGO_URI", "mongodb://127.0.0.1:27017/crm_marketing"),
		MongoDB:  getEnv("MONGO_DB", "crm_marketing"),
		JWTKey:   getEnv("JWT_KEY", "your-secret-key"), // 实际环境应替换为安全密钥
		Debug:    getEnv("GIN_MODE", "debug") == "debug",

		RecalcIntervalMinutes: recalcInterval,
		DisableScheduler:      getEnv("DISABLE_SCHEDULER", "") == "true",

		TrackingBaseURL: getEnv("TRACKING_BASE_URL", "http://localhost:8080"),
		SenderEmail:     getEnv("SENDER_EMAIL", "marketing@example.com"),
		SenderName:      getEnv("SENDER_NAME", "营销中心"),
		SendBatchSize:   batchSize,
	}
}

// getEnv 获取环境变量，如果不存在则返回默认值
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}
