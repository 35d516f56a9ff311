package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"gopkg.in/yaml.v3"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"RecordStore/models"
)

const DefaultPath = "config/config.yaml"

// 範例設定檔中的密鑰，只允許在dev環境使用
const PlaceholderSecret = "change-me-in-production"

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	Env   string `yaml:"env"`
}

type StorageConfig struct {
	Driver string `yaml:"driver"` // memory 或 mysql
}

type DatabaseConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	Database string `yaml:"database"`
}

type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	Database int    `yaml:"database"`
}

type JWTConfig struct {
	TTL            time.Duration `yaml:"ttl"`
	Secret         string        `yaml:"secret"`
	PrivateKeyPath string        `yaml:"private_key_path"`
	PublicKeyPath  string        `yaml:"public_key_path"`
}

type StoreConfig struct {
	Timeout      time.Duration `yaml:"timeout"`
	StockRetries int           `yaml:"stock_retries"`
}

type BcryptConfig struct {
	Cost int `yaml:"cost"`
}

type BootstrapConfig struct {
	ManagerEmail    string `yaml:"manager_email"`
	ManagerPassword string `yaml:"manager_password"`
}

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Storage   StorageConfig   `yaml:"storage"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	JWT       JWTConfig       `yaml:"jwt"`
	Store     StoreConfig     `yaml:"store"`
	Bcrypt    BcryptConfig    `yaml:"bcrypt"`
	Bootstrap BootstrapConfig `yaml:"bootstrap"`
}

// 預設值，設定檔缺少的欄位沿用
func Default() Config {
	return Config{
		Server:  ServerConfig{Addr: ":3000", ShutdownTimeout: 10 * time.Second},
		Log:     LogConfig{Level: "info", Env: "dev"},
		Storage: StorageConfig{Driver: "memory"},
		JWT:     JWTConfig{TTL: 60 * time.Minute},
		Store:   StoreConfig{Timeout: 3 * time.Second, StockRetries: 5},
		Bcrypt:  BcryptConfig{Cost: 10},
	}
}

// 讀取設定檔，檔案不存在時使用預設值，最後套用環境變數
func LoadConfig(filename string) (Config, error) {
	config := Default()

	file, err := os.Open(filename)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return config, err
	default:
		defer file.Close()
		decoder := yaml.NewDecoder(file)
		if err := decoder.Decode(&config); err != nil {
			return config, fmt.Errorf("decode %s: %w", filename, err)
		}
	}

	applyEnv(&config)
	return config, config.Validate()
}

func applyEnv(config *Config) {
	config.Log.Env = getEnv("APP_ENV", config.Log.Env)
	config.Log.Level = getEnv("LOG_LEVEL", config.Log.Level)
	config.Server.Addr = getEnv("HTTP_ADDR", config.Server.Addr)
	config.JWT.Secret = getEnv("JWT_SECRET", config.JWT.Secret)
	config.Storage.Driver = getEnv("STORAGE_DRIVER", config.Storage.Driver)
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// 檢查設定是否可用
func (c Config) Validate() error {
	if c.JWT.TTL <= 0 {
		return errors.New("jwt.ttl must be positive")
	}
	if c.JWT.Secret == "" && (c.JWT.PrivateKeyPath == "" || c.JWT.PublicKeyPath == "") {
		return errors.New("jwt: either secret or private/public key paths are required")
	}
	usesSecret := c.JWT.PrivateKeyPath == "" || c.JWT.PublicKeyPath == ""
	if usesSecret && c.JWT.Secret == PlaceholderSecret && c.Log.Env != "dev" {
		return fmt.Errorf("jwt.secret is the sample value; set JWT_SECRET for env %q", c.Log.Env)
	}
	if c.Store.Timeout <= 0 {
		return errors.New("store.timeout must be positive")
	}
	if c.Store.StockRetries < 1 {
		return errors.New("store.stock_retries must be at least 1")
	}
	switch c.Storage.Driver {
	case "memory", "mysql":
	default:
		return fmt.Errorf("storage.driver %q is not supported", c.Storage.Driver)
	}
	return nil
}

func SetupMySQLConnection(config DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		config.Username,
		config.Password,
		config.Host,
		config.Port,
		config.Database,
	)

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	err = db.AutoMigrate(
		&models.Account{},
		&models.Item{},
		&models.Cart{},
		&models.CartLine{},
	)
	if err != nil {
		return nil, err
	}

	return db, nil
}

func SetupRedisConnection(ctx context.Context, config RedisConfig) (*redis.Client, error) {
	redisClient := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.Database,
	})

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		_ = redisClient.Close()
		return nil, err
	}

	return redisClient, nil
}
