package config

import (
	"encoding/json"
	"errors"
	"os"
	"strconv"
)

// DefaultFile 是端口覆盖文件的默认路径,admin_change_port 会重写它。
const DefaultFile = "config.json"

type Config struct {
	Port        string
	DatabaseDSN string
	Env         string
	// File 记录端口覆盖文件的位置,便于测试注入临时路径。
	File string
}

// fileConfig 对应磁盘上的 JSON 覆盖文件,只承载可被管理端修改的字段。
type fileConfig struct {
	Port int `json:"port"`
}

func getenv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

// Load 先读环境变量,再用覆盖文件(若存在)中的端口覆盖。
func Load() Config {
	cfg := Config{
		Port:        getenv("APP_PORT", "3001"),
		DatabaseDSN: getenv("DATABASE_DSN", "host=localhost user=postgres password=postgres dbname=simpletalk port=5432 sslmode=disable TimeZone=UTC"),
		Env:         getenv("APP_ENV", "dev"),
		File:        getenv("APP_CONFIG_FILE", DefaultFile),
	}
	if data, err := os.ReadFile(cfg.File); err == nil {
		var fc fileConfig
		if err := json.Unmarshal(data, &fc); err == nil && fc.Port > 0 && fc.Port < 65536 {
			cfg.Port = strconv.Itoa(fc.Port)
		}
	}
	return cfg
}

// SavePort 把新端口写入覆盖文件,下次启动生效。
func SavePort(path string, port int) error {
	if port <= 0 || port > 65535 {
		return errors.New("port out of range")
	}
	data, err := json.MarshalIndent(fileConfig{Port: port}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func Validate(cfg Config) error {
	if cfg.Port == "" {
		return errors.New("port must not be empty")
	}
	if p, err := strconv.Atoi(cfg.Port); err != nil || p <= 0 || p > 65535 {
		return errors.New("port must be a number in 1..65535")
	}
	if cfg.DatabaseDSN == "" {
		return errors.New("database dsn must not be empty")
	}
	return nil
}
