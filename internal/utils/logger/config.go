// internal/utils/logger/config.go
package logger

import "github.com/rovshanmuradov/solana-market-nexus/internal/config"

type Config struct {
	LogFile     string
	MaxSize     int  // мегабайты
	MaxAge      int  // дни
	MaxBackups  int  // количество файлов
	Compress    bool // сжимать ротированные файлы
	Development bool
}

// DefaultConfig возвращает конфигурацию по умолчанию
func DefaultConfig() *Config {
	return &Config{
		LogFile:     "nexus.log",
		MaxSize:     100,
		MaxAge:      7,
		MaxBackups:  3,
		Compress:    true,
		Development: false,
	}
}

// FromConfig переносит секцию log из общей конфигурации сервиса.
func FromConfig(cfg config.LogConfig) *Config {
	out := DefaultConfig()
	if cfg.File != "" {
		out.LogFile = cfg.File
	}
	if cfg.MaxSize > 0 {
		out.MaxSize = cfg.MaxSize
	}
	if cfg.MaxAge > 0 {
		out.MaxAge = cfg.MaxAge
	}
	if cfg.MaxBackups > 0 {
		out.MaxBackups = cfg.MaxBackups
	}
	out.Compress = cfg.Compress
	out.Development = cfg.Development
	return out
}
