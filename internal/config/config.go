// Package config は環境変数からサーバーの設定を読み込む。
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config はサーバーの設定。
type Config struct {
	// Port はリッスンポート。
	Port string
	// DatabasePath はSQLiteのファイルパス。
	DatabasePath string
	// JWTSecret はトークンの署名鍵。
	JWTSecret string
	// FrontendURLs はCORSで許可するオリジン。
	FrontendURLs []string
	// LogLevel はログの出力レベル。
	LogLevel slog.Level
	// RealtimeHeartbeat はpingイベントを送る間隔。
	RealtimeHeartbeat time.Duration
	// RealtimeQueueSize は接続ごとの送信キューの長さ。
	RealtimeQueueSize int
	// PushTimeout は1回の通知配信にかける時間の上限。
	PushTimeout time.Duration
	// ShutdownTimeout は停止時に処理の完了を待つ時間。
	ShutdownTimeout time.Duration
	// DevTokens がtrueの場合は開発用のトークン発行APIを有効にする。
	DevTokens bool
}

// Default は既定の設定を返す。
func Default() Config {
	return Config{
		Port:              "8080",
		DatabasePath:      "tracker.db",
		JWTSecret:         "dev-secret-key",
		FrontendURLs:      []string{"http://localhost:4200"},
		LogLevel:          slog.LevelInfo,
		RealtimeHeartbeat: 15 * time.Second,
		RealtimeQueueSize: 64,
		PushTimeout:       5 * time.Second,
		ShutdownTimeout:   10 * time.Second,
		DevTokens:         true,
	}
}

// Load は環境変数から設定を読み込む。設定されていない項目は既定値を使う。
func Load() (Config, error) {
	return load(os.LookupEnv)
}

func load(lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()
	var errs []error

	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	duration := func(key string, dst *time.Duration) {
		v, ok := lookup(key)
		if !ok || v == "" {
			return
		}
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			errs = append(errs, fmt.Errorf("%s: 正の時間を指定してください: %q", key, v))
			return
		}
		*dst = d
	}

	str("PORT", &cfg.Port)
	str("DATABASE_PATH", &cfg.DatabasePath)
	str("JWT_SECRET", &cfg.JWTSecret)
	if v, ok := lookup("FRONTEND_URL"); ok && v != "" {
		cfg.FrontendURLs = splitList(v)
	}
	if v, ok := lookup("LOG_LEVEL"); ok && v != "" {
		if err := cfg.LogLevel.UnmarshalText([]byte(v)); err != nil {
			errs = append(errs, fmt.Errorf("LOG_LEVEL: %w", err))
		}
	}
	duration("REALTIME_HEARTBEAT", &cfg.RealtimeHeartbeat)
	duration("PUSH_TIMEOUT", &cfg.PushTimeout)
	duration("SHUTDOWN_TIMEOUT", &cfg.ShutdownTimeout)
	if v, ok := lookup("REALTIME_QUEUE_SIZE"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			errs = append(errs, fmt.Errorf("REALTIME_QUEUE_SIZE: 正の整数を指定してください: %q", v))
		} else {
			cfg.RealtimeQueueSize = n
		}
	}
	if v, ok := lookup("DEV_TOKENS"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("DEV_TOKENS: %w", err))
		} else {
			cfg.DevTokens = b
		}
	}

	if err := errors.Join(errs...); err != nil {
		return Config{}, fmt.Errorf("設定の読み込みに失敗: %w", err)
	}
	return cfg, nil
}

// splitList はカンマ区切りの値を分割する。
func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
