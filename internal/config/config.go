package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Configはアプリ全体の設定
type Config struct {
	Port string // サーバーポート（8080）

	DatabaseURL string // 空ならPOSTGRES_*から組み立てる

	JWTSecret string // IdPのJWT検証シークレット
	GoEnv     string // dev/prod
	FEURL     string // フロントURL（決済後のリダイレクト先）

	StripeSecretKey     string
	StripeWebhookSecret string
	Currency            string // usd, jpy ...

	CronSecret           string        // 定期実行（reconcile）のBearer
	ReconcileGrace       time.Duration // webhookと競合しないための猶予
	ReconcileConcurrency int
	ReconcileBatch       int

	RedisAddr string // 空ならsweepロックなし
}

func (c Config) IsDev() bool {
	return c.GoEnv == "" || c.GoEnv == "dev"
}

// .envがあれば読み込んでから環境変数を読む
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}

	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("PORT", "8080")
	v.SetDefault("GO_ENV", "dev")
	v.SetDefault("CURRENCY", "usd")
	v.SetDefault("RECONCILE_GRACE", "10m")
	v.SetDefault("RECONCILE_CONCURRENCY", 4)
	v.SetDefault("RECONCILE_BATCH", 100)
	v.SetDefault("POSTGRES_HOST", "localhost")
	v.SetDefault("POSTGRES_PORT", "5432")
	v.SetDefault("POSTGRES_USER", "postgres")
	v.SetDefault("POSTGRES_PASSWORD", "postgres")
	v.SetDefault("POSTGRES_DB", "app")
	v.SetDefault("POSTGRES_SSLMODE", "disable")

	cfg := Config{
		Port:        v.GetString("PORT"),
		DatabaseURL: v.GetString("DATABASE_URL"),

		JWTSecret: v.GetString("JWT_SECRET"),
		GoEnv:     v.GetString("GO_ENV"),
		FEURL:     v.GetString("FE_URL"),

		StripeSecretKey:     v.GetString("STRIPE_SECRET_KEY"),
		StripeWebhookSecret: v.GetString("STRIPE_WEBHOOK_SECRET"),
		Currency:            v.GetString("CURRENCY"),

		CronSecret:           v.GetString("CRON_SECRET"),
		ReconcileGrace:       v.GetDuration("RECONCILE_GRACE"),
		ReconcileConcurrency: v.GetInt("RECONCILE_CONCURRENCY"),
		ReconcileBatch:       v.GetInt("RECONCILE_BATCH"),

		RedisAddr: v.GetString("REDIS_ADDR"),
	}

	// DATABASE_URL があれば最優先で使う
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = fmt.Sprintf(
			"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			v.GetString("POSTGRES_HOST"),
			v.GetString("POSTGRES_PORT"),
			v.GetString("POSTGRES_USER"),
			v.GetString("POSTGRES_PASSWORD"),
			v.GetString("POSTGRES_DB"),
			v.GetString("POSTGRES_SSLMODE"),
		)
	}

	//必須チェック
	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.FEURL == "" {
		return Config{}, fmt.Errorf("FE_URL is required")
	}
	if cfg.StripeSecretKey == "" {
		return Config{}, fmt.Errorf("STRIPE_SECRET_KEY is required")
	}
	if cfg.StripeWebhookSecret == "" {
		return Config{}, fmt.Errorf("STRIPE_WEBHOOK_SECRET is required")
	}
	if cfg.CronSecret == "" {
		return Config{}, fmt.Errorf("CRON_SECRET is required")
	}
	if cfg.ReconcileGrace <= 0 {
		return Config{}, fmt.Errorf("RECONCILE_GRACE must be positive")
	}
	if cfg.ReconcileConcurrency < 1 {
		return Config{}, fmt.Errorf("RECONCILE_CONCURRENCY must be >= 1")
	}
	if cfg.ReconcileBatch < 1 {
		return Config{}, fmt.Errorf("RECONCILE_BATCH must be >= 1")
	}

	return cfg, nil
}
