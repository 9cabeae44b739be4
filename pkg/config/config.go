package config

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

type Config struct {
	App struct {
		Env       string `env:"APP_ENV" env-default:"development"`
		Port      int    `env:"APP_PORT" env-default:"8080"`
		SentryUrl string `env:"SENTRY_URL"`
	}
	Log struct {
		Level string `env:"LOG_LEVEL" env-default:"info"`
		File  string `env:"LOG_FILE"`
	}
	Postgres struct {
		Port          int    `env:"POSTGRES_PORT" env-default:"5432"`
		Host          string `env:"POSTGRES_HOST" env-default:"localhost"`
		User          string `env:"POSTGRES_USER"`
		Pass          string `env:"POSTGRES_PASS"`
		Name          string `env:"POSTGRES_NAME"`
		SslMode       string `env:"POSTGRES_SSL_MODE" env-default:"disable"`
		MigrationsDir string `env:"POSTGRES_MIGRATIONS_DIR" env-default:"internal/migrations"`
	}
	Minio struct {
		Endpoint      string `env:"MINIO_ENDPOINT" env-default:"localhost:9000"`
		AccessKey     string `env:"MINIO_ACCESS_KEY"`
		SecretKey     string `env:"MINIO_SECRET_KEY"`
		Bucket        string `env:"MINIO_BUCKET" env-default:"stories"`
		UseSSL        bool   `env:"MINIO_USE_SSL" env-default:"false"`
		Region        string `env:"MINIO_REGION" env-default:"us-east-1"`
		PublicBaseURL string `env:"MINIO_PUBLIC_BASE_URL"`
	}
	Transcode struct {
		FFmpegPath   string        `env:"FFMPEG_PATH" env-default:"ffmpeg"`
		TempDir      string        `env:"TRANSCODE_TEMP_DIR"`
		MaxDuration  time.Duration `env:"TRANSCODE_MAX_DURATION" env-default:"15s"`
		MaxSizeBytes int64         `env:"TRANSCODE_MAX_SIZE_BYTES" env-default:"52428800"`
		Workers      int           `env:"TRANSCODE_WORKERS" env-default:"4"`
	}
	Publish struct {
		ProgressSteps int           `env:"PUBLISH_PROGRESS_STEPS" env-default:"10"`
		StepDelay     time.Duration `env:"PUBLISH_STEP_DELAY" env-default:"200ms"`
		ImageDuration time.Duration `env:"PUBLISH_IMAGE_DURATION" env-default:"15s"`
		StoryTTL      time.Duration `env:"PUBLISH_STORY_TTL" env-default:"24h"`
		UploadRetries uint64        `env:"PUBLISH_UPLOAD_RETRIES" env-default:"3"`
	}
	Playback struct {
		TickInterval    time.Duration `env:"PLAYBACK_TICK_INTERVAL" env-default:"50ms"`
		PeekPause       time.Duration `env:"PLAYBACK_PEEK_PAUSE" env-default:"100ms"`
		DismissSwipe    float64       `env:"PLAYBACK_DISMISS_SWIPE" env-default:"150"`
		ProfileSwipe    float64       `env:"PLAYBACK_PROFILE_SWIPE" env-default:"50"`
		NavigationSwipe float64       `env:"PLAYBACK_NAVIGATION_SWIPE" env-default:"100"`
	}
	Capture struct {
		FocusIndicator time.Duration `env:"CAPTURE_FOCUS_INDICATOR" env-default:"1s"`
	}
	Profile struct {
		CreatorID   string `env:"PROFILE_CREATOR_ID" env-default:"local-creator"`
		CreatorName string `env:"PROFILE_CREATOR_NAME" env-default:"me"`
		ViewerID    string `env:"PROFILE_VIEWER_ID" env-default:"local-creator"`
	}
	Expiry struct {
		SweepInterval time.Duration `env:"EXPIRY_SWEEP_INTERVAL" env-default:"1h"`
	}
	Ingest struct {
		RateRequests int           `env:"INGEST_RATE_REQUESTS" env-default:"5"`
		RatePer      time.Duration `env:"INGEST_RATE_PER" env-default:"1m"`
		RateBurst    int           `env:"INGEST_RATE_BURST" env-default:"3"`
		JobRetention time.Duration `env:"INGEST_JOB_RETENTION" env-default:"1h"`
	}
}

// GetDSN returns the postgres connection string used by goose and lib/pq.
func (c *Config) GetDSN() string {
	return fmt.Sprintf("dbname=%s user=%s password=%s host=%s port=%d sslmode=%s",
		c.Postgres.Name, c.Postgres.User, c.Postgres.Pass, c.Postgres.Host, c.Postgres.Port, c.Postgres.SslMode,
	)
}

var (
	once sync.Once
	cfg  *Config
)

func New() (*Config, error) {
	once.Do(func() {
		// .env is optional; the process environment always wins.
		_ = godotenv.Load()

		cfg = &Config{}
		if err := cleanenv.ReadEnv(cfg); err != nil {
			help, _ := cleanenv.GetDescription(cfg, nil)
			log.Fatalf("Failed to read configuration: %v\n%v", err, help)
		}
	})
	return cfg, nil
}

// Default returns a configuration populated only from env-default tags.
// Tests and one-shot CLI commands use it when no environment is available.
func Default() *Config {
	c := &Config{}
	_ = cleanenv.ReadEnv(c)
	return c
}
