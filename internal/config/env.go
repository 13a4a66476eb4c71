package config

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/chatopsdesk/chatopsdesk/pkg/storage"
)

type BaseEnv struct {
	Env      string `envconfig:"ENV" default:"local"`
	HTTPHost string `envconfig:"HTTP_HOST" default:""`
	HTTPPort string `envconfig:"HTTP_PORT" default:"3000"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"debug"`
}

type RunnerEnv struct {
	// TaskTimeout bounds a single task pass. Zero disables the bound.
	TaskTimeout    time.Duration `envconfig:"TASK_TIMEOUT" default:"2m"`
	TaskStartDelay time.Duration `envconfig:"TASK_START_DELAY" default:"5ms"`
	Workers        int           `envconfig:"WORKERS" default:"8"`
}

type StorageEnv struct {
	Type    string `envconfig:"STORAGE_TYPE" default:"memory"`
	BaseDir string `envconfig:"STORAGE_BASE_DIR" default:".chatopsdesk/data"`
	// S3 settings (used when Type == "s3")
	S3Bucket string `envconfig:"S3_BUCKET"`
	S3Prefix string `envconfig:"S3_PREFIX" default:"chatopsdesk/"`
	S3Region string `envconfig:"S3_REGION" default:"ap-northeast-1"`
}

type TelemetryEnv struct {
	// OTLPEndpoint is a host:port for the OTLP/HTTP trace exporter. Empty
	// disables tracing.
	OTLPEndpoint string `envconfig:"OTLP_ENDPOINT"`
	OTLPInsecure bool   `envconfig:"OTLP_INSECURE" default:"true"`
	ServiceName  string `envconfig:"SERVICE_NAME" default:"chatopsdesk"`
}

type VAPIDEnv struct {
	VAPIDPublicKey  string `envconfig:"VAPID_PUBLIC_KEY"`
	VAPIDPrivateKey string `envconfig:"VAPID_PRIVATE_KEY"`
	VAPIDContact    string `envconfig:"VAPID_CONTACT" default:"mailto:chatops@localhost"`
}

type Env struct {
	BaseEnv
	RunnerEnv
	StorageEnv
	TelemetryEnv
	VAPIDEnv
}

const namespace = "CHATOPS"

func LoadEnv() (*Env, error) {
	var env Env
	if err := envconfig.Process(namespace, &env); err != nil {
		return nil, fmt.Errorf("failed to load env: %w", err)
	}
	return &env, nil
}

// DotenvPath is read before LoadEnv so that the dotenv file can itself
// supply CHATOPS_ settings.
func DotenvPath() string {
	if p := os.Getenv(namespace + "_DOTENV_PATH"); p != "" {
		return p
	}
	return ".env"
}

func (e *BaseEnv) SlogLevel() slog.Level {
	if e == nil {
		return slog.LevelDebug
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(e.LogLevel)); err != nil {
		return slog.LevelDebug
	}
	return level
}

func (e *BaseEnv) Addr() string {
	return e.HTTPHost + ":" + e.HTTPPort
}

func (e *StorageEnv) Options() storage.Options {
	return storage.Options{
		Type:     e.Type,
		BaseDir:  e.BaseDir,
		S3Bucket: e.S3Bucket,
		S3Prefix: e.S3Prefix,
		S3Region: e.S3Region,
	}
}
