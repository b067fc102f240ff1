package initializers

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds runtime configuration read from the environment.
type Config struct {
	AppEnv      string   `envconfig:"APP_ENV" default:"development"`
	AppAddr     string   `envconfig:"APP_ADDR" default:":8080"`
	CORSOrigins []string `envconfig:"CORS_ORIGINS" default:"http://localhost:4200"`

	DBDriver string `envconfig:"DB_DRIVER" default:"mysql"`
	DBDSN    string `envconfig:"DB_DSN" default:"shop:shop@tcp(127.0.0.1:3306)/shop?charset=utf8mb4&parseTime=True&loc=Local"`

	UploadsDir       string `envconfig:"UPLOADS_DIR" default:"uploads"`
	PlaceholderImage string `envconfig:"PLACEHOLDER_IMAGE" default:"static/placeholder.png"`
	MaxUploadBytes   int64  `envconfig:"MAX_UPLOAD_BYTES" default:"5242880"`

	AdminPassword string        `envconfig:"ADMIN_PASSWORD" required:"true"`
	JWTSecret     string        `envconfig:"JWT_SECRET" required:"true"`
	JWTTTL        time.Duration `envconfig:"JWT_TTL" default:"24h"`

	RedisAddr       string        `envconfig:"REDIS_ADDR"`
	RedisPassword   string        `envconfig:"REDIS_PASSWORD"`
	RedisDB         int           `envconfig:"REDIS_DB" default:"0"`
	CatalogCacheTTL time.Duration `envconfig:"CATALOG_CACHE_TTL" default:"5m"`

	S3Bucket string `envconfig:"S3_BUCKET"`

	TelegramBotToken string `envconfig:"TELEGRAM_BOT_TOKEN"`
	TelegramChatID   string `envconfig:"TELEGRAM_CHAT_ID"`

	SMTPAddress       string `envconfig:"SMTP_ADDRESS"`
	SMTPHost          string `envconfig:"FROM_EMAIL_SMTP"`
	FromEmail         string `envconfig:"FROM_EMAIL"`
	FromEmailPassword string `envconfig:"FROM_EMAIL_PASSWORD"`
	OrderNotifyEmail  string `envconfig:"ORDER_NOTIFY_EMAIL"`

	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	LogEncoding string `envconfig:"LOG_ENCODING" default:"json"`
}

// LoadEnv reads a .env file when one is present. A missing file is fine;
// the process environment is used as is.
func LoadEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("error loading .env file: %w", err)
	}
	return nil
}

func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if cfg.AdminPassword == "" {
		return nil, errors.New("ADMIN_PASSWORD must not be empty")
	}
	if cfg.DBDriver != "mysql" && cfg.DBDriver != "sqlite" {
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}
	if len(cfg.JWTSecret) < 16 {
		return nil, errors.New("JWT_SECRET must be at least 16 characters")
	}
	return &cfg, nil
}

func (c *Config) IsProduction() bool {
	return c != nil && c.AppEnv == "production"
}

func (c *Config) TelegramEnabled() bool {
	return c.TelegramBotToken != "" && c.TelegramChatID != ""
}

func (c *Config) MailEnabled() bool {
	return c.SMTPAddress != "" && c.FromEmail != "" && c.OrderNotifyEmail != ""
}
