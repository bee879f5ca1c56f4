package core

import (
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kat-co/vala"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

type (
	Config struct {
		Env      string // DEV (default), TEST, QA, PROD
		Debug    bool
		TestMode bool
		Build    string
		WorkDir  string

		AppName          string
		SecretKey        string
		FrontendBaseURL  string
		DefaultFromEmail mail.Address
		RollbarToken     string

		Server   ServerConfig
		Database DatabaseConfig
		SMTP     SMTPConfig
		Sendgrid SendgridConfig
		Email    EmailConfig
		Summary  SummaryConfig
	}

	ServerConfig struct {
		Host               string
		Address            string
		JWTExpirationDelta time.Duration
		ShutdownTimeout    time.Duration
	}

	DatabaseConfig struct {
		Engine        string
		Name          string
		Host          string
		Port          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	SMTPConfig struct {
		Host     string
		Port     int
		User     string
		Password string
	}

	SendgridConfig struct {
		APIKey string
	}

	// EmailConfig holds the notification pipeline knobs.
	EmailConfig struct {
		InitialQueueDelay  time.Duration // initial schedule offset for enqueued rows
		MinGapPerRecipient time.Duration // min gap between two sends to the same address within a run
		RecipientCooldown  time.Duration // post-success cooldown per recipient
		ReceivingRateBlock time.Duration // address-wide suppression window on provider rate-limit
		SendDelay          time.Duration // pacing delay between sends in a queue run
		MaxAttempts        int           // per-row attempt budget
		MaxSendWorkers     int           // interactive send pool size
		SendQueueDepth     int           // interactive send pool queue depth
		UseSendPool        bool          // dispatch interactive sends through the pool
	}

	SummaryConfig struct {
		GeminiAPIKey  string
		GeminiModel   string
		GeminiAPIBase string
		OpenAIAPIKey  string
		OpenAIModel   string
		Timeout       time.Duration
	}
)

func (c DatabaseConfig) Address() string {
	return c.Host + ":" + c.Port
}

// NewConfig loads the configuration from config/.env.<env> (if present) and the environment.
func NewConfig() (*Config, error) {
	v := viper.New()
	v.SetTypeByDefaultValue(true)

	v.SetDefault("debug", true)
	v.SetDefault("appName", "SkillForge")
	v.SetDefault("secretKey", "kp2x-wer)enb$+57=dz&uoxh2(h!x)#*c2(#yg4h^$cegm2emy")
	v.SetDefault("frontendBaseUrl", "http://localhost:3000")
	v.SetDefault("defaultFromEmail", "noreply@localhost")
	v.SetDefault("serverHost", "localhost")
	v.SetDefault("serverAddress", ":8000")
	v.SetDefault("jwtExpirationDelta", 7*24*time.Hour)
	v.SetDefault("shutdownTimeout", 5*time.Second)

	v.SetDefault("databaseEngine", "postgres")
	v.SetDefault("databaseName", "skillforge")
	v.SetDefault("databaseHost", "localhost")
	v.SetDefault("databasePort", "5432")
	v.SetDefault("databaseDisableTls", false)

	v.SetDefault("smtpHost", "localhost")
	v.SetDefault("smtpPort", 25)

	v.SetDefault("emailInitialQueueDelay", 0*time.Second)
	v.SetDefault("emailMinGapPerRecipient", 5*time.Second)
	v.SetDefault("emailRecipientCooldown", 30*time.Minute)
	v.SetDefault("emailReceivingRateBlock", 24*time.Hour)
	v.SetDefault("emailSendDelay", 3*time.Second)
	v.SetDefault("emailMaxAttempts", 5)
	v.SetDefault("emailMaxSendWorkers", 5)
	v.SetDefault("emailSendQueueDepth", 100)
	v.SetDefault("emailUseSendPool", true)

	v.SetDefault("geminiApiBase", "https://generativelanguage.googleapis.com")
	v.SetDefault("geminiModel", "gemini-pro")
	v.SetDefault("openaiModel", "gpt-3.5-turbo")
	v.SetDefault("summaryTimeout", 20*time.Second)

	env := strings.ToUpper(os.Getenv("ENV"))
	if env == "" {
		env = "DEV"
	}
	v.SetEnvPrefix(env)

	// load .env if it exists (ignore if it does not)
	wd := Getwd()
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err = godotenv.Load(dotEnvPath); err != nil {
			return nil, errors.Wrapf(err, "loading %s", dotEnvPath)
		}
	} else if !os.IsNotExist(err) {
		return nil, errors.Wrapf(err, "checking %s", dotEnvPath)
	}
	v.AutomaticEnv()

	conf := &Config{
		Env:             env,
		Debug:           v.GetBool("debug"),
		TestMode:        env == "TEST",
		Build:           v.GetString("build"),
		WorkDir:         wd,
		AppName:         v.GetString("appName"),
		SecretKey:       v.GetString("secretKey"),
		FrontendBaseURL: v.GetString("frontendBaseUrl"),
		DefaultFromEmail: mail.Address{
			Name:    v.GetString("appName"),
			Address: v.GetString("defaultFromEmail"),
		},
		RollbarToken: v.GetString("rollbarToken"),
		Server: ServerConfig{
			Host:               v.GetString("serverHost"),
			Address:            v.GetString("serverAddress"),
			JWTExpirationDelta: v.GetDuration("jwtExpirationDelta"),
			ShutdownTimeout:    v.GetDuration("shutdownTimeout"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("databaseEngine"),
			Name:          v.GetString("databaseName"),
			Host:          v.GetString("databaseHost"),
			Port:          v.GetString("databasePort"),
			User:          v.GetString("databaseUser"),
			Password:      v.GetString("databasePassword"),
			AdminUser:     v.GetString("databaseAdminUser"),
			AdminPassword: v.GetString("databaseAdminPassword"),
			DisableTLS:    v.GetBool("databaseDisableTls"),
		},
		SMTP: SMTPConfig{
			Host:     v.GetString("smtpHost"),
			Port:     v.GetInt("smtpPort"),
			User:     v.GetString("smtpUser"),
			Password: v.GetString("smtpPassword"),
		},
		Sendgrid: SendgridConfig{APIKey: v.GetString("sendgridApiKey")},
		Email: EmailConfig{
			InitialQueueDelay:  v.GetDuration("emailInitialQueueDelay"),
			MinGapPerRecipient: v.GetDuration("emailMinGapPerRecipient"),
			RecipientCooldown:  v.GetDuration("emailRecipientCooldown"),
			ReceivingRateBlock: v.GetDuration("emailReceivingRateBlock"),
			SendDelay:          v.GetDuration("emailSendDelay"),
			MaxAttempts:        v.GetInt("emailMaxAttempts"),
			MaxSendWorkers:     v.GetInt("emailMaxSendWorkers"),
			SendQueueDepth:     v.GetInt("emailSendQueueDepth"),
			UseSendPool:        v.GetBool("emailUseSendPool"),
		},
		Summary: SummaryConfig{
			GeminiAPIKey:  v.GetString("geminiApiKey"),
			GeminiModel:   v.GetString("geminiModel"),
			GeminiAPIBase: v.GetString("geminiApiBase"),
			OpenAIAPIKey:  v.GetString("openaiApiKey"),
			OpenAIModel:   v.GetString("openaiModel"),
			Timeout:       v.GetDuration("summaryTimeout"),
		},
	}

	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return conf, nil
}

// Validate checks settings that have no usable zero value.
func (c *Config) Validate() error {
	checks := vala.BeginValidation().Validate(
		vala.StringNotEmpty(c.AppName, "appName"),
		vala.StringNotEmpty(c.SecretKey, "secretKey"),
		vala.StringNotEmpty(c.DefaultFromEmail.Address, "defaultFromEmail"),
		vala.StringNotEmpty(c.Database.Engine, "databaseEngine"),
		vala.StringNotEmpty(c.Database.Name, "databaseName"),
		vala.GreaterThan(c.Email.MaxAttempts, 0, "emailMaxAttempts"),
		vala.GreaterThan(c.Email.MaxSendWorkers, 0, "emailMaxSendWorkers"),
	)
	if checks != nil && len(checks.Errors) > 0 {
		return errors.New("config: " + strings.Join(checks.Errors, "; "))
	}
	return nil
}

// Getwd finds the project root (the directory holding go.mod).
// go-test changes the working directory to the package being tested; walking up
// keeps asset paths stable in both contexts.
func Getwd() string {
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	currDir := wd
	for {
		if _, err := os.Stat(filepath.Join(currDir, "go.mod")); err == nil {
			return currDir
		}
		newDir := filepath.Dir(currDir)
		if newDir == string(os.PathSeparator) || newDir == currDir {
			return wd
		}
		currDir = newDir
	}
}
