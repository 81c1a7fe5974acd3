package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"clinical-dashboard/internal/agent"
)

type Config struct {
	Port           string        `mapstructure:"PORT"`
	Env            string        `mapstructure:"ENV"`
	DatabaseURL    string        `mapstructure:"DATABASE_URL"`
	MigrationsDir  string        `mapstructure:"MIGRATIONS_DIR"`
	Provider       string        `mapstructure:"PROVIDER"`
	OpenAIKey      string        `mapstructure:"OPENAI_API_KEY"`
	OpenAIModel    string        `mapstructure:"OPENAI_MODEL"`
	SOAPDelay      time.Duration `mapstructure:"SOAP_DELAY"`
	DiagnosisDelay time.Duration `mapstructure:"DIAGNOSIS_DELAY"`
	DischargeDelay time.Duration `mapstructure:"DISCHARGE_DELAY"`
	ReplyDelay     time.Duration `mapstructure:"REPLY_DELAY"`
	AttendingName  string        `mapstructure:"ATTENDING_NAME"`
	STTURL         string        `mapstructure:"STT_URL"`
	STTLanguage    string        `mapstructure:"STT_LANGUAGE"`
	TelegramToken  string        `mapstructure:"TELEGRAM_BOT_TOKEN"`
	DoctorChatID   int64         `mapstructure:"DOCTOR_CHAT_ID"`
	ReportFont     string        `mapstructure:"REPORT_FONT"`
	NoticeBuffer   int           `mapstructure:"NOTICE_BUFFER"`
	RateLimitRPS   float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int           `mapstructure:"RATE_LIMIT_BURST"`
	SessionIdleTTL time.Duration `mapstructure:"SESSION_IDLE_TTL"`
}

var keys = []string{
	"PORT", "ENV", "DATABASE_URL", "MIGRATIONS_DIR", "PROVIDER", "OPENAI_API_KEY", "OPENAI_MODEL",
	"SOAP_DELAY", "DIAGNOSIS_DELAY", "DISCHARGE_DELAY", "REPLY_DELAY", "ATTENDING_NAME",
	"STT_URL", "STT_LANGUAGE", "TELEGRAM_BOT_TOKEN", "DOCTOR_CHAT_ID", "REPORT_FONT", "NOTICE_BUFFER",
	"RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "SESSION_IDLE_TTL",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	d := agent.DefaultDelays()
	v.SetDefault("PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("MIGRATIONS_DIR", "migrations")
	v.SetDefault("PROVIDER", "simulated")
	v.SetDefault("SOAP_DELAY", d.SOAP)
	v.SetDefault("DIAGNOSIS_DELAY", d.Diagnosis)
	v.SetDefault("DISCHARGE_DELAY", d.Discharge)
	v.SetDefault("REPLY_DELAY", d.Reply)
	v.SetDefault("ATTENDING_NAME", agent.DefaultAttending)
	v.SetDefault("NOTICE_BUFFER", 20)
	v.SetDefault("RATE_LIMIT_RPS", 20)
	v.SetDefault("RATE_LIMIT_BURST", 40)
	v.SetDefault("SESSION_IDLE_TTL", 30*time.Minute)
	v.SetDefault("STT_LANGUAGE", "en")

	// Bind explicitly so Unmarshal sees env-only keys
	for _, k := range keys {
		v.BindEnv(k)
	}

	// .env is optional
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// Delays returns the simulated provider's latencies.
func (c *Config) Delays() agent.Delays {
	return agent.Delays{
		SOAP:      c.SOAPDelay,
		Diagnosis: c.DiagnosisDelay,
		Discharge: c.DischargeDelay,
		Reply:     c.ReplyDelay,
	}
}

// ShareEnabled reports whether exports can be sent to the doctor's chat.
func (c *Config) ShareEnabled() bool {
	return c.TelegramToken != "" && c.DoctorChatID != 0
}

func (c *Config) Validate() error {
	switch c.Provider {
	case "simulated":
	case "openai":
		if c.OpenAIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required when PROVIDER is \"openai\"")
		}
	default:
		return fmt.Errorf("PROVIDER must be \"simulated\" or \"openai\", got %q", c.Provider)
	}

	for name, d := range map[string]time.Duration{
		"SOAP_DELAY":      c.SOAPDelay,
		"DIAGNOSIS_DELAY": c.DiagnosisDelay,
		"DISCHARGE_DELAY": c.DischargeDelay,
		"REPLY_DELAY":     c.ReplyDelay,
	} {
		if d < 0 {
			return fmt.Errorf("%s must not be negative, got %s", name, d)
		}
	}

	if c.TelegramToken != "" && c.DoctorChatID == 0 {
		return fmt.Errorf("DOCTOR_CHAT_ID is required when TELEGRAM_BOT_TOKEN is set")
	}
	if c.SessionIdleTTL < 0 {
		return fmt.Errorf("SESSION_IDLE_TTL must not be negative, got %s", c.SessionIdleTTL)
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0 {
		return fmt.Errorf("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive")
	}
	return nil
}
