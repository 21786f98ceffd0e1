package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig           `mapstructure:"app"`
	Server        ServerConfig        `mapstructure:"server"`
	Questionnaire QuestionnaireConfig `mapstructure:"questionnaire"`
	Camunda       CamundaConfig       `mapstructure:"camunda"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Integrations  IntegrationConfig   `mapstructure:"integrations"`
	Intake        IntakeConfig        `mapstructure:"intake"`
	Orders        OrdersConfig        `mapstructure:"orders"`
	Analytics     AnalyticsConfig     `mapstructure:"analytics"`
	Logging       LoggingConfig       `mapstructure:"logging"`
	Tracing       TracingConfig       `mapstructure:"tracing"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

// ServerConfig holds the session API listener and the ops (health/metrics) listener.
type ServerConfig struct {
	Address      string `mapstructure:"address"`
	OpsAddress   string `mapstructure:"ops_address"`
	SessionTTL   int    `mapstructure:"session_ttl_ms"`
	MaxBodyBytes int    `mapstructure:"max_body_bytes"`
}

// QuestionnaireConfig drives the engine.
type QuestionnaireConfig struct {
	FilingYear       int    `mapstructure:"filing_year"`
	AutoAdvanceDelay int    `mapstructure:"auto_advance_delay_ms"`
	Currency         string `mapstructure:"currency"`
}

type CamundaConfig struct {
	Enabled          bool   `mapstructure:"enabled"`
	BrokerAddress    string `mapstructure:"broker_address"`
	InquiryProcessID string `mapstructure:"inquiry_process_id"`
	MaxJobsActive    int    `mapstructure:"max_jobs_active"`
	Timeout          int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout   int    `mapstructure:"request_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Enabled   bool     `mapstructure:"enabled"`
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// IntegrationConfig holds settings for the CRM and AWS services.
type IntegrationConfig struct {
	Zoho struct {
		APIKey    string `mapstructure:"api_key"`
		AuthToken string `mapstructure:"oauth_token"`
		BaseURL   string `mapstructure:"base_url"`
	} `mapstructure:"zoho"`

	AWS struct {
		Region string `mapstructure:"region"`
		SES    struct {
			Enabled     bool   `mapstructure:"enabled"`
			FromEmail   string `mapstructure:"from_email"`
			OfficeEmail string `mapstructure:"office_email"`
		} `mapstructure:"ses"`
		SNS struct {
			Enabled  bool   `mapstructure:"enabled"`
			TopicARN string `mapstructure:"topic_arn"`
		} `mapstructure:"sns"`
	} `mapstructure:"aws"`
}

// IntakeConfig selects where manual-quote inquiries go.
type IntakeConfig struct {
	Backend   string `mapstructure:"backend"` // zoho | camunda
	DedupeTTL int    `mapstructure:"dedupe_ttl_ms"`
}

type OrdersConfig struct {
	CheckoutBaseURL string `mapstructure:"checkout_base_url"`
}

type AnalyticsConfig struct {
	QueueSize          int    `mapstructure:"queue_size"`
	Timeout            int    `mapstructure:"timeout_ms"`
	ElasticsearchIndex string `mapstructure:"elasticsearch_index"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// TracingConfig enables span export; an empty endpoint keeps spans local.
type TracingConfig struct {
	JaegerEndpoint string `mapstructure:"jaeger_endpoint"`
}

const (
	IntakeBackendZoho    = "zoho"
	IntakeBackendCamunda = "camunda"
)
