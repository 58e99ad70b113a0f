package models

// Config holds the full ofkb configuration read from ofkb.yaml via Viper.
type Config struct {
	// Board selects which configured backend a run talks to.
	Board    string `yaml:"board" mapstructure:"board"`
	LogLevel string `yaml:"log_level" mapstructure:"log_level"`
	// SyncPrefix is the naming convention that forces a task to sync as a
	// unit despite having children (historically "WF" for waiting-for
	// lists).
	SyncPrefix string `yaml:"sync_prefix" mapstructure:"sync_prefix"`
	// WebhookURL, when set, receives a JSON summary of every run.
	WebhookURL string `yaml:"webhook_url,omitempty" mapstructure:"webhook_url"`

	OmniFocus OmniFocusConfig        `yaml:"omnifocus" mapstructure:"omnifocus"`
	Boards    map[string]BoardConfig `yaml:"boards" mapstructure:"boards"`
}

// OmniFocusConfig locates the OmniFocus cache database.
type OmniFocusConfig struct {
	// DBPath overrides the default cache location under ~/Library.
	DBPath string `yaml:"db_path,omitempty" mapstructure:"db_path"`
}

// BoardConfig holds the per-backend settings. Credential fields are
// interpreted per backend: LeanKit uses Account/Email/Password, KanbanFlow
// and Zenkit use Token, Trello uses AppKey+Token.
type BoardConfig struct {
	Account  string `yaml:"account,omitempty" mapstructure:"account"`
	Email    string `yaml:"email,omitempty" mapstructure:"email"`
	Password string `yaml:"password,omitempty" mapstructure:"password"`
	AppKey   string `yaml:"app_key,omitempty" mapstructure:"app_key"`
	Token    string `yaml:"token,omitempty" mapstructure:"token"`
	BoardID  string `yaml:"board_id,omitempty" mapstructure:"board_id"`
	ListID   string `yaml:"list_id,omitempty" mapstructure:"list_id"`

	// DefaultDropBucket is where new cards land unless a type mapping
	// overrides the target.
	DefaultDropBucket string `yaml:"default_drop_bucket" mapstructure:"default_drop_bucket"`
	// CompletedBuckets lists the bucket ids classified as "done"; items
	// found there drive the close phase.
	CompletedBuckets []string `yaml:"completed_buckets" mapstructure:"completed_buckets"`
	// CardTypes maps an OmniFocus context name to presentation attributes.
	CardTypes map[string]TypeMapping `yaml:"card_types,omitempty" mapstructure:"card_types"`

	// RequestsPerSecond caps the adapter's request rate. Zero means the
	// backend's default (LeanKit historically tolerates ~1 rps).
	RequestsPerSecond float64 `yaml:"requests_per_second,omitempty" mapstructure:"requests_per_second"`
	// FetchWorkers bounds concurrent per-item annotation fetches during
	// index building. Zero means the default of 4.
	FetchWorkers int `yaml:"fetch_workers,omitempty" mapstructure:"fetch_workers"`
}
