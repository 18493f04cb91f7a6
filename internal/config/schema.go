// Package config handles YAML configuration loading, environment variable
// expansion, and structural validation for ircgram.
package config

import "time"

// Config is the top-level configuration structure.
type Config struct {
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	IRC       IRCConfig       `yaml:"irc"`
	Telegram  TelegramConfig  `yaml:"telegram"`
	Format    FormatConfig    `yaml:"format"`
	Media     MediaConfig     `yaml:"media"`
	HTTP      HTTPConfig      `yaml:"http"`
	Store     StoreConfig     `yaml:"store"`
	History   HistoryConfig   `yaml:"history"`
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Channels lists the bridged IRC-channel ↔ Telegram-group pairs.
	Channels []ChannelConfig `yaml:"channels"`
}

// ChannelConfig describes one bridged pair.
type ChannelConfig struct {
	IRCChan    string `yaml:"irc_chan"`
	IRCChanKey string `yaml:"irc_chan_key"`
	TGGroup    string `yaml:"tg_group"`
	Alias      string `yaml:"alias"`

	IRCReadOnly         bool `yaml:"irc_read_only"`
	IRCOverrideReadOnly bool `yaml:"irc_override_read_only"`
	TGReadOnly          bool `yaml:"tg_read_only"`
	TGOverrideReadOnly  bool `yaml:"tg_override_read_only"`
}

// IRCConfig holds the IRC side configuration.
type IRCConfig struct {
	Server   string `yaml:"server"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	Nick     string `yaml:"nick"`
	User     string `yaml:"user"`
	RealName string `yaml:"real_name"`
	Password string `yaml:"password"`

	// Perform lists raw commands sent once registration completes.
	Perform []string `yaml:"perform"`

	// RelayEvents is the allow-list of event kinds relayed to Telegram.
	RelayEvents []string `yaml:"relay_events"`

	// Highlight is a regular expression identifying messages addressed to
	// the bridge bot; it gates read-only channels with override enabled.
	Highlight string `yaml:"highlight"`
	// HighlightOnlyMatch relays only the first capture group of Highlight.
	HighlightOnlyMatch bool `yaml:"highlight_only_match"`

	// SendDelay is the pause between consecutive outbound lines to one
	// channel, keeping under server flood limits.
	SendDelay time.Duration `yaml:"send_delay"`

	// ReplaceNewlines substitutes embedded newlines in outbound text.
	ReplaceNewlines string `yaml:"replace_newlines"`
}

// TelegramConfig holds the Telegram side configuration.
type TelegramConfig struct {
	Token          string `yaml:"token"`
	APIURL         string `yaml:"api_url"`
	PollingTimeout int    `yaml:"polling_timeout"`

	// MaxMsgAge drops updates older than this; zero disables the filter.
	// Guards against backlog replay after downtime.
	MaxMsgAge time.Duration `yaml:"max_msg_age"`

	// RelayEdits forwards edited_message updates with an "[Edit] " prefix.
	RelayEdits bool `yaml:"relay_edits"`

	// NameFormat renders Telegram display names. Placeholders:
	// %username%, %firstName%, %lastName%.
	NameFormat string `yaml:"name_format"`
	// UsernameFallback substitutes %username% for users without one.
	UsernameFallback string `yaml:"username_fallback"`

	// SoloUse suppresses the "<nick> " prefix on relayed text.
	SoloUse bool `yaml:"solo_use"`
}

// FormatConfig controls outbound text decoration.
type FormatConfig struct {
	// ParseMode is one of plain, markdown, html.
	ParseMode string `yaml:"parse_mode"`
	// EmNick bolds the nick in the "<nick>" prefix per ParseMode.
	EmNick bool `yaml:"em_nick"`
	// EmphasizeAction wraps relayed /me text in emphasis markers.
	EmphasizeAction bool `yaml:"emphasize_action"`
	// ReplySnippetLength truncates reply-context snippets; zero disables them.
	ReplySnippetLength int `yaml:"reply_snippet_length"`
}

// MediaConfig controls media relaying.
type MediaConfig struct {
	// Enabled relays media-bearing messages; when false they are dropped,
	// except photos when Upload is configured.
	Enabled bool `yaml:"enabled"`

	// Upload selects the external host: "", "imgur" or "s3".
	// Empty means files are re-served from the local HTTP server.
	Upload string `yaml:"upload"`

	ImgurClientID string   `yaml:"imgur_client_id"`
	S3            S3Config `yaml:"s3"`

	// Conversions maps a file suffix to the suffix it is converted to
	// before serving, e.g. webp: png.
	Conversions map[string]string `yaml:"conversions"`

	// RandomLength sizes the random path segment for uploaded files.
	RandomLength int `yaml:"random_length"`
}

// S3Config identifies the bucket media files are uploaded to.
type S3Config struct {
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	// PublicURL is the base URL objects are reachable under.
	PublicURL string `yaml:"public_url"`
}

// HTTPConfig configures the built-in HTTP server.
type HTTPConfig struct {
	Listen string `yaml:"listen"`
	// Location is the externally visible base URL for served files.
	Location string `yaml:"location"`
	// External skips starting the built-in server; some deployments serve
	// the files directory with their own web server.
	External bool `yaml:"external"`
}

// StoreConfig configures on-disk state.
type StoreConfig struct {
	// Dir holds chatids.json, messageids.json and downloaded files.
	Dir string `yaml:"dir"`
	// FlushSchedule is a cron expression (or @every duration) for the
	// message-id flush job.
	FlushSchedule string `yaml:"flush_schedule"`
}

// HistoryConfig configures the optional SQLite message archive.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// TelemetryConfig configures optional OTLP trace export.
type TelemetryConfig struct {
	// OTLPEndpoint enables tracing when set, e.g. "localhost:4318".
	OTLPEndpoint string `yaml:"otlp_endpoint"`
}

// Defaults applies default values to unset fields.
func (c *Config) Defaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.IRC.Port == 0 {
		c.IRC.Port = 6697
		c.IRC.TLS = true
	}
	if c.IRC.Nick == "" {
		c.IRC.Nick = "ircgram"
	}
	if c.IRC.User == "" {
		c.IRC.User = c.IRC.Nick
	}
	if c.IRC.RealName == "" {
		c.IRC.RealName = c.IRC.Nick
	}
	if c.IRC.RelayEvents == nil {
		c.IRC.RelayEvents = []string{
			"message", "notice", "action", "topic",
			"join", "part", "kick", "quit",
		}
	}
	if c.IRC.SendDelay == 0 {
		c.IRC.SendDelay = 100 * time.Millisecond
	}
	if c.IRC.ReplaceNewlines == "" {
		c.IRC.ReplaceNewlines = " … "
	}
	if c.Telegram.APIURL == "" {
		c.Telegram.APIURL = "https://api.telegram.org"
	}
	if c.Telegram.PollingTimeout == 0 {
		c.Telegram.PollingTimeout = 30
	}
	if c.Telegram.NameFormat == "" {
		c.Telegram.NameFormat = "%username%"
	}
	if c.Telegram.UsernameFallback == "" {
		c.Telegram.UsernameFallback = "%firstName% %lastName%"
	}
	if c.Format.ParseMode == "" {
		c.Format.ParseMode = "plain"
	}
	if c.Format.ReplySnippetLength == 0 {
		c.Format.ReplySnippetLength = 24
	}
	if c.Media.RandomLength == 0 {
		c.Media.RandomLength = 8
	}
	if c.HTTP.Listen == "" {
		c.HTTP.Listen = ":9090"
	}
	if c.Store.FlushSchedule == "" {
		c.Store.FlushSchedule = "@every 5m"
	}
}
