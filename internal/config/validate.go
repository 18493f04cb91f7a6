package config

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"
)

// tokenPattern matches the Telegram bot token format: <digits>:<alphanum+dash>.
var tokenPattern = regexp.MustCompile(`^\d+:[A-Za-z0-9_-]+$`)

// knownRelayEvents lists the IRC event kinds the bridge can relay.
var knownRelayEvents = map[string]struct{}{
	"message": {}, "notice": {}, "action": {}, "topic": {},
	"join": {}, "part": {}, "kick": {}, "quit": {},
}

// Validate checks field constraints after defaults have been applied.
// All problems are reported at once.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.IRC.Server == "" {
		errs = append(errs, errors.New("irc.server is required"))
	}
	if cfg.IRC.Port < 1 || cfg.IRC.Port > 65535 {
		errs = append(errs, fmt.Errorf("irc.port must be 1-65535, got %d", cfg.IRC.Port))
	}
	for _, ev := range cfg.IRC.RelayEvents {
		if _, ok := knownRelayEvents[ev]; !ok {
			errs = append(errs, fmt.Errorf("irc.relay_events: unknown event %q", ev))
		}
	}
	if cfg.IRC.Highlight != "" {
		if _, err := regexp.Compile(cfg.IRC.Highlight); err != nil {
			errs = append(errs, fmt.Errorf("irc.highlight: %w", err))
		}
	}
	if cfg.IRC.SendDelay < 10*time.Millisecond || cfg.IRC.SendDelay > 10*time.Second {
		errs = append(errs, fmt.Errorf("irc.send_delay must be 10ms-10s, got %s", cfg.IRC.SendDelay))
	}

	if cfg.Telegram.Token == "" {
		errs = append(errs, errors.New("telegram.token is required"))
	} else if !tokenPattern.MatchString(cfg.Telegram.Token) {
		errs = append(errs, errors.New("telegram.token format invalid (expected <bot_id>:<hash>)"))
	}
	if u, err := url.Parse(cfg.Telegram.APIURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		errs = append(errs, fmt.Errorf("telegram.api_url must be a valid http/https URL, got %q", cfg.Telegram.APIURL))
	}
	if cfg.Telegram.PollingTimeout < 0 || cfg.Telegram.PollingTimeout > 50 {
		errs = append(errs, fmt.Errorf("telegram.polling_timeout must be 0-50, got %d", cfg.Telegram.PollingTimeout))
	}

	switch cfg.Format.ParseMode {
	case "plain", "markdown", "html":
	default:
		errs = append(errs, fmt.Errorf("format.parse_mode must be plain, markdown or html, got %q", cfg.Format.ParseMode))
	}

	switch cfg.Media.Upload {
	case "", "imgur", "s3":
	default:
		errs = append(errs, fmt.Errorf("media.upload must be empty, imgur or s3, got %q", cfg.Media.Upload))
	}
	if cfg.Media.Upload == "imgur" && cfg.Media.ImgurClientID == "" {
		errs = append(errs, errors.New("media.imgur_client_id is required when media.upload is imgur"))
	}
	if cfg.Media.Upload == "s3" {
		if cfg.Media.S3.Bucket == "" || cfg.Media.S3.Region == "" {
			errs = append(errs, errors.New("media.s3.bucket and media.s3.region are required when media.upload is s3"))
		}
	}
	if cfg.Media.Enabled && cfg.Media.Upload == "" && cfg.HTTP.Location == "" {
		errs = append(errs, errors.New("http.location is required to serve media locally"))
	}

	if len(cfg.Channels) == 0 {
		errs = append(errs, errors.New("at least one channel pair is required"))
	}
	seenIRC := make(map[string]struct{})
	seenTG := make(map[string]struct{})
	for i, ch := range cfg.Channels {
		if ch.IRCChan == "" || !strings.HasPrefix(ch.IRCChan, "#") {
			errs = append(errs, fmt.Errorf("channels[%d].irc_chan must start with #", i))
		}
		if ch.TGGroup == "" {
			errs = append(errs, fmt.Errorf("channels[%d].tg_group is required", i))
		}
		key := strings.ToLower(ch.IRCChan)
		if _, dup := seenIRC[key]; dup {
			errs = append(errs, fmt.Errorf("channels[%d]: duplicate irc_chan %s", i, ch.IRCChan))
		}
		seenIRC[key] = struct{}{}
		if _, dup := seenTG[ch.TGGroup]; dup {
			errs = append(errs, fmt.Errorf("channels[%d]: duplicate tg_group %s", i, ch.TGGroup))
		}
		seenTG[ch.TGGroup] = struct{}{}
	}

	if cfg.History.Enabled && cfg.History.Path == "" && cfg.Store.Dir == "" {
		errs = append(errs, errors.New("history.path or store.dir is required when history is enabled"))
	}

	return errors.Join(errs...)
}
