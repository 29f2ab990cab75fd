package config

// Config is the full application configuration.
//
// All durations are Go duration strings (e.g. "30s", "1m").
type Config struct {
	Telegram  TelegramConfig  `json:"telegram"`
	Logging   LoggingConfig   `json:"logging"`
	Storage   StorageConfig   `json:"storage"`
	Scheduler SchedulerConfig `json:"scheduler"`
	Digest    DigestConfig    `json:"digest"`
	Calendar  *CalendarConfig `json:"calendar,omitempty"`
	Payments  PaymentsConfig  `json:"payments"`
}

type TelegramConfig struct {
	Token       string `json:"token"`
	PollTimeout string `json:"poll_timeout,omitempty"` // default "10s"
	RatePerSec  int    `json:"rate_per_sec,omitempty"` // outbound sends; default 3
}

type LoggingConfig struct {
	Level   string            `json:"level"`
	Console bool              `json:"console"`
	File    LoggingFileConfig `json:"file"`
}

type LoggingFileConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
}

type StorageConfig struct {
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

// SchedulerConfig controls the dispatch loop.
//
// UTCOffset pins the assistant's local timezone as a fixed offset
// (e.g. "-03:00"); empty means UTC.
type SchedulerConfig struct {
	Interval  string `json:"interval,omitempty"` // default "1m"
	UTCOffset string `json:"utc_offset,omitempty"`
}

type DigestConfig struct {
	WeeklyHour  int               `json:"weekly_hour,omitempty"`  // local Monday
	MonthlyHour int               `json:"monthly_hour,omitempty"` // local 1st
	Recipients  []DigestRecipient `json:"recipients,omitempty"`
}

type DigestRecipient struct {
	ChatID    int64 `json:"chat_id"`
	DailyHour int   `json:"daily_hour"`
}

// CalendarConfig enables the best-effort calendar mirror.
type CalendarConfig struct {
	Enabled    bool   `json:"enabled"`
	BaseURL    string `json:"base_url,omitempty"`
	CalendarID string `json:"calendar_id"`
	Token      string `json:"token"` // bearer token (do not log)
}

type PaymentsConfig struct {
	// DeepLinkBase prefixes pre-filled transfer links in payment reminders.
	DeepLinkBase string `json:"deep_link_base,omitempty"`
}
