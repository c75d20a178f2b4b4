package constants

import "time"

const (
	AppName            = "habitsync"
	DefaultKeyringUser = "remote-connection"
	DefaultConfigDir   = "~/.config/habitsync"
	DefaultStorePath   = "~/.config/habitsync/habitsync.db"
	Version            = "v0.3.0"

	// DateFormat is the calendar date format used for start dates and day keys (YYYY-MM-DD)
	DateFormat = "2006-01-02"

	// TimeFormat is the time-of-day format used for reminders (HH:MM)
	TimeFormat = "15:04"

	// TempIDPrefix marks identifiers synthesized locally for records the
	// remote service has not acknowledged yet.
	TempIDPrefix = "local-"

	// Local store keys, suffixed with the user id
	SnapshotKeyPrefix = "habitsync:snapshot:"
	QueueKeyPrefix    = "habitsync:queue:"

	// Sync engine defaults
	DefaultCallTimeout     = 10 * time.Second
	DefaultMaxRetries      = 5
	DefaultRetryBackoff    = 2 * time.Second
	MaxRetryBackoff        = time.Minute
	DefaultSyncRatePerSec  = 20
	DefaultListenerMinWait = 2 * time.Second
	DefaultListenerMaxWait = time.Minute

	// ChangeChannel is the PostgreSQL NOTIFY channel carrying change signals
	ChangeChannel = "habitsync_changes"

	// Validation limits
	MaxTitleLength       = 120
	MaxDescriptionLength = 1000
	// MinStartDate bounds how far back due days are walked
	MinStartDate = "1970-01-01"
)
