package internal

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"github.com/starford/notesync/internal/engine"
	"github.com/starford/notesync/internal/remote/simplenote"
	"github.com/starford/notesync/internal/watch"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Remote kinds.
const (
	RemoteSimplenote = "simplenote"
	RemoteMemory     = "memory"
)

// Config represents the application configuration.
type Config struct {
	App      ApplicationConfig `yaml:"app"`
	Notes    NotesConfig       `yaml:"notes"`
	Snapshot SnapshotConfig    `yaml:"snapshot"`
	Remote   RemoteConfig      `yaml:"remote"`
	Watch    WatchConfig       `yaml:"watch"`
	Publish  PublishConfig     `yaml:"publish"`
	Auth     AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return fmt.Errorf("app: %w", err)
	}
	if err := c.Notes.Validate(); err != nil {
		return fmt.Errorf("notes: %w", err)
	}
	if err := c.Remote.Validate(); err != nil {
		return fmt.Errorf("remote: %w", err)
	}
	if err := c.Watch.Validate(); err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	if err := c.Publish.Validate(); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	// LogFile, when set, receives logs through a rotating writer instead
	// of stderr.
	LogFile string     `yaml:"log_file"`
	HTTP    HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds the watch-mode status server configuration. Port 0
// disables the server.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Enabled reports whether the status server should run.
func (c *HTTPConfig) Enabled() bool {
	return c.Port != 0
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Min(0), validation.Max(65535)),
	)
}

// NotesConfig describes the local note directory.
type NotesConfig struct {
	Directory string `yaml:"directory"`
	// Editor is the command run by edit; empty means $EDITOR, then vi.
	Editor string `yaml:"editor"`
	// Ignore lists doublestar globs of filenames never synchronized.
	Ignore []string `yaml:"ignore"`
}

// Validate validates the notes configuration.
func (c *NotesConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Directory, validation.Required),
	)
}

// EditorCommand resolves the editor to run.
func (c *NotesConfig) EditorCommand() string {
	if c.Editor != "" {
		return c.Editor
	}
	if env := os.Getenv("EDITOR"); env != "" {
		return env
	}
	return "vi"
}

// SnapshotConfig locates the sync snapshot. Empty paths resolve inside the
// note directory, where non-.txt files are never synchronized.
type SnapshotConfig struct {
	Path     string `yaml:"path"`
	DumpPath string `yaml:"dump_path"`
}

// Paths returns the snapshot and dump file paths for the note directory.
func (c *SnapshotConfig) Paths(notesDir string) (db, dump string) {
	db, dump = c.Path, c.DumpPath
	if db == "" {
		db = filepath.Join(notesDir, "notes.db")
	}
	if dump == "" {
		dump = filepath.Join(notesDir, "notes.toml")
	}
	return db, dump
}

// RemoteConfig holds the Simplenote account and API settings.
type RemoteConfig struct {
	// Kind selects the remote: "simplenote" or "memory" (in-process,
	// for dry runs).
	Kind              string        `yaml:"kind"`
	User              string        `yaml:"user"`
	Password          string        `yaml:"password"`
	AppID             string        `yaml:"app_id"`
	APIKey            string        `yaml:"api_key"`
	AuthURL           string        `yaml:"auth_url"`
	APIURL            string        `yaml:"api_url"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Burst             int           `yaml:"burst"`
	Timeout           time.Duration `yaml:"timeout"`
}

// Validate validates the remote configuration.
func (c *RemoteConfig) Validate() error {
	if c.Kind == "" {
		c.Kind = RemoteSimplenote
	}
	simplenoteRule := validation.When(c.Kind == RemoteSimplenote, validation.Required)
	return validation.ValidateStruct(c,
		validation.Field(&c.Kind, validation.Required, validation.In(RemoteSimplenote, RemoteMemory)),
		validation.Field(&c.User, simplenoteRule),
		validation.Field(&c.Password, simplenoteRule),
		validation.Field(&c.AuthURL, is.URL),
		validation.Field(&c.APIURL, is.URL),
		validation.Field(&c.RequestsPerSecond, validation.Min(0.0)),
		validation.Field(&c.Burst, validation.Min(0)),
		validation.Field(&c.Timeout, validation.Min(time.Duration(0))),
	)
}

// Simplenote converts the section to a client configuration.
func (c *RemoteConfig) Simplenote() simplenote.Config {
	return simplenote.Config{
		User:              c.User,
		Password:          c.Password,
		AppID:             c.AppID,
		APIKey:            c.APIKey,
		AuthURL:           c.AuthURL,
		APIURL:            c.APIURL,
		RequestsPerSecond: c.RequestsPerSecond,
		Burst:             c.Burst,
		Timeout:           c.Timeout,
	}
}

// WatchConfig holds the watch scheduler timings.
type WatchConfig struct {
	FetchInterval time.Duration `yaml:"fetch_interval"`
	SendWait      time.Duration `yaml:"send_wait"`
	Tick          time.Duration `yaml:"tick"`
}

// Validate validates the watch configuration.
func (c *WatchConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.FetchInterval, validation.Required, validation.Min(time.Second)),
		validation.Field(&c.SendWait, validation.Min(time.Duration(0))),
		validation.Field(&c.Tick, validation.Required, validation.Min(10*time.Millisecond)),
	)
}

// PublishConfig controls how publish and unpublish wait for the remote.
type PublishConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
	PollAttempts int           `yaml:"poll_attempts"`
}

// Validate validates the publish configuration.
func (c *PublishConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.PollInterval, validation.Required),
		validation.Field(&c.PollAttempts, validation.Required, validation.Min(1)),
	)
}

// AuthConfig holds authentication configuration for the status server.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for localhost.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// BearerToken returns the token the status server requires, or "" when
// authentication is disabled.
func (c *AuthConfig) BearerToken() string {
	if !c.AuthEnabled() {
		return ""
	}
	return c.Token
}

// NewDefaultConfig returns a new Config with sensible default values. The
// note directory and credentials come from the environment, as the config
// file would expand them.
func NewDefaultConfig() *Config {
	dir := os.Getenv("SIMPLENOTE_LOCAL_DIR")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, "notes")
		}
	}
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
		},
		Notes: NotesConfig{
			Directory: dir,
		},
		Remote: RemoteConfig{
			Kind:     RemoteSimplenote,
			User:     os.Getenv("SIMPLENOTE_LOCAL_USER"),
			Password: os.Getenv("SIMPLENOTE_LOCAL_PASSWORD"),
		},
		Watch: WatchConfig{
			FetchInterval: watch.DefaultFetchInterval,
			SendWait:      watch.DefaultSendWait,
			Tick:          watch.DefaultTick,
		},
		Publish: PublishConfig{
			PollInterval: engine.DefaultPollInterval,
			PollAttempts: engine.DefaultPollAttempts,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
