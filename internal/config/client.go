package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Client holds tk settings.
type Client struct {
	ServerAddr     string
	Token          string
	DeviceID       string
	DataDir        string
	RequestTimeout time.Duration
	PollInterval   time.Duration
	BackupInterval time.Duration
	Backup         BackupConfig
	TLS            TLSConfig

	path string
	v    *viper.Viper
}

// BackupConfig selects the snapshot backend.
type BackupConfig struct {
	Backend  string // file | redis
	RedisURL string
	Keep     int
}

// TLSConfig selects transport security towards the server.
type TLSConfig struct {
	CACert    string
	Insecure  bool
	Plaintext bool
}

// ClientPath returns $XDG_CONFIG_HOME/timekeeper/timekeeper.yml, or the OS equivalent.
func ClientPath() (string, error) {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("user home: %w", err)
		}
		if runtime.GOOS == "windows" {
			configHome = filepath.Join(home, "AppData", "Roaming")
		} else {
			configHome = filepath.Join(home, ".config")
		}
	}
	return filepath.Join(configHome, "timekeeper", "timekeeper.yml"), nil
}

// LoadClient reads the YAML file at path, writing one with defaults if it does not exist.
// An empty path means ClientPath.
func LoadClient(path string) (*Client, error) {
	if path == "" {
		p, err := ClientPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("config dir: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetDefault("server_addr", "localhost:8443")
	v.SetDefault("token", "")
	v.SetDefault("device_id", "")
	v.SetDefault("data_dir", filepath.Join(filepath.Dir(path), "data"))
	v.SetDefault("request_timeout", "5s")
	v.SetDefault("poll_interval", "15s")
	v.SetDefault("backup_interval", "5m")
	v.SetDefault("backup.backend", "file")
	v.SetDefault("backup.redis_url", "")
	v.SetDefault("backup.keep", 5)
	v.SetDefault("tls.cacert", "")
	v.SetDefault("tls.insecure", false)
	v.SetDefault("tls.plaintext", false)
	v.SetEnvPrefix("tk")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var nf viper.ConfigFileNotFoundError
		if !errors.As(err, &nf) && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := v.WriteConfigAs(path); err != nil {
			return nil, fmt.Errorf("create config: %w", err)
		}
	}

	c := &Client{path: path, v: v}
	c.fill()
	if c.Backup.Backend != "file" && c.Backup.Backend != "redis" {
		return nil, fmt.Errorf("config: unknown backup backend %q", c.Backup.Backend)
	}
	if c.Backup.Backend == "redis" && c.Backup.RedisURL == "" {
		return nil, errors.New("config: backup.redis_url is required for the redis backend")
	}
	return c, nil
}

func (c *Client) fill() {
	v := c.v
	c.ServerAddr = v.GetString("server_addr")
	c.Token = v.GetString("token")
	c.DeviceID = v.GetString("device_id")
	c.DataDir = v.GetString("data_dir")
	c.RequestTimeout = v.GetDuration("request_timeout")
	c.PollInterval = v.GetDuration("poll_interval")
	c.BackupInterval = v.GetDuration("backup_interval")
	c.Backup = BackupConfig{
		Backend:  v.GetString("backup.backend"),
		RedisURL: v.GetString("backup.redis_url"),
		Keep:     v.GetInt("backup.keep"),
	}
	c.TLS = TLSConfig{
		CACert:    v.GetString("tls.cacert"),
		Insecure:  v.GetBool("tls.insecure"),
		Plaintext: v.GetBool("tls.plaintext"),
	}
}

// Path is the file the config was loaded from.
func (c *Client) Path() string { return c.path }

// Set stores a key and rewrites the file.
func (c *Client) Set(key string, value any) error {
	c.v.Set(key, value)
	if err := c.v.WriteConfigAs(c.path); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	c.fill()
	return nil
}
