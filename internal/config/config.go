// Package config resolves runtime settings: built-in defaults, then a .env
// file, then the process environment. All knobs live under the LSNP_ prefix.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// UserName is the local handle; the wire identity is UserName@ip.
	UserName    string
	DisplayName string
	Status      string

	Port         int
	DownloadsDir string
	MetricsPath  string

	// VerifySenderIP rejects messages whose FROM-embedded ip does not match
	// the UDP source address.
	VerifySenderIP bool
	// AutoAcceptFiles accepts inbound file offers without prompting.
	AutoAcceptFiles bool

	BroadcastInterval time.Duration
	ChunkDelay        time.Duration
	AckTTL            time.Duration
}

func Default() Config {
	return Config{
		UserName:          "peer",
		DisplayName:       "Anonymous Peer",
		Status:            "online",
		Port:              50999,
		DownloadsDir:      "downloads",
		VerifySenderIP:    true,
		AutoAcceptFiles:   true,
		BroadcastInterval: 30 * time.Second,
		ChunkDelay:        50 * time.Millisecond,
		AckTTL:            2 * time.Minute,
	}
}

// Load resolves the configuration. A missing .env file is not an error.
func Load() Config {
	_ = godotenv.Load()
	c := Default()
	c.applyEnv()
	return c
}

func (c *Config) applyEnv() {
	setString(&c.UserName, "LSNP_USER")
	setString(&c.DisplayName, "LSNP_DISPLAY_NAME")
	setString(&c.Status, "LSNP_STATUS")
	setString(&c.DownloadsDir, "LSNP_DOWNLOADS_DIR")
	setString(&c.MetricsPath, "LSNP_METRICS_PATH")
	setInt(&c.Port, "LSNP_PORT")
	setBool(&c.VerifySenderIP, "LSNP_VERIFY_SENDER_IP")
	setBool(&c.AutoAcceptFiles, "LSNP_AUTO_ACCEPT_FILES")
	setSeconds(&c.BroadcastInterval, "LSNP_BROADCAST_INTERVAL")
	setMillis(&c.ChunkDelay, "LSNP_CHUNK_DELAY_MS")
	setSeconds(&c.AckTTL, "LSNP_ACK_TTL")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setSeconds(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			*dst = time.Duration(n) * time.Second
		}
	}
}

func setMillis(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			*dst = time.Duration(n) * time.Millisecond
		}
	}
}
