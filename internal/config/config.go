package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	Mode       string        `mapstructure:"mode"`
	Port       int           `mapstructure:"port"`
	StaticPath string        `mapstructure:"static_path"`
	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
	Secret     string        `mapstructure:"secret"`
	LogLevel   string        `mapstructure:"log_level"`

	// SecureCookies marks session cookies Secure; enable only behind TLS.
	SecureCookies bool `mapstructure:"secure_cookies"`

	Gateway GatewayConfig `mapstructure:"gateway"`
	Control ControlConfig `mapstructure:"control"`
	Show    ShowConfig    `mapstructure:"show"`
	Line    LineConfig    `mapstructure:"line"`
	Ledger  LedgerConfig  `mapstructure:"ledger"`
	OBS     OBSConfig     `mapstructure:"obs"`
	Video   VideoConfig   `mapstructure:"video"`
	Storage StorageConfig `mapstructure:"storage"`
	DB      DBConfig      `mapstructure:"db"`
}

type GatewayConfig struct {
	SingleIP      bool          `mapstructure:"single_ip"`
	AckGrace      time.Duration `mapstructure:"ack_grace"`
	SendBuffer    int           `mapstructure:"send_buffer"`
	AttemptLimit  int           `mapstructure:"attempt_limit"`
	AttemptWindow time.Duration `mapstructure:"attempt_window"`
}

type ControlConfig struct {
	Secret string `mapstructure:"secret"`
	Prefix string `mapstructure:"prefix"`
}

type ShowConfig struct {
	Name         string        `mapstructure:"name"`
	PollAttempts int           `mapstructure:"poll_attempts"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	PendingTTL   time.Duration `mapstructure:"pending_ttl"`
	PilotTimeout time.Duration `mapstructure:"pilot_timeout"`
	CardTimeout  time.Duration `mapstructure:"card_timeout"`
	VideoTimeout time.Duration `mapstructure:"video_timeout"`
	StartDelay   time.Duration `mapstructure:"start_delay"`
	LiveScene    string        `mapstructure:"live_scene"`
	PostScene    string        `mapstructure:"post_scene"`
	Autostart    bool          `mapstructure:"autostart"`
}

type LineConfig struct {
	SyncPeriod time.Duration `mapstructure:"sync_period"`
}

type LedgerConfig struct {
	// Driver is "memory" or "gateway".
	Driver string `mapstructure:"driver"`
	URL    string `mapstructure:"url"`
	Token  string `mapstructure:"token"`
}

type OBSConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	Address         string `mapstructure:"address"`
	Password        string `mapstructure:"password"`
	RecordingFolder string `mapstructure:"recording_folder"`
	LocalFolder     string `mapstructure:"local_folder"`
}

type VideoConfig struct {
	APIURL   string `mapstructure:"api_url"`
	MediaURL string `mapstructure:"media_url"`
	Key      string `mapstructure:"key"`
	Secret   string `mapstructure:"secret"`
}

type StorageConfig struct {
	APIURL    string `mapstructure:"api_url"`
	Token     string `mapstructure:"token"`
	MediaPath string `mapstructure:"media_path"`
}

type DBConfig struct {
	Path string `mapstructure:"path"`
}

// setDefaults registers every key; AutomaticEnv only resolves keys viper
// already knows when unmarshalling.
func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("static_path", "./web")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("log_level", "info")

	v.SetDefault("gateway.single_ip", false)
	v.SetDefault("gateway.ack_grace", "10s")
	v.SetDefault("gateway.send_buffer", 32)
	v.SetDefault("gateway.attempt_limit", 5)
	v.SetDefault("gateway.attempt_window", "1m")

	v.SetDefault("secret", "")
	v.SetDefault("secure_cookies", false)
	v.SetDefault("control.secret", "")
	v.SetDefault("control.prefix", "gs_")

	v.SetDefault("show.name", "Hotseat")
	v.SetDefault("show.poll_attempts", 60)
	v.SetDefault("show.poll_interval", "500ms")
	v.SetDefault("show.pending_ttl", "30s")
	v.SetDefault("show.pilot_timeout", "2m")
	v.SetDefault("show.card_timeout", "1m")
	v.SetDefault("show.video_timeout", "3m")
	v.SetDefault("show.start_delay", "0s")
	v.SetDefault("show.live_scene", "live")
	v.SetDefault("show.post_scene", "post-game")
	v.SetDefault("show.autostart", false)

	v.SetDefault("line.sync_period", "15s")
	v.SetDefault("ledger.driver", "memory")
	v.SetDefault("ledger.url", "")
	v.SetDefault("ledger.token", "")
	v.SetDefault("obs.enabled", false)
	v.SetDefault("obs.address", "localhost:4455")
	v.SetDefault("obs.password", "")
	v.SetDefault("obs.recording_folder", "")
	v.SetDefault("obs.local_folder", "")
	v.SetDefault("video.api_url", "")
	v.SetDefault("video.media_url", "")
	v.SetDefault("video.key", "")
	v.SetDefault("video.secret", "")
	v.SetDefault("storage.api_url", "")
	v.SetDefault("storage.token", "")
	v.SetDefault("storage.media_path", "./media")
	v.SetDefault("db.path", "hotseat.db")
}

// Flags declares the command-line overrides; they win over file and env.
func Flags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("hotseat", pflag.ContinueOnError)
	fs.String("config", "", "config file (default config/config.$CONFIG_ENV.yaml)")
	fs.String("mode", "", "gin mode: debug or release")
	fs.Int("port", 0, "HTTP listen port")
	fs.String("log_level", "", "zerolog level")
	fs.String("ledger.driver", "", "ledger driver: memory or gateway")
	fs.String("db.path", "", "credential database file")
	fs.Bool("show.autostart", false, "admit participants as soon as the show is ready")
	return fs
}

// Load reads defaults, the YAML file, HOTSEAT_* env vars and args in that order.
func Load(args []string) (*Config, error) {
	fs := Flags()
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)

	fileName, _ := fs.GetString("config")
	if fileName == "" {
		env := os.Getenv("CONFIG_ENV")
		if env == "" {
			env = "dev"
		}
		fileName = fmt.Sprintf("config/config.%s.yaml", env)
	}
	v.SetConfigFile(fileName)

	v.SetEnvPrefix("HOTSEAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Only flags given explicitly override lower layers.
	var bindErr error
	fs.Visit(func(f *pflag.Flag) {
		if f.Name == "config" {
			return
		}
		if err := v.BindPFlag(f.Name, f); err != nil && bindErr == nil {
			bindErr = err
		}
	})
	if bindErr != nil {
		return nil, fmt.Errorf("bind flags: %w", bindErr)
	}

	if err := v.ReadInConfig(); err != nil {
		fmt.Fprintf(os.Stderr, "config file not found (%s), using defaults\n", fileName)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
