package config

import (
	"fmt"
	"log"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

func init() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, falling back to system environment variables")
	}
}

type Config struct {
	DiscordToken      string `env:"DISCORD_TOKEN,required"`
	StoragePath       string `env:"STORAGE_PATH" envDefault:"playlists.json"`
	InitSlashCommands bool   `env:"INIT_SLASH_COMMANDS" envDefault:"true"`

	// Default radio. RADIO_STATION picks a preset from stations.go; the
	// explicit RADIO_* variables override the preset.
	RadioStation   string `env:"RADIO_STATION" envDefault:"russian"`
	RadioStreamURL string `env:"RADIO_STREAM_URL"`
	RadioName      string `env:"RADIO_NAME"`
	RadioThumbnail string `env:"RADIO_THUMBNAIL"`

	VoteDuration time.Duration `env:"PLAYLIST_VOTE_DURATION" envDefault:"24h"`

	DashboardAddr string `env:"DASHBOARD_ADDR" envDefault:":8787"`

	UseLavalink      bool   `env:"USE_LAVALINK" envDefault:"false"`
	LavalinkHost     string `env:"LAVALINK_HOST" envDefault:"localhost"`
	LavalinkPort     int    `env:"LAVALINK_PORT" envDefault:"2333"`
	LavalinkPassword string `env:"LAVALINK_PASSWORD" envDefault:"youshallnotpass"`
	LavalinkSecure   bool   `env:"LAVALINK_SECURE" envDefault:"false"`
}

func New() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	if cfg.RadioStreamURL == "" {
		station, ok := Stations[cfg.RadioStation]
		if !ok {
			return nil, fmt.Errorf("config: unknown radio station %q", cfg.RadioStation)
		}
		cfg.RadioStreamURL = station.URL
		if cfg.RadioName == "" {
			cfg.RadioName = station.Name
		}
		if cfg.RadioThumbnail == "" {
			cfg.RadioThumbnail = station.Thumbnail
		}
	}
	if cfg.RadioName == "" {
		cfg.RadioName = "Radio"
	}

	return cfg, nil
}
