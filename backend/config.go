package backend

import (
	"os"
	"sync"

	"github.com/google/uuid"
	"github.com/pelletier/go-toml/v2"
)

type ServerConfig struct {
	ID       uuid.UUID
	Nickname string
	Hostname string
	Username string
	Default  bool
}

type AppConfig struct {
	LastLaunchedVersion string
	ResumeOnStartup     bool
	ShowHiddenPlaylists bool
}

type PlaybackConfig struct {
	// Tags marking tracks that should crossfade (live albums and the like).
	FadeTags []string
	Volume   int
}

type Config struct {
	Application AppConfig
	Servers     []*ServerConfig
	Playback    PlaybackConfig
}

func DefaultConfig(appVersionTag string) *Config {
	return &Config{
		Application: AppConfig{
			LastLaunchedVersion: appVersionTag,
			ResumeOnStartup:     true,
			ShowHiddenPlaylists: false,
		},
		Playback: PlaybackConfig{
			FadeTags: []string{"Live", "Medley", "Nonstop"},
			Volume:   100,
		},
	}
}

// GetDefaultServer returns the server marked default, or the first
// configured one, or nil.
func (c *Config) GetDefaultServer() *ServerConfig {
	for _, s := range c.Servers {
		if s.Default {
			return s
		}
	}
	if len(c.Servers) > 0 {
		return c.Servers[0]
	}
	return nil
}

func ReadConfigFile(filepath, appVersionTag string) (*Config, error) {
	f, err := os.Open(filepath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	c := DefaultConfig(appVersionTag)
	if err := toml.NewDecoder(f).Decode(c); err != nil {
		return nil, err
	}
	return c, nil
}

var writeLock sync.Mutex

func (c *Config) WriteConfigFile(filepath string) error {
	if !writeLock.TryLock() {
		return nil // another write in progress
	}
	defer writeLock.Unlock()

	b, err := toml.Marshal(c)
	if err != nil {
		return err
	}
	os.WriteFile(filepath, b, 0644)

	return nil
}
