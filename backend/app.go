package backend

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path"
	"reflect"
	"sync"
	"time"

	"github.com/20after4/configdir"
	"github.com/fsnotify/fsnotify"

	"github.com/amphora-app/amphora/backend/player"
	"github.com/amphora-app/amphora/backend/util"
)

const (
	configFile = "config.toml"
	stateFile  = "state.json"

	workerSweepInterval = 30 * time.Second
)

var ErrNoServers = errors.New("no servers set up")

// App is the explicit context object owning every component; nothing in
// the core reaches for ambient global state.
type App struct {
	Config         *Config
	ServerManager  *ServerManager
	LibraryManager *LibraryManager
	PlaybackEngine *PlaybackEngine
	Session        *Session
	Workers        *WorkerRegistry
	Store          Store
	LocalPlayer    player.BasePlayer

	appName       string
	appVersionTag string
	configDir     string
	cacheDir      string

	isFirstLaunch bool // set by config file reader
	bgrndCtx      context.Context
	cancel        context.CancelFunc

	// guards Config against the watcher goroutine's reload writes
	cfgMu          sync.RWMutex
	lastWrittenCfg Config
}

func (a *App) VersionTag() string {
	return a.appVersionTag
}

func StartupApp(appName, appVersionTag string) (*App, error) {
	confDir := configdir.LocalConfig(appName)
	cacheDir := configdir.LocalCache(appName)
	// ensure config and cache dirs exist
	configdir.MakePath(confDir)
	configdir.MakePath(cacheDir)

	log.Printf("Starting %s...", appName)
	log.Printf("Using config dir: %s", confDir)
	log.Printf("Using cache dir: %s", cacheDir)

	a := &App{
		appName:       appName,
		appVersionTag: appVersionTag,
		configDir:     confDir,
		cacheDir:      cacheDir,
	}
	a.bgrndCtx, a.cancel = context.WithCancel(context.Background())
	a.readConfig()
	a.startConfigWriter(a.bgrndCtx)
	a.startConfigWatcher()

	store, err := NewFileStore(path.Join(confDir, stateFile))
	if err != nil {
		return nil, fmt.Errorf("failed to open state store: %w", err)
	}
	a.Store = store

	a.Session = NewSession(a.bgrndCtx)
	a.Workers = NewWorkerRegistry(a.bgrndCtx)
	a.Workers.StartSweeper(a.bgrndCtx, workerSweepInterval)

	a.ServerManager = NewServerManager(appName)
	a.LocalPlayer = player.NewNullPlayer()
	a.PlaybackEngine = NewPlaybackEngine(a.bgrndCtx, a.ServerManager, a.LocalPlayer, a.Store)
	a.LibraryManager = NewLibraryManager(a.bgrndCtx, a.ServerManager, a.Store, a.FadeTags)

	return a, nil
}

func (a *App) IsFirstLaunch() bool {
	return a.isFirstLaunch
}

// FadeTags returns the current fade tag set. The config watcher may
// replace it at any time, so callers must not write to the slice.
func (a *App) FadeTags() []string {
	a.cfgMu.RLock()
	defer a.cfgMu.RUnlock()
	return a.Config.Playback.FadeTags
}

// ConnectToDefaultServer establishes the token lease against the default
// configured server and primes the caches.
func (a *App) ConnectToDefaultServer(ctx context.Context) error {
	conf := a.Config.GetDefaultServer()
	if conf == nil {
		return ErrNoServers
	}
	if checker, err := NewHostChecker(conf.Hostname); err == nil {
		err = WaitForNetwork(ctx, checker, func(elapsed time.Duration) {
			log.Printf("waiting for network (%s)...", elapsed.Round(time.Second))
		})
		if err != nil {
			return err
		}
	}
	if err := a.ServerManager.ConnectToServer(ctx, conf, a.FadeTags()); err != nil {
		return err
	}
	a.LibraryManager.Playlists.Refresh()
	a.LibraryManager.RecentAlbums.Refresh()
	return nil
}

// RequestPlay fetches the queue for a prefixed id on a worker and applies
// the resulting payload on the session goroutine. The worker emits nothing
// if cancelled first.
func (a *App) RequestPlay(prefixedID string, shuffle bool) {
	a.Workers.Run("play "+prefixedID, func(ctx context.Context) {
		payload, err := a.PlaybackEngine.FetchQueue(ctx, prefixedID)
		if err == nil && shuffle {
			payload.ShuffleTracks()
		}
		if ctx.Err() != nil {
			return
		}
		a.Session.Post(func() {
			if err != nil {
				log.Printf("error fetching queue for %s: %v", prefixedID, err)
				return
			}
			if err := a.PlaybackEngine.Apply(payload); err != nil {
				log.Printf("error starting playback of %s: %v", prefixedID, err)
			}
		})
	})
}

func (a *App) readConfig() {
	cfgPath := a.configFilePath()
	var cfgExists bool
	if _, err := os.Stat(cfgPath); err == nil {
		cfgExists = true
	}
	a.isFirstLaunch = !cfgExists
	cfg, err := ReadConfigFile(cfgPath, a.appVersionTag)
	if err != nil {
		log.Printf("Error reading app config file: %v", err)
		cfg = DefaultConfig(a.appVersionTag)
		if cfgExists {
			backupCfgName := fmt.Sprintf("%s.bak", configFile)
			log.Printf("Config file may be malformed: copying to %s", backupCfgName)
			_ = util.CopyFile(cfgPath, path.Join(a.configDir, backupCfgName))
		}
	}
	a.Config = cfg
}

// periodically save config file so abnormal exit won't lose settings
func (a *App) startConfigWriter(ctx context.Context) {
	tick := time.NewTicker(2 * time.Minute)
	go func() {
		for {
			select {
			case <-ctx.Done():
				tick.Stop()
				return
			case <-tick.C:
				if a.configChanged() {
					a.SaveConfigFile()
				}
			}
		}
	}()
}

// startConfigWatcher reloads settings that take effect immediately (the
// fade tag set) when the config file changes on disk.
func (a *App) startConfigWatcher() {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Printf("error watching config file: %v", err)
		return
	}
	watcher.Add(a.configFilePath())
	go func() {
		defer watcher.Close()
		for {
			select {
			case <-a.bgrndCtx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
					continue
				}
				cfg, err := ReadConfigFile(a.configFilePath(), a.appVersionTag)
				if err != nil {
					log.Printf("ignoring malformed config change: %v", err)
					continue
				}
				a.cfgMu.Lock()
				a.Config.Playback.FadeTags = cfg.Playback.FadeTags
				a.cfgMu.Unlock()
				if client := a.ServerManager.Client; client != nil {
					client.SetFadeTags(cfg.Playback.FadeTags)
				}
			}
		}
	}()
}

func (a *App) Shutdown() {
	a.Workers.CancelAll()
	a.Session.Shutdown()
	a.LocalPlayer.Destroy()
	a.SaveConfigFile()
	a.cancel()
}

func (a *App) configChanged() bool {
	a.cfgMu.RLock()
	defer a.cfgMu.RUnlock()
	return !reflect.DeepEqual(&a.lastWrittenCfg, a.Config)
}

func (a *App) SaveConfigFile() {
	a.cfgMu.Lock()
	cfg := *a.Config
	a.lastWrittenCfg = cfg
	a.cfgMu.Unlock()
	cfg.WriteConfigFile(a.configFilePath())
}

func (a *App) configFilePath() string {
	return path.Join(a.configDir, configFile)
}
