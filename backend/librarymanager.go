package backend

import (
	"context"
	"encoding/json"
	"log"
	"sort"
	"strings"
	"sync"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/amphora-app/amphora/backend/mediaprovider"
	"github.com/amphora-app/amphora/sharedutil"
)

const (
	recentAlbumCount = 36

	storeGroupPlaylistCache = "playlistCache"
	storeKeyPlaylistItems   = "items"
)

// LibraryManager owns the four independent result caches the browse
// surfaces request from: playlists, recommendations, search results, and
// recently added albums. Each cache is single-flight and holds its last
// known good value; there is no cross-cache consistency requirement.
type LibraryManager struct {
	Playlists       *ResultCache[[]mediaprovider.CatalogItem]
	Recommendations *ResultCache[mediaprovider.Recommendations]
	SearchResults   *ResultCache[mediaprovider.SearchResults]
	RecentAlbums    *ResultCache[[]mediaprovider.CatalogItem]

	ctx   context.Context
	sm    *ServerManager
	store Store

	mu          sync.Mutex
	searchQuery mediaprovider.SearchQuery
}

func NewLibraryManager(ctx context.Context, sm *ServerManager, store Store, fadeTags func() []string) *LibraryManager {
	lm := &LibraryManager{
		ctx:   ctx,
		sm:    sm,
		store: store,
	}

	lm.Playlists = NewResultCache(lm.fetchPlaylists)
	lm.Playlists.OnNewValue(lm.persistPlaylistSnapshot)
	lm.primePlaylistsFromSnapshot()

	engine := NewRecommendationEngine(func() []mediaprovider.CatalogItem {
		items, _ := lm.Playlists.Peek()
		return items
	}, fadeTags)
	lm.Recommendations = NewResultCache(func() (mediaprovider.Recommendations, error) {
		return engine.Build(lm.ctx, lm.sm.Server)
	})

	lm.SearchResults = NewResultCache(lm.fetchSearch)
	lm.RecentAlbums = NewResultCache(lm.fetchRecentAlbums)

	sm.OnLogout(func() {
		lm.Playlists.Invalidate()
		lm.Recommendations.Invalidate()
		lm.SearchResults.Invalidate()
		lm.RecentAlbums.Invalidate()
		lm.store.Delete(storeGroupPlaylistCache, storeKeyPlaylistItems)
	})

	return lm
}

// GetPlaylists delivers the cached playlists, hiding dot-prefixed ones
// unless includeHidden is set. Filtering happens at read time so one cache
// serves both views.
func (lm *LibraryManager) GetPlaylists(includeHidden bool, consumer func([]mediaprovider.CatalogItem)) {
	lm.Playlists.Get(func(items []mediaprovider.CatalogItem) {
		if includeHidden {
			consumer(items)
			return
		}
		consumer(sharedutil.FilterSlice(items, func(p mediaprovider.CatalogItem) bool {
			return !strings.HasPrefix(p.Name, ".")
		}))
	})
}

// SetSearchQuery replaces the active query and starts a fresh search.
func (lm *LibraryManager) SetSearchQuery(q mediaprovider.SearchQuery) {
	lm.mu.Lock()
	lm.searchQuery = q
	lm.mu.Unlock()
	lm.SearchResults.Invalidate()
	lm.SearchResults.Refresh()
}

func (lm *LibraryManager) fetchPlaylists() ([]mediaprovider.CatalogItem, error) {
	server := lm.sm.Server
	if server == nil {
		return nil, ErrLoginFailed
	}
	items, err := server.Playlists(lm.ctx)
	if err != nil {
		return nil, err
	}
	lm.sortByName(items)
	return items, nil
}

func (lm *LibraryManager) fetchSearch() (mediaprovider.SearchResults, error) {
	server := lm.sm.Server
	if server == nil {
		return mediaprovider.SearchResults{}, ErrLoginFailed
	}
	lm.mu.Lock()
	query := lm.searchQuery
	lm.mu.Unlock()
	return server.Search(lm.ctx, query)
}

func (lm *LibraryManager) fetchRecentAlbums() ([]mediaprovider.CatalogItem, error) {
	server := lm.sm.Server
	if server == nil {
		return nil, ErrLoginFailed
	}
	items, err := server.RecentAlbums(lm.ctx, recentAlbumCount)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []mediaprovider.CatalogItem{}
	}
	lm.sortByName(items)
	return items, nil
}

func (lm *LibraryManager) sortByName(items []mediaprovider.CatalogItem) {
	// Collator is not safe for concurrent use and the fetches run on
	// separate cache goroutines, so build one per sort.
	c := collate.New(language.Und, collate.IgnoreCase)
	sort.SliceStable(items, func(i, j int) bool {
		return c.CompareString(items[i].Name, items[j].Name) < 0
	})
}

func (lm *LibraryManager) persistPlaylistSnapshot(items []mediaprovider.CatalogItem) {
	b, err := json.Marshal(items)
	if err != nil {
		log.Printf("error marshaling playlist snapshot: %v", err)
		return
	}
	if err := lm.store.SetString(storeGroupPlaylistCache, storeKeyPlaylistItems, string(b)); err != nil {
		log.Printf("error persisting playlist snapshot: %v", err)
	}
}

func (lm *LibraryManager) primePlaylistsFromSnapshot() {
	s, ok := lm.store.GetString(storeGroupPlaylistCache, storeKeyPlaylistItems)
	if !ok {
		return
	}
	var items []mediaprovider.CatalogItem
	if err := json.Unmarshal([]byte(s), &items); err != nil {
		log.Printf("error reading playlist snapshot: %v", err)
		return
	}
	lm.Playlists.Prime(items)
}
