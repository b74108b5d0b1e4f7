package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"

	"github.com/amphora-app/amphora/backend"
	"github.com/amphora-app/amphora/backend/mediaprovider"
	"github.com/amphora-app/amphora/sharedutil"
)

const (
	appName       = "amphora"
	appVersionTag = "0.8.0"
)

func main() {
	addServer := flag.String("add-server", "", "add a server as nickname,hostname,username (password read from stdin) and exit")
	logout := flag.Bool("logout", false, "log out of the default server, forgetting its password and cached state")
	listPlaylists := flag.Bool("playlists", false, "list playlists on the default server and exit")
	listAlbums := flag.Bool("albums", false, "list all albums on the default server and exit")
	listRadios := flag.Bool("radios", false, "list the server's radio stations and exit")
	search := flag.String("search", "", "search the server and print the results")
	recommend := flag.Bool("recommend", false, "print a listening recommendation")
	playID := flag.String("play", "", "start playback of a prefixed id (playlist_*, album_*, artist_*, song_*, radio_*)")
	shuffle := flag.Bool("shuffle", false, "shuffle the fetched queue before playing")
	random := flag.Bool("random", false, "start random playback")
	resume := flag.Bool("resume", false, "resume the last saved play state")
	flag.Parse()

	myApp, err := backend.StartupApp(appName, appVersionTag)
	if err != nil {
		log.Fatalf("fatal startup error: %v", err)
	}
	defer myApp.Shutdown()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if *addServer != "" {
		if err := doAddServer(myApp, *addServer); err != nil {
			log.Fatalf("could not add server: %v", err)
		}
		return
	}

	if err := myApp.ConnectToDefaultServer(ctx); err != nil {
		log.Fatalf("could not connect to server: %v", err)
	}

	myApp.PlaybackEngine.OnSongChange(func(tr *mediaprovider.Track) {
		if tr != nil {
			log.Printf("now playing: %s - %s", tr.Artist, tr.Title)
		}
	})
	myApp.PlaybackEngine.OnQueueChange(func() {
		ids := sharedutil.TracksToIDs(myApp.PlaybackEngine.ComingUp())
		log.Printf("queue changed: %d tracks %v", len(ids), ids)
	})

	switch {
	case *logout:
		myApp.ServerManager.Logout()
		return
	case *listPlaylists:
		myApp.LibraryManager.GetPlaylists(myApp.Config.Application.ShowHiddenPlaylists, func(pls []mediaprovider.CatalogItem) {
			for _, pl := range pls {
				fmt.Printf("playlist_%s\t%s\n", pl.ID, pl.Name)
			}
			cancel()
		})
	case *listAlbums:
		items, err := myApp.ServerManager.Server.Albums(ctx)
		if err != nil {
			log.Fatalf("could not list albums: %v", err)
		}
		for _, al := range items {
			fmt.Printf("album_%s\t%s\n", al.ID, al.Name)
		}
		return
	case *listRadios:
		items, err := myApp.ServerManager.Server.LiveStreams(ctx)
		if err != nil {
			log.Fatalf("could not list radio stations: %v", err)
		}
		for _, st := range items {
			fmt.Printf("radio_%s\t%s\n", st.ID, st.Name)
		}
		return
	case *search != "":
		myApp.LibraryManager.SearchResults.OnResult(func(err error) {
			if err != nil {
				log.Printf("search failed: %v", err)
				cancel()
			}
		})
		myApp.LibraryManager.SetSearchQuery(mediaprovider.SearchQuery{Query: *search})
		myApp.LibraryManager.SearchResults.Get(func(results mediaprovider.SearchResults) {
			printSearchResults(results)
			cancel()
		})
	case *recommend:
		myApp.LibraryManager.Recommendations.OnResult(func(err error) {
			if err != nil {
				log.Printf("recommendation failed: %v", err)
				cancel()
			}
		})
		myApp.LibraryManager.Recommendations.Get(func(rec mediaprovider.Recommendations) {
			printRecommendations(rec)
			cancel()
		})
	case *playID != "":
		myApp.RequestPlay(*playID, *shuffle)
	case *random:
		myApp.Session.Post(func() {
			if err := myApp.PlaybackEngine.StartRandom(ctx); err != nil {
				log.Printf("error starting random playback: %v", err)
			}
		})
	case *resume, myApp.Config.Application.ResumeOnStartup:
		myApp.Session.Post(func() {
			if err := myApp.PlaybackEngine.Resume(ctx); err != nil {
				log.Printf("error resuming play state: %v", err)
			}
		})
	default:
		flag.Usage()
		return
	}

	<-ctx.Done()
}

func doAddServer(myApp *backend.App, spec string) error {
	parts := strings.SplitN(spec, ",", 3)
	if len(parts) != 3 {
		return fmt.Errorf("expected nickname,hostname,username, got %q", spec)
	}
	conf := &backend.ServerConfig{
		ID:       uuid.New(),
		Nickname: parts[0],
		Hostname: parts[1],
		Username: parts[2],
		Default:  len(myApp.Config.Servers) == 0,
	}

	fmt.Fprintf(os.Stderr, "password for %s@%s: ", conf.Username, conf.Hostname)
	password, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return err
	}
	if err := myApp.ServerManager.SetServerPassword(conf, strings.TrimSpace(password)); err != nil {
		return err
	}
	myApp.Config.Servers = append(myApp.Config.Servers, conf)
	myApp.SaveConfigFile()
	log.Printf("added server %s (%s)", conf.Nickname, conf.Hostname)
	return nil
}

func printSearchResults(results mediaprovider.SearchResults) {
	for _, a := range results.Artists {
		fmt.Printf("artist_%s\t%s\n", a.ID, a.Name)
	}
	for _, al := range results.Albums {
		fmt.Printf("album_%s\t%s\n", al.ID, al.Name)
	}
	for _, al := range results.ArtistAlbums {
		fmt.Printf("album_%s\t%s (artist match)\n", al.ID, al.Name)
	}
	for _, s := range results.Songs {
		fmt.Printf("song_%s\t%s - %s\n", s.ID, s.Artist, s.Title)
	}
}

func printRecommendations(rec mediaprovider.Recommendations) {
	for _, tr := range rec.Tracks {
		fmt.Printf("song_%s\t%s - %s\n", tr.ID, tr.Artist, tr.Title)
	}
	for _, a := range rec.Artists {
		fmt.Printf("artist_%s\t%s\n", a.ID, a.Name)
	}
	for _, al := range rec.Albums {
		fmt.Printf("album_%s\t%s\n", al.ID, al.Name)
	}
	for _, pl := range rec.Playlists {
		fmt.Printf("playlist_%s\t%s\n", pl.ID, pl.Name)
	}
}
