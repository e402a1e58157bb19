package main

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/vlatan/news-sitemap/internal/config"
	"github.com/vlatan/news-sitemap/internal/coordinator"
	"github.com/vlatan/news-sitemap/internal/drivers/database"
	"github.com/vlatan/news-sitemap/internal/drivers/rdb"
	"github.com/vlatan/news-sitemap/internal/notifier"
	postsRepo "github.com/vlatan/news-sitemap/internal/repositories/posts"
	"github.com/vlatan/news-sitemap/internal/sitemap"
)

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: cli <command>")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  rebuild   Rebuild the sitemap and store it in the cache")
	fmt.Fprintln(os.Stderr, "  ping      Notify the search engines, bypassing the cooldown")
	fmt.Fprintln(os.Stderr, "  print     Build the sitemap and print it to stdout")
	fmt.Fprintln(os.Stderr, "  validate  Build the sitemap and check it is well formed")
	fmt.Fprintln(os.Stderr, "  status    Show the last build and ping state")
}

func main() {

	// Load the .env file if present
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	// Listen for interruption signals
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.New()

	db, err := database.New(cfg)
	if err != nil {
		log.Fatalf("couldn't create DB service; %v", err)
	}
	defer db.Close()

	store, err := rdb.New(cfg)
	if err != nil {
		log.Fatalf("couldn't create Redis service; %v", err)
	}
	defer store.Client.Close()

	repo := postsRepo.New(db, cfg)
	coord := coordinator.New(store, repo, sitemap.Options{
		SiteHost:            cfg.SiteHost(),
		PublicationName:     cfg.Publication(),
		Language:            cfg.NewsLanguage(),
		MaxURLs:             config.MaxURLs,
		RespectNoindex:      config.RespectNoindex,
		EmitKeywords:        cfg.EmitKeywords,
		DefaultGenres:       cfg.DefaultGenres,
		DefaultImageLicense: cfg.DefaultImageLicense,
	}, nil)
	pings := notifier.New(store, cfg, nil)

	switch os.Args[1] {

	case "rebuild":
		meta, err := coord.Rebuild(ctx)
		if errors.Is(err, coordinator.ErrBuildInProgress) {
			log.Println("Another build is already in progress, try again later")
			os.Exit(1)
		}
		if err != nil {
			log.Printf("Rebuild failed; %v", err)
			os.Exit(1)
		}
		fmt.Printf("Sitemap rebuilt with %d entries in %dms\n", meta.Count, meta.TookMS)

	case "ping":
		results, err := pings.Notify(ctx, true)
		if err != nil {
			log.Printf("Ping failed; %v", err)
			os.Exit(1)
		}
		if len(results) == 0 {
			fmt.Println("Pings are disabled, nothing sent")
			return
		}
		failed := false
		for _, result := range results {
			if result.OK {
				fmt.Printf("%s: ok (%d)\n", result.Endpoint, result.Status)
				continue
			}
			failed = true
			fmt.Printf("%s: failed (%s)\n", result.Endpoint, result.Error)
		}
		if failed {
			os.Exit(1)
		}

	case "print":
		doc, err := coord.BuildOnly(ctx)
		if err != nil {
			log.Printf("Build failed; %v", err)
			os.Exit(1)
		}
		fmt.Println(doc)

	case "validate":
		doc, err := coord.BuildOnly(ctx)
		if err != nil {
			log.Printf("Build failed; %v", err)
			os.Exit(1)
		}
		if err := wellFormed(doc); err != nil {
			log.Printf("Sitemap is not well formed; %v", err)
			os.Exit(1)
		}
		fmt.Printf("Sitemap is well formed, %d entries\n", strings.Count(doc, "<url>"))

	case "status":
		meta, err := coord.Meta(ctx)
		if err != nil {
			log.Printf("Unable to fetch the build meta; %v", err)
			os.Exit(1)
		}
		if meta.IsZero() {
			fmt.Println("No build recorded yet")
		} else {
			fmt.Printf("Last build: %s, %d entries, took %dms\n",
				meta.GeneratedAt.Format("2006-01-02 15:04:05 MST"), meta.Count, meta.TookMS)
			fmt.Printf("Etag: %s\n", meta.ETag)
		}
		record, err := pings.LastRecord(ctx)
		if err != nil {
			log.Printf("Unable to fetch the ping record; %v", err)
			os.Exit(1)
		}
		if record.PingedAt.IsZero() {
			fmt.Println("No ping recorded yet")
			return
		}
		fmt.Printf("Last ping: %s\n", record.PingedAt.Format("2006-01-02 15:04:05 MST"))
		for endpoint, outcome := range record.Results {
			fmt.Printf("  %s: %s\n", endpoint, outcome)
		}

	default:
		usage()
		os.Exit(2)
	}
}

// wellFormed runs the document through the XML tokenizer
func wellFormed(doc string) error {
	decoder := xml.NewDecoder(strings.NewReader(doc))
	for {
		if _, err := decoder.Token(); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}
