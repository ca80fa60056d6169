package main

import (
	"context"
	"flag"
	"fmt"
	"mime"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"github.com/timmy/dirt2meme/internal/app"
	"github.com/timmy/dirt2meme/internal/config"
	"github.com/timmy/dirt2meme/internal/logger"
	"github.com/timmy/dirt2meme/internal/repository"
	"github.com/timmy/dirt2meme/internal/service"
	"github.com/timmy/dirt2meme/internal/storage"
)

var imageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".bmp": true, ".webp": true,
}

func main() {
	os.Exit(run())
}

func run() int {
	appLogger := logger.New(&logger.Config{
		Level:       "info",
		Format:      "text",
		Output:      os.Stderr,
		ServiceName: "dirt2meme-cli",
	})
	logger.SetDefaultLogger(appLogger)

	in := flag.String("in", "", "Input image file or directory of images")
	url := flag.String("url", "", "Fetch the input image from a URL instead of -in")
	out := flag.String("out", "", "Write the meme here (single input) or into this directory (directory input)")
	seed := flag.Uint64("seed", 0, "Seed caption and overlay choice for reproducible output (0 = random)")
	workers := flag.Int("workers", 4, "Parallel workers for directory input")
	record := flag.Bool("record", false, "Also record generated memes in the configured database")
	configPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	if (*in == "") == (*url == "") {
		fmt.Fprintln(os.Stderr, "exactly one of -in or -url is required")
		flag.Usage()
		return 2
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	objectStorage, err := app.NewStorage(ctx, &cfg.Storage)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize storage")
	}

	var recorder service.MemeRecorder
	if *record {
		db, err := repository.InitDB(&cfg.Database)
		if err != nil {
			appLogger.WithError(err).Fatal("Failed to initialize database")
		}
		recorder = repository.NewMemeRepository(db)
	}

	var opts []service.Option
	if *seed != 0 {
		opts = append(opts, service.WithPicker(service.NewSeededPicker(*seed)))
	}
	generator := app.NewGenerator(cfg, objectStorage, recorder, appLogger, opts...)

	if *url != "" {
		fetcher := service.NewFetcher(cfg.Fetch.Timeout, cfg.Fetch.MaxBytes, service.WithPrivateHosts())
		up, err := fetcher.Fetch(ctx, *url)
		if err != nil {
			appLogger.WithError(err).Fatal("Failed to fetch image")
		}
		return generateOne(ctx, generator, objectStorage, *up, *out)
	}

	info, err := os.Stat(*in)
	if err != nil {
		appLogger.WithError(err).Fatal("Cannot read input")
	}
	if !info.IsDir() {
		up, err := readUpload(*in)
		if err != nil {
			appLogger.WithError(err).Fatal("Cannot read input")
		}
		return generateOne(ctx, generator, objectStorage, up, *out)
	}

	items, err := dirItems(*in)
	if err != nil {
		appLogger.WithError(err).Fatal("Cannot list input directory")
	}
	if *out != "" {
		if err := os.MkdirAll(*out, 0o755); err != nil {
			appLogger.WithError(err).Fatal("Cannot create output directory")
		}
	}

	stats := generator.GenerateBatch(ctx, items, *workers, func(r service.BatchResult) {
		if r.Err != nil {
			fmt.Printf("%s\tERROR\t%v\n", r.Name, r.Err)
			return
		}
		if *out != "" {
			target := filepath.Join(*out, strings.TrimSuffix(r.Name, filepath.Ext(r.Name))+".jpg")
			if err := os.WriteFile(target, r.Result.Image, 0o644); err != nil {
				fmt.Printf("%s\tERROR\t%v\n", r.Name, err)
				return
			}
		}
		fmt.Printf("%s\t%s\t%s\n", r.Name, r.Result.URL, r.Result.Caption)
	})
	if stats.FailedItems > 0 || stats.Rejected > 0 {
		return 1
	}
	return 0
}

func generateOne(ctx context.Context, gen *service.Generator, objects storage.ObjectStorage, up service.Upload, out string) int {
	res, err := gen.Generate(ctx, up)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", up.Filename, err)
		return 1
	}
	if out != "" {
		if err := os.WriteFile(out, res.Image, 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "write %s: %v\n", out, err)
			return 1
		}
	}

	meta := res.Metadata()
	fmt.Printf("id=%s url=%s face=%v caption=%q overlay=%s font=%s\n",
		res.ID, objects.GetURL(res.StorageKey), meta.FaceDetected, meta.Caption, res.Overlay.Asset, res.FontSource)
	return 0
}

func readUpload(path string) (service.Upload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return service.Upload{}, err
	}
	contentType := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if contentType == "" {
		contentType = "image/" + strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	}
	return service.Upload{Data: data, ContentType: contentType, Filename: filepath.Base(path)}, nil
}

func dirItems(dir string) ([]service.BatchItem, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var items []service.BatchItem
	for _, e := range entries {
		if e.IsDir() || !imageExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		path := filepath.Join(dir, e.Name())
		items = append(items, service.BatchItem{
			Name: e.Name(),
			Load: func() (service.Upload, error) { return readUpload(path) },
		})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Name < items[j].Name })
	return items, nil
}
