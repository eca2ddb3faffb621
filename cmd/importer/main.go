package main

import (
	"bufio"
	"context"
	"database/sql"
	"flag"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"reviewboost/internal/adapters/observability"
	"reviewboost/internal/adapters/places"
	redisad "reviewboost/internal/adapters/redis"
	"reviewboost/internal/app"
	"reviewboost/internal/domain"
	"reviewboost/internal/shared"
	mysqlrepo "reviewboost/internal/storage/mysql"
)

// The importer seeds the business table from a list of Google Maps links or
// business names, one per line. It shares the resolution pipeline with the
// API, so anything the portal can resolve imports the same way.
func main() {
	file := flag.String("file", "", "path with one link or name per line; - for stdin")
	flag.Parse()

	ctx := context.Background()
	cfg := shared.Load()

	// initialize global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv)

	inputs, err := readInputs(*file, flag.Args())
	if err != nil {
		log.Fatal().Err(err).Msg("read inputs failed")
	}
	if len(inputs) == 0 {
		log.Fatal().Msg("nothing to import; pass -file or arguments")
	}

	log.Info().
		Int("inputs", len(inputs)).
		Int("workers", cfg.Workers).
		Msg("importer starting")

	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	if err := db.Ping(); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}
	log.Info().Msg("db ping ok")

	repo := mysqlrepo.New(db)

	var cache domain.Cache
	if cfg.RedisAddr != "" {
		cache = redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	}

	var searcher places.Searcher
	if cfg.MapsAPIKey != "" {
		client, err := places.NewClient("", cfg.MapsAPIKey, cfg.PlacesRPS)
		if err != nil {
			log.Fatal().Err(err).Msg("places client init failed")
		}
		searcher = client
	}
	resolve := app.NewResolveService(
		places.NewResolver(places.NewExpander(log.Logger), searcher, log.Logger),
		cache, cfg.CacheTTL, log.Logger,
	)

	sem := semaphore.NewWeighted(int64(cfg.Workers))
	var wg sync.WaitGroup
	var failed atomic.Int64

	for _, input := range inputs {
		input := input

		// acquire before launching the goroutine; release inside it
		if err := sem.Acquire(ctx, 1); err != nil {
			log.Fatal().Err(err).Msg("semaphore acquire failed")
		}

		wg.Add(1)
		go func(input string) {
			defer wg.Done()
			defer sem.Release(1)

			place, err := resolve.Resolve(ctx, input)
			if err != nil {
				failed.Add(1)
				log.Warn().
					Str("input", input).
					Str("err_type", observability.LabelErr(err)).
					Err(err).
					Msg("resolve failed")
				return
			}
			biz, err := repo.UpsertBusiness(ctx, place.Name, place.PlaceID)
			if err != nil {
				failed.Add(1)
				log.Warn().Str("input", input).Err(err).Msg("upsert failed")
				return
			}
			log.Info().
				Int64("id", biz.ID).
				Str("name", biz.Name).
				Str("place_id", biz.GooglePlaceID).
				Msg("import ok")
		}(input)
	}

	wg.Wait()

	if cache != nil {
		// the portal caches the business list; direct repo writes stale it
		_ = cache.Del(ctx, app.BusinessesKey)
	}

	if n := failed.Load(); n > 0 {
		log.Error().Int64("failed", n).Int("total", len(inputs)).Msg("import finished with failures")
		os.Exit(1)
	}
	log.Info().Int("total", len(inputs)).Msg("import completed")
}

func readInputs(path string, args []string) ([]string, error) {
	out := append([]string(nil), args...)
	if path == "" {
		return dedupe(out), nil
	}

	var r io.Reader
	if path == "-" {
		r = os.Stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return dedupe(out), sc.Err()
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := in[:0]
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
