package gds

import (
	stderrors "errors"
	"net/url"

	"github.com/neo4j/graph-data-science-client-sub004/pkg/cache"
	"github.com/neo4j/graph-data-science-client-sub004/pkg/config"
)

// boltHost extracts the host of a Bolt URI.
func boltHost(uri string) string {
	u, err := url.Parse(uri)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

func joinErrors(errs []error) error {
	if len(errs) == 1 {
		return errs[0]
	}
	return stderrors.Join(errs...)
}

// OpenCache opens the cache backend selected by cfg.
func OpenCache(cfg config.Cache) (cache.Cache, error) {
	switch cfg.Backend {
	case config.CacheRedis:
		return cache.NewRedisCache(cfg.RedisURL)
	case config.CacheFile:
		dir := cfg.Dir
		if dir == "" {
			d, err := config.DefaultCacheDir()
			if err != nil {
				return cache.NewNullCache(), nil
			}
			dir = d
		}
		fc, err := cache.NewFileCache(dir)
		if err != nil {
			return nil, err
		}
		return fc, nil
	}
	return cache.NewNullCache(), nil
}
