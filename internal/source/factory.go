package source

import (
	"sjsage522/carlistingworker/config"
	"sjsage522/carlistingworker/logger"
	"sjsage522/carlistingworker/services/cache"
)

// CreateSources creates the sources enabled in the configuration
func CreateSources(cfg *config.Config, cacheSvc cache.CacheService, fetcher Fetcher) []ListingSource {
	requestInterval := cfg.RequestInterval.Milliseconds()
	blockTime := int64(cfg.BlockTime.Seconds())

	var sources []ListingSource
	if cfg.SourceEnabled(config.SourceCarsDotCom) {
		sources = append(sources, NewCarsDotCom(Config{
			Name:            config.SourceCarsDotCom,
			URL:             cfg.CarsDotComURL,
			BlockTime:       blockTime,
			RequestInterval: requestInterval,
		}, fetcher, cacheSvc))
	}
	if cfg.SourceEnabled(config.SourceCarGurus) {
		sources = append(sources, NewCarGurus(Config{
			Name:            config.SourceCarGurus,
			URL:             cfg.CarGurusURL,
			BlockTime:       blockTime,
			RequestInterval: requestInterval,
		}, fetcher, cacheSvc))
	}

	for i, s := range sources {
		logger.Info("Source %d: %s", i, s.Name())
	}
	return sources
}
