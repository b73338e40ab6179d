package app

import (
	"fmt"

	"github.com/bobmcallan/tradewatch/internal/clients/capitoltrades"
	"github.com/bobmcallan/tradewatch/internal/common"
	"github.com/bobmcallan/tradewatch/internal/interfaces"
)

// buildSources instantiates the configured source kinds in priority order.
func buildSources(config *common.Config, resolver interfaces.NameResolver, logger *common.Logger) ([]interfaces.TradeSource, error) {
	sources := make([]interfaces.TradeSource, 0, len(config.Sources.Order))

	for _, kind := range config.Sources.Order {
		switch kind {
		case common.SourceKindHTML:
			cfg := config.Sources.HTML
			sources = append(sources, capitoltrades.NewHTMLSource(resolver,
				capitoltrades.WithPageURL(cfg.URL),
				capitoltrades.WithHTMLLogger(logger),
				capitoltrades.WithProbeTimeout(cfg.GetProbeTimeout()),
				capitoltrades.WithFetchTimeout(cfg.GetFetchTimeout()),
				capitoltrades.WithSeed(cfg.Seed),
			))
		case common.SourceKindAPI:
			cfg := config.Sources.API
			sources = append(sources, capitoltrades.NewAPISource(
				capitoltrades.WithAPIURL(cfg.URL),
				capitoltrades.WithAPILogger(logger),
				capitoltrades.WithAPITimeout(cfg.GetTimeout()),
			))
		default:
			return nil, fmt.Errorf("unknown source kind %q", kind)
		}
	}

	return sources, nil
}
