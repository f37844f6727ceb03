package config

import (
	"strings"

	"github.com/rotisserie/eris"
)

// Validate checks the configuration needed for the given command mode and
// reports every problem at once.
func (c *Config) Validate(mode string) error {
	var problems []string

	check := func(ok bool, msg string) {
		if !ok {
			problems = append(problems, msg)
		}
	}

	validateCommon := func() {
		switch c.Store.Driver {
		case "sqlite":
			check(c.Store.Path != "", "store.path is required for the sqlite driver")
		case "postgres":
			check(c.Store.DatabaseURL != "", "store.database_url is required for the postgres driver")
		default:
			check(false, "store.driver must be sqlite or postgres")
		}
	}

	switch mode {
	case "detect":
		validateCommon()
		check(c.Detectors.Dir != "", "detectors.dir is required")
		check(c.Run.MaxConcurrentDetectors >= 1 && c.Run.MaxConcurrentDetectors <= 32,
			"run.max_concurrent_detectors must be between 1 and 32")
		switch c.Source.Kind {
		case "jsonl", "xlsx":
			check(c.Source.Path != "", "source.path is required for file sources")
		case "api":
			check(c.Source.BaseURL != "", "source.base_url is required for the api source")
		default:
			check(false, "source.kind must be jsonl, xlsx or api")
		}
	case "serve":
		validateCommon()
		check(c.Server.Port > 0, "server.port must be > 0")
	case "detectors":
		check(c.Detectors.Dir != "", "detectors.dir is required")
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}
