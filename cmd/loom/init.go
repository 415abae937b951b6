package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/rs/zerolog/log"
	flag "github.com/spf13/pflag"
)

func initFlags(ko *koanf.Koanf) {
	f := flag.NewFlagSet("config", flag.ContinueOnError)
	f.Usage = func() {
		fmt.Println(f.FlagUsages())
		os.Exit(0)
	}

	f.StringSlice("config", nil, "path to one or more config files (merged in order)")
	f.String("mode", "capture", "capture or replay")
	f.StringSlice("brokers", nil, "kafka bootstrap servers; when empty a file-backed log is used")
	f.String("log-file", "loom-events.db", "path of the file-backed event log when no brokers are given")
	f.String("topic", "", "capture topic; partitions are named <topic>-<worker>")
	f.Int("workers", 2, "number of workers in this computation")
	f.Int("source-peers", 0, "number of workers of the capturing computation (replay mode)")
	f.Int64("count", 100000, "number of records to generate (capture mode)")
	f.Bool("debug", false, "human-readable trace logging")
	f.Bool("version", false, "show current version of the build")

	if err := f.Parse(os.Args[1:]); err != nil {
		log.Fatal().Msgf("error loading flags: %v", err)
	}

	for _, path := range mustStrings(f, "config") {
		var parser koanf.Parser
		switch path[strings.LastIndex(path, ".")+1:] {
		case "yaml", "yml":
			parser = yaml.Parser()
		case "json":
			parser = json.Parser()
		default:
			log.Fatal().Msgf("unsupported config file extension: %s", path)
		}
		log.Debug().Msgf("reading config from %s", path)
		if err := ko.Load(file.Provider(path), parser); err != nil {
			log.Fatal().Msgf("error reading config: %v", err)
		}
	}

	if err := ko.Load(posflag.Provider(f, ".", ko), nil); err != nil {
		log.Fatal().Msgf("error reading flag config: %v", err)
	}
}

func mustStrings(f *flag.FlagSet, name string) []string {
	values, err := f.GetStringSlice(name)
	if err != nil {
		log.Fatal().Msgf("error reading flag %s: %v", name, err)
	}
	return values
}
