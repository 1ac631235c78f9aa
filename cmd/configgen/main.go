package main

import (
	"flag"
	"os"

	"github.com/danmuck/skmux/internal/config"
	"github.com/danmuck/skmux/internal/logging"
	"github.com/rs/zerolog/log"
)

func main() {
	logging.ConfigureRuntime()
	if err := run(os.Args[1:]); err != nil {
		log.Fatal().Err(err).Msg("configgen_failed")
	}
}

// run writes a client config template, or with -validate loads and checks
// an existing file.
func run(args []string) error {
	fs := flag.NewFlagSet("configgen", flag.ContinueOnError)
	output := fs.String("output", "client.toml", "output path for client config template")
	validate := fs.Bool("validate", false, "validate an existing config file")
	input := fs.String("input", "client.toml", "config path for validation")
	force := fs.Bool("force", false, "overwrite existing config file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *validate {
		cfg, err := config.LoadClientConfig(*input)
		if err != nil {
			return err
		}
		log.Info().Str("path", *input).Str("url", cfg.URL).Msg("config_valid")
		return nil
	}

	if err := config.WriteTemplate(*output, "client", *force); err != nil {
		return err
	}
	log.Info().Str("path", *output).Msg("config_template_written")
	return nil
}
