// Command mangawatchd runs the mangawatch daemon in the foreground: the
// scrape loop, the notification relay, and the HTTP admin API.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"mangawatch/internal/config"
	"mangawatch/internal/daemonrun"
)

func main() {
	var configPath string
	var logLevel string
	flag.StringVar(&configPath, "config", "", "configuration file path")
	flag.StringVar(&logLevel, "log-level", "", "log level override (debug, info, warn, error)")
	flag.Parse()

	// Optional .env in the working directory, mainly for api tokens and the
	// ntfy topic during development.
	_ = godotenv.Load()

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		fmt.Fprintf(os.Stderr, "prepare directories: %v\n", err)
		os.Exit(1)
	}

	if err := daemonrun.Run(context.Background(), cfg, daemonrun.Options{LogLevel: logLevel}); err != nil {
		fmt.Fprintf(os.Stderr, "mangawatchd: %v\n", err)
		os.Exit(1)
	}
}
