package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/five82/perch/internal/app"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "config file path (default ~/.config/perch/config.toml)")
	prefsPath := flag.String("prefs", "", "preferences file path (default ~/.config/perch/prefs.toml)")
	server := flag.String("server", "", "log server address, e.g. 127.0.0.1:8080 or https://logs.example")
	file := flag.String("file", "", "view a local log file instead of a server")
	capacity := flag.Int("capacity", 0, "maximum retained entries (default 10000)")
	debug := flag.Bool("debug", false, "write debug-level logs")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	opts := app.Options{
		ConfigPath: *configPath,
		PrefsPath:  *prefsPath,
		Server:     *server,
		File:       *file,
		Capacity:   *capacity,
		Debug:      *debug,
	}
	if err := app.Run(ctx, opts); err != nil {
		fmt.Fprintf(os.Stderr, "perch: %v\n", err)
		return 1
	}
	return 0
}
