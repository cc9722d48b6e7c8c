package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	_ "modernc.org/sqlite"

	"github.com/banshee-data/trajlab/internal/api"
	"github.com/banshee-data/trajlab/internal/config"
	"github.com/banshee-data/trajlab/internal/db"
	"github.com/banshee-data/trajlab/internal/monitor"
	"github.com/banshee-data/trajlab/internal/perturb"
	"github.com/banshee-data/trajlab/internal/units"
	"github.com/banshee-data/trajlab/internal/version"
)

var (
	listen      = flag.String("listen", ":8080", "HTTP listen address")
	dbPath      = flag.String("db", "trajlab.db", "Path to the SQLite database file")
	configPath  = flag.String("config", "", "Path to a perturbation tuning file (JSON, optional)")
	unitsFlag   = flag.String("units", units.MPS, "Display units for speeds: "+units.GetValidUnitsString())
	showVersion = flag.Bool("version", false, "Print version information and exit")
)

func main() {
	// The migrate subcommand manages schema versions directly and does not
	// share the server flag set.
	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		runMigrate(os.Args[2:])
		return
	}

	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	if *listen == "" {
		log.Fatal("Listen address is required")
	}
	if !units.IsValid(*unitsFlag) {
		log.Fatalf("Invalid units %q (valid: %s)", *unitsFlag, units.GetValidUnitsString())
	}

	tuning := config.EmptyTuningConfig()
	if *configPath != "" {
		loaded, err := config.LoadTuningConfig(*configPath)
		if err != nil {
			log.Fatalf("Failed to load tuning config: %v", err)
		}
		if err := loaded.Validate(); err != nil {
			log.Fatalf("Invalid tuning config %s: %v", *configPath, err)
		}
		tuning = loaded
		log.Printf("Loaded tuning config from %s", *configPath)
	}

	database, err := db.NewDB(*dbPath)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	perturber, err := perturb.NewFromTuning(tuning)
	if err != nil {
		log.Fatalf("Failed to build perturbation from tuning: %v", err)
	}

	apiServer := api.NewServer(perturber, database, tuning, *unitsFlag)
	webServer := monitor.NewWebServer(monitor.WebServerConfig{
		Address: *listen,
		DB:      database,
		Units:   *unitsFlag,
		API:     api.LoggingMiddleware(apiServer.ServeMux()),
	})

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Printf("Starting trajlab server %s on %s (db=%s, units=%s)", version.Version, *listen, *dbPath, *unitsFlag)
		if err := webServer.Start(ctx); err != nil {
			log.Printf("Web server error: %v", err)
		}
		log.Printf("HTTP server routine stopped")
	}()

	wg.Wait()
	log.Printf("Graceful shutdown complete")
}

// runMigrate splits "trajlab migrate up -db foo.db" into the subcommand words
// and the trailing flags before handing off to the migration CLI.
func runMigrate(args []string) {
	cmdArgs, flagArgs := splitMigrateArgs(args)

	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	migrateDB := fs.String("db", "trajlab.db", "Path to the SQLite database file")
	if err := fs.Parse(flagArgs); err != nil {
		log.Fatalf("Failed to parse migrate flags: %v", err)
	}

	db.RunMigrateCommand(cmdArgs, *migrateDB)
}

// splitMigrateArgs separates leading subcommand words from trailing flags.
// Everything before the first dash-prefixed argument is a subcommand word.
func splitMigrateArgs(args []string) (cmdArgs, flagArgs []string) {
	for i, arg := range args {
		if strings.HasPrefix(arg, "-") {
			return args[:i], args[i:]
		}
	}
	return args, nil
}
