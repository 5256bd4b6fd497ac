package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/srujanreddy27/queuectl/cmd"
	"github.com/srujanreddy27/queuectl/internal/config"
	"github.com/srujanreddy27/queuectl/internal/queue"
	"github.com/srujanreddy27/queuectl/internal/storage"
)

func main() {
	dataDir, err := config.DataDir()
	if err != nil {
		fatal(err)
	}

	cfg, err := config.Load(dataDir)
	if err != nil {
		fatal(err)
	}

	store, err := storage.NewStore(dataDir, cfg.LockTimeoutDuration())
	if err != nil {
		fatal(err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	cmd.Execute(store, queue.NewManager(store, cfg), cfg, dataDir, logger)
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "Error:", err)
	os.Exit(1)
}
