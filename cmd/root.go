package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sockheadrps/OBS-Stream-Control-Hub/config"
	"github.com/sockheadrps/OBS-Stream-Control-Hub/logger"
	"github.com/sockheadrps/OBS-Stream-Control-Hub/server"
)

// cfg 在 PersistentPreRun 中加载，所有子命令共享
var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "obs-hub",
	Short: "OBS stream control hub: audio playback orchestrator.",
	Long: `Plays the tracks in MUSIC_DIR as a queue and lets any number of
websocket clients (control panel, OBS overlays, chat bot) drive playback.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cfg = config.Load()
		logger.InitLogger(logger.Config{
			Level:      logger.LogLevel(cfg.LogLevel),
			OutputPath: cfg.LogPath,
			MaxSize:    cfg.LogMaxSize,
			MaxBackups: cfg.LogMaxBackups,
			MaxAge:     cfg.LogMaxAge,
			Compress:   true,
		})
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Sync()
	},
	RunE: runServer,
}

func runServer(cmd *cobra.Command, args []string) error {
	return server.Start(cfg)
}

// Execute executes the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
