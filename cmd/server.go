package cmd

import (
	"github.com/spf13/cobra"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "启动音频控制服务器",
	Long:  `启动 HTTP 服务器，提供 /websockets/audio 控制接口、曲库列表和指标。`,
	RunE:  runServer,
}

func init() {
	rootCmd.AddCommand(serverCmd)
}
