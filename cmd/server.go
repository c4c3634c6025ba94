package cmd

import (
	"github.com/spf13/cobra"

	"trackstyler/server"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "启动TrackStyler服务器",
	Long:  `启动TrackStyler的HTTP服务器，提供上传、标签编辑、封面管理与格式转换的API`,
	Run: func(cmd *cobra.Command, args []string) {
		server.Start()
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
}
