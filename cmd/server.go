package cmd

import (
	"surroundio/server"

	"github.com/spf13/cobra"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "启动投稿服务器",
	Long:  `启动专辑投稿系统的HTTP服务器，提供投稿提交、查询、删除和下载接口`,
	Run: func(cmd *cobra.Command, args []string) {
		server.Start()
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
}
