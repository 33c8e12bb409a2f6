package cmd

import (
	"context"
	"fmt"
	"log"

	"surroundio/config"
	"surroundio/storage"

	"github.com/spf13/cobra"
)

var assetsPrefix string

var assetsCmd = &cobra.Command{
	Use:   "assets",
	Short: "存储桶资产管理",
	Long:  `查看存储桶中的投稿资产，支持按前缀过滤（covers/ 或 audio/）。`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.Load()
		fmt.Printf("MinIO配置: %s, Bucket: %s\n", cfg.MinioEndpoint, cfg.MinioBucket)

		store, err := storage.NewMinioStore(cfg)
		if err != nil {
			log.Fatalf("创建MinIO客户端失败: %v", err)
		}

		if err := store.PrintBucketStatus(context.Background(), assetsPrefix); err != nil {
			log.Fatalf("获取存储桶状态失败: %v", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(assetsCmd)

	assetsCmd.Flags().StringVarP(&assetsPrefix, "prefix", "p", "", "按前缀过滤资产")

	assetsCmd.Example = `  # 列出所有资产
  surroundio assets

  # 只看封面
  surroundio assets -p "covers/"

  # 只看音频
  surroundio assets -p "audio/"`
}
