package cmd

import (
	"context"
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/sockheadrps/OBS-Stream-Control-Hub/storage"
)

var (
	minioPrefix string
	minioList   bool
	minioPrune  bool
)

var minioCmd = &cobra.Command{
	Use:   "minio",
	Short: "从 MinIO 同步曲库",
	Long:  `把 MinIO 存储桶中指定前缀下的音频文件同步到 MUSIC_DIR，或只列出远端文件。`,
	Run: func(cmd *cobra.Command, args []string) {
		if cmd.Flags().Changed("prefix") {
			cfg.MinioPrefix = minioPrefix
		}
		fmt.Printf("MinIO配置: %s, Bucket: %s, Prefix: %q\n", cfg.MinioEndpoint, cfg.MinioBucket, cfg.MinioPrefix)

		ctx := context.Background()
		bucket, err := storage.NewMusicBucket(ctx, cfg)
		if err != nil {
			log.Fatalf("无法连接到MinIO: %v", err)
		}

		if minioList {
			objects, err := bucket.ListTracks(ctx)
			if err != nil {
				log.Fatalf("列出文件失败: %v", err)
			}
			for _, obj := range objects {
				fmt.Printf("%s\t%d\t%s\n", obj.Name, obj.Size, obj.LastModified.Format("2006-01-02 15:04:05"))
			}
			fmt.Printf("共 %d 个文件\n", len(objects))
			return
		}

		res, err := bucket.SyncToDir(ctx, cfg.MusicDir, minioPrune)
		if err != nil {
			log.Fatalf("同步失败: %v", err)
		}
		for _, name := range res.Downloaded {
			fmt.Println("下载:", name)
		}
		for _, name := range res.Removed {
			fmt.Println("删除:", name)
		}
		fmt.Printf("同步完成: 下载 %d, 跳过 %d, 删除 %d -> %s\n",
			len(res.Downloaded), len(res.Skipped), len(res.Removed), cfg.MusicDir)
	},
}

func init() {
	rootCmd.AddCommand(minioCmd)

	minioCmd.Flags().StringVarP(&minioPrefix, "prefix", "p", "", "覆盖 MINIO_PREFIX")
	minioCmd.Flags().BoolVarP(&minioList, "list", "l", false, "只列出远端文件，不下载")
	minioCmd.Flags().BoolVar(&minioPrune, "prune", false, "删除远端不存在的本地文件")

	minioCmd.Example = `  # 同步到 MUSIC_DIR
  obs-hub minio

  # 列出 stream/ 前缀下的文件
  obs-hub minio -l -p "stream/"

  # 同步并删除多余的本地文件
  obs-hub minio --prune`
}
