package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/sockheadrps/OBS-Stream-Control-Hub/cache"
	"github.com/sockheadrps/OBS-Stream-Control-Hub/core/player"
)

var redisWatch bool

var redisCmd = &cobra.Command{
	Use:   "redis",
	Short: "Redis连接测试",
	Long:  `测试Redis连接和基本读写，并打印服务镜像到 Redis 的播放状态。`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("Redis配置: %s:%s, DB: %d\n", cfg.RedisHost, cfg.RedisPort, cfg.RedisDB)

		if err := cache.ConnectRedis(cfg); err != nil {
			log.Fatalf("无法连接到Redis: %v", err)
		}
		defer func() {
			if err := cache.CloseRedis(); err != nil {
				log.Printf("关闭Redis连接时发生错误: %v", err)
			}
		}()
		fmt.Println("Redis连接成功！")

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		if err := cache.TestRedis(ctx); err != nil {
			log.Fatalf("Redis操作测试失败: %v", err)
		}
		fmt.Println("Redis基本操作测试成功！")

		status := cache.NewStatusCache(cache.RedisClient, cfg.RedisStatusKey)
		snap, ok, err := status.Get(ctx)
		switch {
		case err != nil:
			log.Printf("读取播放状态失败: %v", err)
		case !ok:
			fmt.Printf("%s 中没有播放状态\n", status.Key)
		default:
			printSnapshot(snap)
		}

		if redisWatch {
			fmt.Printf("订阅 %s，Ctrl+C 退出\n", status.Channel())
			if err := status.Subscribe(ctx, cache.RedisClient, printSnapshot); err != nil {
				log.Printf("订阅失败: %v", err)
			}
		}
	},
}

func printSnapshot(s player.Snapshot) {
	b, err := json.Marshal(s)
	if err != nil {
		log.Printf("编码状态失败: %v", err)
		return
	}
	fmt.Println(string(b))
}

func init() {
	rootCmd.AddCommand(redisCmd)
	redisCmd.Flags().BoolVarP(&redisWatch, "watch", "w", false, "持续打印镜像的播放状态")
}
