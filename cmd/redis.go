package cmd

import (
	"context"
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"trackstyler/cache"
	"trackstyler/config"
)

var redisCmd = &cobra.Command{
	Use:   "redis",
	Short: "Redis探测缓存检查",
	Long:  `测试Redis连接是否成功，并统计当前缓存的元数据探测结果。`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("开始测试Redis连接...")

		// 加载配置
		cfg := config.Load()
		fmt.Printf("Redis配置: %s:%s, DB: %d\n", cfg.RedisHost, cfg.RedisPort, cfg.RedisDB)

		// 连接Redis
		if err := cache.ConnectRedis(cfg); err != nil {
			log.Fatalf("无法连接到Redis: %v", err)
		}
		fmt.Println("Redis连接成功！")

		// 测试Redis基本操作
		if err := cache.TestRedis(); err != nil {
			log.Fatalf("Redis操作测试失败: %v", err)
		}
		fmt.Println("Redis基本操作测试成功！")

		// 统计探测结果缓存
		count, err := cache.CountProbeEntries(context.Background())
		if err != nil {
			log.Fatalf("统计探测缓存失败: %v", err)
		}
		fmt.Printf("当前缓存的探测结果: %d 条 (24小时过期)\n", count)

		// 关闭连接
		if err := cache.CloseRedis(); err != nil {
			log.Printf("关闭Redis连接时发生错误: %v", err)
		}
		fmt.Println("Redis检查完成，连接已关闭。")
	},
}

func init() {
	rootCmd.AddCommand(redisCmd)
}
