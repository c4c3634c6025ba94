package cmd

import (
	"context"
	"fmt"
	"log"

	"github.com/minio/minio-go/v7"
	"github.com/spf13/cobra"

	"trackstyler/config"
	"trackstyler/storage"
)

var minioPrefix string

var minioCmd = &cobra.Command{
	Use:   "minio",
	Short: "MinIO存储桶检查",
	Long:  `连接MinIO并列出已归档的转换结果，可按前缀过滤。`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("开始连接MinIO服务器...")

		// 加载配置
		cfg := config.Load()
		fmt.Printf("MinIO配置: %s, Bucket: %s\n", cfg.MinioEndpoint, cfg.MinioBucket)

		// 初始化MinIO客户端
		if err := storage.InitMinio(cfg); err != nil {
			log.Fatalf("无法连接到MinIO: %v", err)
		}
		fmt.Println("MinIO连接成功！")

		client := storage.GetMinioClient()
		prefix := minioPrefix
		if prefix == "" {
			prefix = "converted/"
		}

		fmt.Printf("\n列出存储桶中的文件 (前缀: %s)...\n", prefix)
		var count int
		var total int64
		for object := range client.ListObjects(context.Background(), cfg.MinioBucket, minio.ListObjectsOptions{
			Prefix:    prefix,
			Recursive: true,
		}) {
			if object.Err != nil {
				log.Fatalf("列出文件失败: %v", object.Err)
			}
			fmt.Printf("  %s (%d bytes)\n", object.Key, object.Size)
			count++
			total += object.Size
		}
		fmt.Printf("\n共 %d 个文件，%d bytes\n", count, total)
	},
}

func init() {
	rootCmd.AddCommand(minioCmd)

	minioCmd.Flags().StringVarP(&minioPrefix, "prefix", "p", "", "按前缀过滤文件")
}
