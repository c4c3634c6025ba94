package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"trackstyler/config"
	"trackstyler/logger"
	"trackstyler/model"
)

var (
	minioClient *minio.Client
	minioBucket string
)

// InitMinio 初始化 MinIO 客户端并确保存储桶存在
func InitMinio(cfg *config.Config) error {
	logger.Info("connecting to MinIO",
		logger.String("endpoint", cfg.MinioEndpoint),
		logger.String("bucket", cfg.MinioBucket))

	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioUseSSL,
		Region: cfg.MinioRegion,
	})
	if err != nil {
		return fmt.Errorf("创建 MinIO 客户端失败: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, cfg.MinioBucket)
	if err != nil {
		return fmt.Errorf("检查存储桶失败: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.MinioBucket, minio.MakeBucketOptions{Region: cfg.MinioRegion}); err != nil {
			return fmt.Errorf("创建存储桶失败: %w", err)
		}
		logger.Info("created MinIO bucket", logger.String("bucket", cfg.MinioBucket))
	}

	minioClient = client
	minioBucket = cfg.MinioBucket
	return nil
}

// Enabled reports whether the archive is available.
func Enabled() bool {
	return minioClient != nil
}

// GetMinioClient 返回全局 MinIO 客户端
func GetMinioClient() *minio.Client {
	return minioClient
}

// archivePath is the object name a converted artifact is archived under.
func archivePath(trackID, filename string) string {
	return fmt.Sprintf("converted/%s/%s", trackID, filename)
}

// ArchiveConversion uploads a converted blob. Failures are the caller's to
// log; the download response has already been served by then.
func ArchiveConversion(ctx context.Context, trackID, filename string, blob *model.Blob) error {
	if minioClient == nil {
		return nil
	}

	objectName := archivePath(trackID, filename)
	_, err := minioClient.PutObject(ctx, minioBucket, objectName,
		bytes.NewReader(blob.Data), int64(len(blob.Data)),
		minio.PutObjectOptions{ContentType: blob.MIME})
	if err != nil {
		return fmt.Errorf("failed to archive conversion %s: %w", objectName, err)
	}

	logger.Info("archived converted track",
		logger.String("object", objectName),
		logger.Int("bytes", len(blob.Data)))
	return nil
}

// FetchArchived streams a previously archived artifact.
func FetchArchived(ctx context.Context, trackID, filename string) (io.ReadCloser, error) {
	if minioClient == nil {
		return nil, fmt.Errorf("MinIO client not initialized")
	}
	object, err := minioClient.GetObject(ctx, minioBucket, archivePath(trackID, filename), minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	return object, nil
}
