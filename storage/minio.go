package storage

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/sockheadrps/OBS-Stream-Control-Hub/config"
	"github.com/sockheadrps/OBS-Stream-Control-Hub/core/audio"
	"github.com/sockheadrps/OBS-Stream-Control-Hub/logger"
)

// ObjectInfo 存储桶中的一个音频对象
type ObjectInfo struct {
	Key          string
	Name         string // 去掉前缀后的文件名
	Size         int64
	LastModified time.Time
	ETag         string
}

// SyncResult 同步结果
type SyncResult struct {
	Downloaded []string
	Skipped    []string
	Removed    []string
}

// MusicBucket 封装了存放曲库的 MinIO 存储桶
type MusicBucket struct {
	client *minio.Client
	bucket string
	prefix string
}

// NewMusicBucket 根据配置创建客户端，并确认存储桶存在
func NewMusicBucket(ctx context.Context, cfg *config.Config) (*MusicBucket, error) {
	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioUseSSL,
		Region: cfg.MinioRegion,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, cfg.MinioBucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", cfg.MinioBucket, err)
	}
	if !exists {
		return nil, fmt.Errorf("bucket %s does not exist", cfg.MinioBucket)
	}

	logger.Info("minio connected",
		logger.String("endpoint", cfg.MinioEndpoint),
		logger.String("bucket", cfg.MinioBucket),
		logger.String("prefix", cfg.MinioPrefix))

	return &MusicBucket{client: client, bucket: cfg.MinioBucket, prefix: normalizePrefix(cfg.MinioPrefix)}, nil
}

func normalizePrefix(p string) string {
	p = strings.Trim(p, "/")
	if p == "" {
		return ""
	}
	return p + "/"
}

// trackName returns the file name for key, or "" when the key is not a
// playable file directly under prefix.
func trackName(prefix, key string) string {
	rest, ok := strings.CutPrefix(key, prefix)
	if !ok || rest == "" || strings.Contains(rest, "/") {
		return ""
	}
	if !audio.IsSupported(rest) {
		return ""
	}
	return rest
}

// ListTracks 列出前缀下可播放的对象，按文件名排序
func (m *MusicBucket) ListTracks(ctx context.Context) ([]ObjectInfo, error) {
	var objects []ObjectInfo
	for object := range m.client.ListObjects(ctx, m.bucket, minio.ListObjectsOptions{Prefix: m.prefix}) {
		if object.Err != nil {
			return nil, fmt.Errorf("list objects: %w", object.Err)
		}
		name := trackName(m.prefix, object.Key)
		if name == "" {
			continue
		}
		objects = append(objects, ObjectInfo{
			Key:          object.Key,
			Name:         name,
			Size:         object.Size,
			LastModified: object.LastModified,
			ETag:         object.ETag,
		})
	}
	sort.Slice(objects, func(i, j int) bool { return objects[i].Name < objects[j].Name })
	return objects, nil
}

// syncPlan 同步计划：需要下载、跳过和删除的文件
type syncPlan struct {
	Download []ObjectInfo
	Skip     []string
	Remove   []string
}

// planSync compares the bucket listing with dir. A track is downloaded when it
// is missing locally or its size differs. With prune set, local playable files
// absent from the bucket are marked for removal.
func planSync(objects []ObjectInfo, dir string, prune bool) (syncPlan, error) {
	var plan syncPlan
	remote := make(map[string]bool, len(objects))
	for _, obj := range objects {
		remote[obj.Name] = true
		if fi, err := os.Stat(filepath.Join(dir, obj.Name)); err == nil && fi.Size() == obj.Size {
			plan.Skip = append(plan.Skip, obj.Name)
			continue
		}
		plan.Download = append(plan.Download, obj)
	}

	if !prune {
		return plan, nil
	}
	local, err := audio.ListFiles(dir)
	if err != nil {
		return plan, err
	}
	for _, name := range local {
		if !remote[name] {
			plan.Remove = append(plan.Remove, name)
		}
	}
	return plan, nil
}

// SyncToDir downloads every track that is missing locally or whose size
// differs. With prune set, local playable files absent from the bucket are
// removed.
func (m *MusicBucket) SyncToDir(ctx context.Context, dir string, prune bool) (*SyncResult, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create music dir: %w", err)
	}

	objects, err := m.ListTracks(ctx)
	if err != nil {
		return nil, err
	}
	plan, err := planSync(objects, dir, prune)
	if err != nil {
		return nil, err
	}

	result := &SyncResult{Skipped: plan.Skip}
	for _, obj := range plan.Download {
		dst := filepath.Join(dir, obj.Name)
		if err := m.client.FGetObject(ctx, m.bucket, obj.Key, dst, minio.GetObjectOptions{}); err != nil {
			return result, fmt.Errorf("download %s: %w", obj.Key, err)
		}
		logger.Info("track downloaded", logger.String("key", obj.Key), logger.String("size", formatSize(obj.Size)))
		result.Downloaded = append(result.Downloaded, obj.Name)
	}

	for _, name := range plan.Remove {
		if err := os.Remove(filepath.Join(dir, name)); err != nil {
			return result, fmt.Errorf("remove %s: %w", name, err)
		}
		result.Removed = append(result.Removed, name)
	}
	return result, nil
}

// ObjectKey 本地文件名对应的对象键
func (m *MusicBucket) ObjectKey(name string) string {
	return path.Join(m.prefix, name)
}

// formatSize 格式化文件大小
func formatSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}
