package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/iWorld-y/usecase_radar/app/usecase_radar/pkg/model"
)

// FileStore 将报告写为 JSON 文件
type FileStore struct {
	dir string
}

// NewFileStore 创建文件存储，目录在首次保存时创建
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// FileName 报告文件名：{company}_{YYYYMMDD_HHMMSS}_ai_recommendations.json
func FileName(r *model.Report) string {
	name := strings.ToLower(r.CompanyName)
	name = strings.NewReplacer(" ", "_", "/", "_", "\\", "_").Replace(name)
	return fmt.Sprintf("%s_%s_ai_recommendations.json", name, r.GeneratedAt.Format("20060102_150405"))
}

// Save implements Sink
func (s *FileStore) Save(_ context.Context, r *model.Report) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create reports dir failed: %w", err)
	}

	data, err := json.MarshalIndent(r, "", "    ")
	if err != nil {
		return "", fmt.Errorf("marshal report failed: %w", err)
	}

	path := filepath.Join(s.dir, FileName(r))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write report failed: %w", err)
	}
	return path, nil
}
