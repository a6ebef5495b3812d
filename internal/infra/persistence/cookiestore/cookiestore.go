package cookiestore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Store persists the session cookies as a flat name→value JSON object.
type Store interface {
	Load() (map[string]string, error)
	Save(cookies map[string]string) error
}

type fileStore struct {
	path string
}

func InitFileStore(path string) Store {
	return &fileStore{path: path}
}

// Load returns an empty map when the file does not exist yet.
func (s *fileStore) Load() (map[string]string, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("读取cookies文件失败: %w", err)
	}
	cookies := map[string]string{}
	if len(data) == 0 {
		return cookies, nil
	}
	if err := json.Unmarshal(data, &cookies); err != nil {
		return nil, fmt.Errorf("解析cookies文件失败: %w", err)
	}
	return cookies, nil
}

// Save overwrites the file through a temp file + rename.
func (s *fileStore) Save(cookies map[string]string) error {
	if cookies == nil {
		cookies = map[string]string{}
	}
	data, err := json.MarshalIndent(cookies, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化cookies失败: %w", err)
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("创建目录失败: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".cookies-*.json")
	if err != nil {
		return fmt.Errorf("写入cookies失败: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("写入cookies失败: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("写入cookies失败: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("写入cookies失败: %w", err)
	}
	return nil
}
