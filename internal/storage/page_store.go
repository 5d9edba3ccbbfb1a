package storage

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const (
	// maxBaseNameRunes 由URL路径派生的文件名最大长度
	maxBaseNameRunes = 50
	// suffixLength 随机后缀长度
	suffixLength = 6
	// maxCreateAttempts 后缀冲突时的重试次数
	maxCreateAttempts = 3
)

// PageStore 保存原始HTML页面
type PageStore struct {
	dir string
}

// NewPageStore 创建保存目录, 记录绝对路径
func NewPageStore(dir string) (*PageStore, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("解析保存目录失败: %w", err)
	}
	if err := os.MkdirAll(absDir, 0755); err != nil {
		return nil, fmt.Errorf("创建保存目录失败: %w", err)
	}
	return &PageStore{dir: absDir}, nil
}

// Dir 保存目录绝对路径
func (s *PageStore) Dir() string {
	return s.dir
}

// Save 写入页面内容, 返回文件绝对路径
func (s *PageStore) Save(pageURL string, content string) (string, error) {
	base := FileBaseName(pageURL)

	var lastErr error
	for attempt := 0; attempt < maxCreateAttempts; attempt++ {
		path := filepath.Join(s.dir, fmt.Sprintf("%s_%s.html", base, randomSuffix()))
		file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
		if errors.Is(err, os.ErrExist) {
			lastErr = err
			continue
		}
		if err != nil {
			return "", fmt.Errorf("创建页面文件失败: %w", err)
		}

		_, writeErr := file.WriteString(content)
		closeErr := file.Close()
		if err := errors.Join(writeErr, closeErr); err != nil {
			os.Remove(path)
			return "", fmt.Errorf("写入页面文件失败: %w", err)
		}
		return path, nil
	}
	return "", fmt.Errorf("生成唯一文件名失败: %w", lastErr)
}

// FileBaseName 由URL路径派生文件名主体
// 去掉首尾斜杠后把斜杠换成下划线, 空路径为index, 截断到50个字符
func FileBaseName(pageURL string) string {
	name := ""
	if u, err := url.Parse(pageURL); err == nil {
		name = strings.Trim(u.EscapedPath(), "/")
	}
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.Map(func(r rune) rune {
		switch r {
		case '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, name)
	if name == "" {
		return "index"
	}
	if runes := []rune(name); len(runes) > maxBaseNameRunes {
		name = string(runes[:maxBaseNameRunes])
	}
	return name
}

func randomSuffix() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:suffixLength]
}
