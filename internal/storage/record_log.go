package storage

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/RecoveryAshes/SiteCrawl/internal/models"
)

// ErrHeaderMismatch 已存在的日志表头与期望不一致
var ErrHeaderMismatch = errors.New("日志表头不匹配")

// RecordLog 只追加的CSV日志
// 每次Append在锁内把一整行编码好后一次性写入, 并发写不会出现半行
type RecordLog struct {
	mu   sync.Mutex
	path string
	file *os.File
	buf  bytes.Buffer
	rows int64
}

// OpenRecordLog 以追加模式打开日志
// 文件不存在或为空时先写表头, 已存在时校验表头
func OpenRecordLog(path string, header []string) (*RecordLog, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("解析日志路径失败: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(absPath), 0755); err != nil {
		return nil, fmt.Errorf("创建日志目录失败: %w", err)
	}

	needHeader := true
	if info, err := os.Stat(absPath); err == nil && info.Size() > 0 {
		if err := checkHeader(absPath, header); err != nil {
			return nil, err
		}
		needHeader = false
	}

	file, err := os.OpenFile(absPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("打开日志文件失败: %w", err)
	}

	l := &RecordLog{path: absPath, file: file}
	if needHeader {
		if err := l.write(header); err != nil {
			file.Close()
			return nil, fmt.Errorf("写入表头失败: %w", err)
		}
	}
	return l, nil
}

func checkHeader(path string, want []string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("打开日志文件失败: %w", err)
	}
	defer file.Close()

	got, err := csv.NewReader(bufio.NewReader(file)).Read()
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("读取日志表头失败: %w", err)
	}
	if len(got) > 0 {
		got[0] = string(bytes.TrimPrefix([]byte(got[0]), []byte{0xEF, 0xBB, 0xBF}))
	}
	if !slices.Equal(got, want) {
		return fmt.Errorf("%w: %s 表头为 %v, 期望 %v", ErrHeaderMismatch, path, got, want)
	}
	return nil
}

// Append 追加一行
func (l *RecordLog) Append(row []string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return fmt.Errorf("日志已关闭: %s", l.path)
	}
	if err := l.write(row); err != nil {
		return fmt.Errorf("写入日志失败: %w", err)
	}
	l.rows++
	return nil
}

// write 调用方需持有锁(打开阶段除外)
func (l *RecordLog) write(row []string) error {
	l.buf.Reset()
	w := csv.NewWriter(&l.buf)
	if err := w.Write(row); err != nil {
		return err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	_, err := l.file.Write(l.buf.Bytes())
	return err
}

// Rows 本次打开后追加的行数(不含表头)
func (l *RecordLog) Rows() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rows
}

// Path 日志绝对路径
func (l *RecordLog) Path() string {
	return l.path
}

// Close 同步并关闭文件, 可重复调用
func (l *RecordLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}
	syncErr := l.file.Sync()
	closeErr := l.file.Close()
	l.file = nil
	return errors.Join(syncErr, closeErr)
}

// PageLog 页面模式日志: URL,Filename,CrawlTime
type PageLog struct {
	log *RecordLog
}

// OpenPageLog 打开页面日志
func OpenPageLog(path string) (*PageLog, error) {
	l, err := OpenRecordLog(path, models.PageLogHeader)
	if err != nil {
		return nil, err
	}
	return &PageLog{log: l}, nil
}

// Append 写入一条页面记录
func (p *PageLog) Append(record models.CrawlRecord) error {
	return p.log.Append(record.Row())
}

// Path 日志路径
func (p *PageLog) Path() string { return p.log.Path() }

// Rows 本次打开后写入的记录数
func (p *PageLog) Rows() int64 { return p.log.Rows() }

// Close 关闭日志
func (p *PageLog) Close() error { return p.log.Close() }

// AttachmentLog 附件模式日志: Source_URL,Attachment_URL
type AttachmentLog struct {
	log *RecordLog
}

// OpenAttachmentLog 打开附件日志
func OpenAttachmentLog(path string) (*AttachmentLog, error) {
	l, err := OpenRecordLog(path, models.AttachmentLogHeader)
	if err != nil {
		return nil, err
	}
	return &AttachmentLog{log: l}, nil
}

// Append 写入一条附件记录
func (a *AttachmentLog) Append(record models.AttachmentRecord) error {
	return a.log.Append(record.Row())
}

// Path 日志路径
func (a *AttachmentLog) Path() string { return a.log.Path() }

// Rows 本次打开后写入的记录数
func (a *AttachmentLog) Rows() int64 { return a.log.Rows() }

// Close 关闭日志
func (a *AttachmentLog) Close() error { return a.log.Close() }
