package utils

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/RecoveryAshes/SiteCrawl/internal/models"
	"github.com/rs/zerolog"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("写入测试文件失败: %v", err)
	}
	return path
}

func TestReadSeedURLs(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    []string
		wantErr bool
	}{
		{
			name:    "纯文本列表",
			content: "# 种子\nhttps://a.org/\n\n  https://b.org/x  \nnot-a-url\n",
			want:    []string{"https://a.org/", "https://b.org/x"},
		},
		{
			name: "页面日志CSV",
			content: "URL,Filename,CrawlTime\n" +
				"https://x.org/a,/data/a_1.html,2024-01-01T00:00:00Z\n" +
				"\"https://x.org/b?q=1,2\",/data/b_2.html,2024-01-01T00:00:01Z\n",
			want: []string{"https://x.org/a", "https://x.org/b?q=1,2"},
		},
		{
			name:    "带BOM且URL列不在首列",
			content: "\ufeffFilename,URL\n/data/a.html,https://x.org/a\n/data/b.html,javascript:void(0)\n",
			want:    []string{"https://x.org/a"},
		},
		{
			name:    "没有有效URL",
			content: "# 空\n\n",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, "seeds.txt", tt.content)
			got, err := ReadSeedURLs(path, zerolog.Nop())
			if (err != nil) != tt.wantErr {
				t.Fatalf("ReadSeedURLs() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ReadSeedURLs() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestReadSeedURLs_MissingFile(t *testing.T) {
	_, err := ReadSeedURLs(filepath.Join(t.TempDir(), "missing.csv"), zerolog.Nop())
	if err == nil {
		t.Fatal("文件不存在时应返回错误")
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("错误应包装os.ErrNotExist, got %v", err)
	}
}

func TestHeaderValidator_ValidateHeader(t *testing.T) {
	hv := NewHeaderValidator()
	tests := []struct {
		name       string
		header     string
		value      string
		wantErr    bool
		wantReason string
	}{
		{"正常头部", "X-Custom", "value", false, ""},
		{"Cookie", "Cookie", "a=1; b=2", false, ""},
		{"空名称", "", "v", true, "不能为空"},
		{"禁止Host", "host", "evil.org", true, "不允许自定义"},
		{"禁止Accept-Encoding", "Accept-Encoding", "zstd", true, "不允许自定义"},
		{"名称含空格", "X Bad", "v", true, "非法字符"},
		{"值含换行", "X-Inject", "a\r\nb", true, "控制字符"},
		{"值过长", "X-Long", strings.Repeat("a", MaxHeaderValueLength+1), true, "过长"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := hv.ValidateHeader(tt.header, tt.value)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateHeader() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil {
				return
			}
			var ve *models.ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("期望*models.ValidationError, got %T", err)
			}
			if ve.Section != "header" || ve.Field != tt.header {
				t.Errorf("Key() = %v, want header.%v", ve.Key(), tt.header)
			}
			if !strings.Contains(ve.Reason, tt.wantReason) {
				t.Errorf("Reason = %q, want contains %q", ve.Reason, tt.wantReason)
			}
		})
	}
}

func TestHeaderRedactor_Redact(t *testing.T) {
	hr := NewHeaderRedactor()
	headers := http.Header{
		"Authorization": {"Bearer abcdefghijklmnop"},
		"Cookie":        {"session=0123456789abcdef"},
		"X-Api-Key":     {"short"},
		"User-Agent":    {"Mozilla/5.0"},
	}

	got := hr.Redact(headers)
	want := map[string]string{
		"Authorization": "Bearer ***",
		"Cookie":        "sess***cdef",
		"X-Api-Key":     "***",
		"User-Agent":    "Mozilla/5.0",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Redact() = %v, want %v", got, want)
	}
}

func TestReporter_Save(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reports")
	reporter := NewReporter(dir, zerolog.Nop())

	start := time.Now()
	report := models.NewCrawlReport(models.ModeAttachments, models.CrawlConfig{Workers: 3}, start)
	report.RecordLog = "/data/filepages.csv"
	report.Finish(models.TaskStatusCompleted, models.CrawlStats{Attachments: 4}, start.Add(time.Second))

	path, err := reporter.Save(report)
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if filepath.Base(path) != "crawl_report_attachments.json" {
		t.Errorf("报告文件名 = %v", filepath.Base(path))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("读取报告失败: %v", err)
	}
	var loaded models.CrawlReport
	if err := json.Unmarshal(data, &loaded); err != nil {
		t.Fatalf("解析报告失败: %v", err)
	}
	if loaded.RunID != report.RunID || loaded.Stats.Attachments != 4 || loaded.RecordLog != report.RecordLog {
		t.Errorf("保存的报告 = %+v", loaded)
	}
}

func TestProgressReporter(t *testing.T) {
	tests := []struct {
		name     string
		maxPages int
	}{
		{"有页面预算", 10},
		{"不限页面", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			progress := NewProgressReporter(tt.maxPages, &buf)
			progress.Update(3, 7)
			progress.Finish()

			if !strings.Contains(buf.String(), "已爬取 3 | 待爬取 7") {
				t.Errorf("进度输出缺少计数: %q", buf.String())
			}
		})
	}
}
