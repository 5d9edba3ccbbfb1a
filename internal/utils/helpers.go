package utils

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/RecoveryAshes/SiteCrawl/internal/models"
	"github.com/rs/zerolog"
)

// SeedColumn 页面日志中作为附件模式种子的列
const SeedColumn = "URL"

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ReadSeedURLs 从文件中读取种子URL
// 支持两种格式:
//   - 纯文本, 每行一个URL, 跳过空行和#注释
//   - CSV, 表头含URL列(如页面模式产出的webpages.csv)
func ReadSeedURLs(path string, logger zerolog.Logger) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("打开种子文件失败: %w", err)
	}
	data = bytes.TrimPrefix(data, utf8BOM)

	var urls []string
	if column, ok := detectSeedColumn(data); ok {
		urls, err = readCSVColumn(data, column, logger)
	} else {
		urls, err = readURLLines(data, logger)
	}
	if err != nil {
		return nil, err
	}

	if len(urls) == 0 {
		return nil, fmt.Errorf("种子文件中没有有效的URL: %s", path)
	}

	logger.Info().Str("file", path).Int("count", len(urls)).Msg("从文件加载种子URL")
	return urls, nil
}

// detectSeedColumn 判断首个非空行是否是带URL列的CSV表头
func detectSeedColumn(data []byte) (int, bool) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields, err := csv.NewReader(strings.NewReader(line)).Read()
		if err != nil || len(fields) < 2 {
			return 0, false
		}
		for i, field := range fields {
			if strings.EqualFold(strings.TrimSpace(field), SeedColumn) {
				return i, true
			}
		}
		return 0, false
	}
	return 0, false
}

func readCSVColumn(data []byte, column int, logger zerolog.Logger) ([]string, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.Comment = '#'

	// 跳过表头
	if _, err := reader.Read(); err != nil {
		return nil, fmt.Errorf("读取CSV表头失败: %w", err)
	}

	var urls []string
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("读取CSV种子失败: %w", err)
		}
		line, _ := reader.FieldPos(0)
		if column >= len(record) {
			logger.Warn().Int("line", line).Msg("跳过缺少URL列的行")
			continue
		}
		raw := strings.TrimSpace(record[column])
		if err := models.ValidateURL(raw); err != nil {
			logger.Warn().Int("line", line).Str("url", raw).Err(err).Msg("跳过无效URL")
			continue
		}
		urls = append(urls, raw)
	}
	return urls, nil
}

func readURLLines(data []byte, logger zerolog.Logger) ([]string, error) {
	var urls []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// 跳过空行和注释行
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if err := models.ValidateURL(line); err != nil {
			logger.Warn().Int("line", lineNum).Str("url", line).Err(err).Msg("跳过无效URL")
			continue
		}

		urls = append(urls, line)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("读取种子文件失败: %w", err)
	}
	return urls, nil
}
