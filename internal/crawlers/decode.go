package crawlers

import (
	"mime"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html/charset"
)

// latin1Labels 服务器常见的误声明; 声明为Latin-1时按UTF-8处理
var latin1Labels = map[string]bool{
	"iso-8859-1":  true,
	"iso8859-1":   true,
	"iso_8859-1":  true,
	"latin1":      true,
	"latin-1":     true,
	"l1":          true,
	"cp819":       true,
	"ibm819":      true,
	"csisolatin1": true,
	"iso-ir-100":  true,
}

var utf8Labels = map[string]bool{
	"utf-8":             true,
	"utf8":              true,
	"unicode-1-1-utf-8": true,
}

// Decoded 解码结果
type Decoded struct {
	Text     string
	Charset  string // 实际使用的编码
	Declared string // 服务器声明的编码, 可能为空
	Fallback bool   // 未能按声明或UTF-8严格解码, 使用了替换字符
}

// DecodeBody 按回退链解码响应体, 不会失败
//  1. 使用声明的编码
//  2. 未声明或声明为Latin-1时使用UTF-8
//  3. UTF-8非法时宽松解码, 非法字节替换为U+FFFD
//
// 无法识别的编码名也回退到UTF-8
func DecodeBody(body []byte, contentType string) Decoded {
	declared := declaredCharset(contentType)

	if declared == "" || latin1Labels[declared] || utf8Labels[declared] {
		return decodeUTF8(body, declared)
	}

	enc, name := charset.Lookup(declared)
	if enc == nil {
		d := decodeUTF8(body, declared)
		d.Fallback = true
		return d
	}
	if name == "utf-8" {
		return decodeUTF8(body, declared)
	}

	text, err := enc.NewDecoder().Bytes(body)
	if err != nil {
		d := decodeUTF8(body, declared)
		d.Fallback = true
		return d
	}
	return Decoded{Text: string(text), Charset: name, Declared: declared}
}

func decodeUTF8(body []byte, declared string) Decoded {
	if utf8.Valid(body) {
		return Decoded{Text: string(body), Charset: "utf-8", Declared: declared}
	}
	return Decoded{
		Text:     strings.ToValidUTF8(string(body), string(utf8.RuneError)),
		Charset:  "utf-8",
		Declared: declared,
		Fallback: true,
	}
}

// declaredCharset 从Content-Type中取charset参数, 小写
func declaredCharset(contentType string) string {
	if contentType == "" {
		return ""
	}
	if _, params, err := mime.ParseMediaType(contentType); err == nil {
		return normalizeLabel(params["charset"])
	}
	// 格式不规范时退而查找charset=
	lower := strings.ToLower(contentType)
	idx := strings.Index(lower, "charset=")
	if idx < 0 {
		return ""
	}
	value := lower[idx+len("charset="):]
	if end := strings.IndexAny(value, "; "); end >= 0 {
		value = value[:end]
	}
	return normalizeLabel(value)
}

func normalizeLabel(label string) string {
	return strings.ToLower(strings.Trim(strings.TrimSpace(label), `"'`))
}

// IsHTML 判断Content-Type是否为HTML, 未声明类型视为非HTML
func IsHTML(contentType string) bool {
	if strings.TrimSpace(contentType) == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	}
	return mediaType == "text/html" || mediaType == "application/xhtml+xml"
}
