package geo

import (
	"net"
	"strings"

	"github.com/oschwald/geoip2-golang"
)

// Resolver IP 归属国家解析
type Resolver interface {
	Country(ip string) string
}

// NopResolver 未配置数据库时使用
type NopResolver struct{}

// Country 始终返回空
func (NopResolver) Country(string) string { return "" }

// MaxMindResolver 基于 GeoLite2/GeoIP2 数据库的解析器
type MaxMindResolver struct {
	reader *geoip2.Reader
}

// Open 打开 mmdb 数据库
func Open(path string) (*MaxMindResolver, error) {
	reader, err := geoip2.Open(strings.TrimSpace(path))
	if err != nil {
		return nil, err
	}
	return &MaxMindResolver{reader: reader}, nil
}

// Country 返回 ISO 国家代码，解析失败返回空
func (r *MaxMindResolver) Country(ip string) string {
	if r == nil || r.reader == nil {
		return ""
	}
	parsed := net.ParseIP(strings.TrimSpace(ip))
	if parsed == nil || parsed.IsLoopback() || parsed.IsPrivate() {
		return ""
	}
	record, err := r.reader.Country(parsed)
	if err != nil || record == nil {
		return ""
	}
	return strings.ToUpper(record.Country.IsoCode)
}

// Close 关闭数据库
func (r *MaxMindResolver) Close() error {
	if r == nil || r.reader == nil {
		return nil
	}
	return r.reader.Close()
}
