package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// PathTrackClick 点击通知路径
	PathTrackClick = "/track-click"
	// PathConversion 转化通知路径
	PathConversion = "/conversion"

	defaultSendTimeout = 5 * time.Second
)

// ErrEndpointInvalid 合作方通知地址不合法
var ErrEndpointInvalid = errors.New("partner api endpoint invalid")

// Sender 合作方 HTTP 通知发送器
type Sender struct {
	client *http.Client
}

// NewSender 创建发送器，timeout 为单次请求上限
func NewSender(timeout time.Duration) *Sender {
	if timeout <= 0 {
		timeout = defaultSendTimeout
	}
	return &Sender{client: &http.Client{Timeout: timeout}}
}

// Send 向 {endpoint}{path} POST JSON，非 2xx 视为失败
func (s *Sender) Send(ctx context.Context, endpoint, path string, body interface{}) error {
	target, err := JoinEndpoint(endpoint, path)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("partner endpoint http status %d", resp.StatusCode)
	}
	return nil
}

// JoinEndpoint 拼接合作方通知地址
func JoinEndpoint(endpoint, path string) (string, error) {
	base := strings.TrimRight(strings.TrimSpace(endpoint), "/")
	if base == "" {
		return "", ErrEndpointInvalid
	}
	parsed, err := url.Parse(base)
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return "", ErrEndpointInvalid
	}
	return base + path, nil
}
