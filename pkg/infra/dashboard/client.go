// Package dashboard はトリガー設定をダッシュボード（またはファイル）から取得し、定期的に差し替えます。
package dashboard

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const configurationsPath = "/api/configurations"

// Source はフラットな設定マップの取得元です
type Source interface {
	Fetch(ctx context.Context) (map[string]any, error)
}

// Client はダッシュボードの HTTP API クライアントです
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Fetch は GET /api/configurations を呼びます。数値は json.Number のまま返します。
func (c *Client) Fetch(ctx context.Context) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+configurationsPath, nil)
	if err != nil {
		return nil, fmt.Errorf("リクエスト作成エラー: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ダッシュボード通信エラー: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("レスポンス読み取りエラー: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ダッシュボードエラー (Status: %d): %s", resp.StatusCode, string(body))
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("設定JSONパースエラー: %w", err)
	}
	return raw, nil
}

// FileSource は同じキー構成の YAML ファイルから設定を読みます（ダッシュボード無しで動かす用）
type FileSource struct {
	Path string
}

func (f FileSource) Fetch(ctx context.Context) (map[string]any, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("設定ファイル読み込みエラー: %w", err)
	}
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("設定YAMLパースエラー (%s): %w", f.Path, err)
	}
	if raw == nil {
		raw = map[string]any{}
	}
	return raw, nil
}
