package httpclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
)

// DefaultTimeout は上流呼び出し1回あたりのタイムアウト。
const DefaultTimeout = 30 * time.Second

// Client は1つの上流サービスに対するHTTPクライアント。
type Client struct {
	// httpClient は内部で使用するHTTPクライアント。複数のClientで共有してよい。
	httpClient *http.Client
	// baseURL は接続先サービスのベースURL。末尾のスラッシュは持たない。
	baseURL string
}

// Option はClientの設定を変更する。
type Option func(*Client)

// WithHTTPClient はプロセス全体で共有するHTTPクライアントを設定する。
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewHTTPClient はタイムアウト付きのHTTPクライアントを生成する。
// 起動時に1度だけ生成し、各Clientに注入する。
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

// New は新しい上流サービス用クライアントを生成する。
// baseURLには接続先サービスのベースURL（例: "http://auth-service:8001"）を指定する。
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		httpClient: NewHTTPClient(DefaultTimeout),
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL は接続先のベースURLを返す。
func (c *Client) BaseURL() string {
	return c.baseURL
}

// URL はベースURLとパスを連結する。パス先頭のスラッシュはすべて除去する。
func (c *Client) URL(path string) string {
	return c.baseURL + "/" + strings.TrimLeft(path, "/")
}

// Request は上流に送るリクエスト。
type Request struct {
	// Method はHTTPメソッド。
	Method string
	// Path はベースURLからの相対パス。
	Path string
	// Query はクエリパラメータ。nilの場合は付与しない。
	Query url.Values
	// Header は送信するヘッダー。
	Header http.Header
	// Body はリクエストボディ。nilの場合はボディなし。
	Body []byte
}

// Response は上流から受け取ったレスポンス。ボディは読み込み済み。
type Response struct {
	// StatusCode はHTTPステータスコード。
	StatusCode int
	// Header はレスポンスヘッダー。
	Header http.Header
	// Body はデコード済みのレスポンスボディ。
	Body []byte
	// Encoding はBodyに残っている符号化。展開済みなら空。
	Encoding string
}

// Do はリクエストを1度だけ送信し、レスポンスボディを読み込んで返す。
// gzip、deflate、zstdで圧縮されたボディは展開して返す。
func (c *Client) Do(ctx context.Context, r Request) (*Response, error) {
	target := c.URL(r.Path)
	if len(r.Query) > 0 {
		target += "?" + r.Query.Encode()
	}

	var body io.Reader
	if r.Body != nil {
		body = bytes.NewReader(r.Body)
	}
	req, err := http.NewRequestWithContext(ctx, r.Method, target, body)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗: %w", err)
	}
	for k, vs := range r.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの送信に失敗: %w", err)
	}
	defer resp.Body.Close()

	respBody, encoding, err := readBody(resp)
	if err != nil {
		return nil, fmt.Errorf("レスポンスボディの読み込みに失敗: %w", err)
	}
	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       respBody,
		Encoding:   encoding,
	}, nil
}

// readBody はContent-Encodingに応じてボディを展開しながら読み込む。
// 展開できない符号化の場合はボディをそのまま返し、その符号化名を返す。
func readBody(resp *http.Response) ([]byte, string, error) {
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", err
	}

	encoding := strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding")))
	switch encoding {
	case "", "identity":
		return raw, "", nil
	case "gzip", "x-gzip":
		zr, err := gzip.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, "", err
		}
		defer zr.Close()
		body, err := io.ReadAll(zr)
		return body, "", err
	case "deflate":
		// zlib形式が標準だが、生のdeflateを返すサーバーもある
		zr, err := zlib.NewReader(bytes.NewReader(raw))
		if err != nil {
			fr := flate.NewReader(bytes.NewReader(raw))
			defer fr.Close()
			body, err := io.ReadAll(fr)
			return body, "", err
		}
		defer zr.Close()
		body, err := io.ReadAll(zr)
		return body, "", err
	case "zstd":
		zr, err := zstd.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, "", err
		}
		defer zr.Close()
		body, err := io.ReadAll(zr)
		return body, "", err
	default:
		return raw, encoding, nil
	}
}
