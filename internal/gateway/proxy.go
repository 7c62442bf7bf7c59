package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"github.com/nao1215/authgate/pkg/apperr"
	"github.com/nao1215/authgate/pkg/httpclient"
)

// BodyKind は転送するボディの形式。
type BodyKind int

const (
	// BodyRaw はバイト列のまま転送するボディ。
	BodyRaw BodyKind = iota
	// BodyStructured はJSONとして解釈できたボディ。
	BodyStructured
)

// Body はリクエストごとに1度だけ形式を判定したボディ。
type Body struct {
	Kind BodyKind
	Data []byte
}

// negotiateBody はボディがJSONとして解釈できるかを判定する。
func negotiateBody(data []byte) Body {
	if len(bytes.TrimSpace(data)) > 0 && json.Valid(data) {
		return Body{Kind: BodyStructured, Data: data}
	}
	return Body{Kind: BodyRaw, Data: data}
}

// strippedHeaders は転送時に取り除くヘッダー。いずれも送信側のトランスポートが付け直す。
var strippedHeaders = []string{"Host", "Content-Length", "Content-Encoding", "Connection"}

// filterHeaders はstrippedHeadersを除いたヘッダーのコピーを返す。
func filterHeaders(h http.Header) http.Header {
	out := h.Clone()
	if out == nil {
		out = http.Header{}
	}
	for _, k := range strippedHeaders {
		out.Del(k)
	}
	return out
}

// ProxyRequest は1回の転送に必要な情報。
type ProxyRequest struct {
	Method string
	// Path はプレフィックスを除いた残りのパス。
	Path   string
	Query  url.Values
	Header http.Header
	Body   Body
}

// newProxyRequest は受信したリクエストからProxyRequestを組み立てる。
func newProxyRequest(c *gin.Context, path string) (ProxyRequest, error) {
	data, err := c.GetRawData()
	if err != nil {
		return ProxyRequest{}, fmt.Errorf("リクエストボディの読み込みに失敗: %w", err)
	}
	return ProxyRequest{
		Method: c.Request.Method,
		Path:   path,
		Query:  c.Request.URL.Query(),
		Header: filterHeaders(c.Request.Header),
		Body:   negotiateBody(data),
	}, nil
}

// errMethodNotAllowed はサポート外のメソッドを示す。
func errMethodNotAllowed() error {
	return apperr.New(apperr.KindMethodNotSupported, "Method not allowed")
}

// Forward はリクエストを上流に1度だけ送信する。リトライはしない。
// GETはクエリのみ、POSTとPUTはボディのみを転送し、DELETEはどちらも転送しない。
// 受信側の切断で上流呼び出しが中断されないよう、キャンセルは伝播させない。
func Forward(ctx context.Context, upstream *httpclient.Client, pr ProxyRequest) (*httpclient.Response, error) {
	req := httpclient.Request{
		Method: pr.Method,
		Path:   pr.Path,
		Header: pr.Header.Clone(),
	}
	if req.Header == nil {
		req.Header = http.Header{}
	}

	switch pr.Method {
	case http.MethodGet:
		req.Query = pr.Query
	case http.MethodPost, http.MethodPut:
		if len(pr.Body.Data) > 0 {
			req.Body = pr.Body.Data
		}
		if pr.Body.Kind == BodyStructured && req.Header.Get("Content-Type") == "" {
			req.Header.Set("Content-Type", gin.MIMEJSON)
		}
	case http.MethodDelete:
	default:
		return nil, errMethodNotAllowed()
	}

	resp, err := upstream.Do(context.WithoutCancel(ctx), req)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUpstreamUnavailable, "Service unavailable: "+err.Error(), err)
	}
	return resp, nil
}

// writeUpstreamResponse は上流のステータスをそのまま使ってボディを返す。
// JSONとして解釈できるボディはJSONとして、それ以外はテキストとして返す。
// 展開できなかったボディは符号化を付けたまま返す。
func writeUpstreamResponse(c *gin.Context, resp *httpclient.Response) {
	if resp.Encoding != "" {
		contentType := resp.Header.Get("Content-Type")
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		c.Header("Content-Encoding", resp.Encoding)
		c.Data(resp.StatusCode, contentType, resp.Body)
		return
	}
	if json.Valid(resp.Body) {
		c.Data(resp.StatusCode, gin.MIMEJSON, resp.Body)
		return
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "text/plain; charset=utf-8"
	}
	c.Data(resp.StatusCode, contentType, resp.Body)
}
