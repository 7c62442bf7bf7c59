package httpclient

import (
	"bytes"
	"compress/gzip"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
)

// testRequest はテストサーバーが受け取ったリクエスト情報を保持する構造体。
type testRequest struct {
	// Method はHTTPメソッド。
	Method string
	// Path はリクエストパス。
	Path string
	// RawQuery はクエリ文字列。
	RawQuery string
	// Body はリクエストボディ。
	Body []byte
	// Headers はリクエストヘッダー。
	Headers http.Header
}

// TestNew はNew関数でクライアントが正しく生成されることを検証する。
func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("クライアントが正常に生成されること", func(t *testing.T) {
		t.Parallel()

		client := New("http://localhost:8080/")
		if client == nil {
			t.Fatal("New()がnilを返した")
		}
		if client.BaseURL() != "http://localhost:8080" {
			t.Errorf("baseURL = %q, want %q", client.BaseURL(), "http://localhost:8080")
		}
		if client.httpClient == nil {
			t.Fatal("httpClientがnil")
		}
	})

	t.Run("タイムアウトが30秒に設定されていること", func(t *testing.T) {
		t.Parallel()

		client := New("http://localhost:8080")
		if client.httpClient.Timeout != 30*time.Second {
			t.Errorf("Timeout = %v, want 30s", client.httpClient.Timeout)
		}
	})

	t.Run("共有HTTPクライアントを注入できること", func(t *testing.T) {
		t.Parallel()

		shared := NewHTTPClient(time.Second)
		a := New("http://a", WithHTTPClient(shared))
		b := New("http://b", WithHTTPClient(shared))
		if a.httpClient != shared || b.httpClient != shared {
			t.Error("共有HTTPクライアントが設定されていない")
		}
	})
}

// TestURL はURLの連結を検証する。
func TestURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		base string
		path string
		want string
	}{
		{name: "通常のパス", base: "http://svc", path: "login", want: "http://svc/login"},
		{name: "先頭スラッシュ1つ", base: "http://svc", path: "/login", want: "http://svc/login"},
		{name: "先頭スラッシュ複数", base: "http://svc", path: "///get/1", want: "http://svc/get/1"},
		{name: "ベースURL末尾のスラッシュ", base: "http://svc/", path: "/list", want: "http://svc/list"},
		{name: "空のパス", base: "http://svc", path: "", want: "http://svc/"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := New(tt.base).URL(tt.path); got != tt.want {
				t.Errorf("URL(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

// TestDo はDo関数を検証する。
func TestDo(t *testing.T) {
	t.Parallel()

	t.Run("メソッド、パス、クエリ、ヘッダー、ボディを送信できること", func(t *testing.T) {
		t.Parallel()

		var received testRequest
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			received.Method = r.Method
			received.Path = r.URL.Path
			received.RawQuery = r.URL.RawQuery
			received.Body, _ = io.ReadAll(r.Body)
			received.Headers = r.Header
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"ok":true}`))
		}))
		defer ts.Close()

		header := http.Header{}
		header.Set("Authorization", "Bearer abc")
		header.Set("X-Custom", "1")
		resp, err := New(ts.URL).Do(context.Background(), Request{
			Method: http.MethodPost,
			Path:   "/register",
			Query:  url.Values{"q": []string{"x"}},
			Header: header,
			Body:   []byte(`{"username":"alice"}`),
		})
		if err != nil {
			t.Fatalf("Do()でエラーが発生: %v", err)
		}

		if received.Method != http.MethodPost {
			t.Errorf("Method = %q, want %q", received.Method, http.MethodPost)
		}
		if received.Path != "/register" {
			t.Errorf("Path = %q, want %q", received.Path, "/register")
		}
		if received.RawQuery != "q=x" {
			t.Errorf("RawQuery = %q, want %q", received.RawQuery, "q=x")
		}
		if string(received.Body) != `{"username":"alice"}` {
			t.Errorf("Body = %q", received.Body)
		}
		if got := received.Headers.Get("Authorization"); got != "Bearer abc" {
			t.Errorf("Authorization = %q", got)
		}
		if got := received.Headers.Get("X-Custom"); got != "1" {
			t.Errorf("X-Custom = %q", got)
		}
		if resp.StatusCode != http.StatusCreated {
			t.Errorf("StatusCode = %d, want %d", resp.StatusCode, http.StatusCreated)
		}
		if string(resp.Body) != `{"ok":true}` {
			t.Errorf("Body = %q", resp.Body)
		}
	})

	t.Run("エラーステータスでもエラーにせずそのまま返すこと", func(t *testing.T) {
		t.Parallel()

		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte("not here"))
		}))
		defer ts.Close()

		resp, err := New(ts.URL).Do(context.Background(), Request{Method: http.MethodGet, Path: "x"})
		if err != nil {
			t.Fatalf("Do()でエラーが発生: %v", err)
		}
		if resp.StatusCode != http.StatusNotFound || string(resp.Body) != "not here" {
			t.Errorf("got %d %q", resp.StatusCode, resp.Body)
		}
	})

	t.Run("gzipで圧縮されたレスポンスを展開すること", func(t *testing.T) {
		t.Parallel()

		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			var buf bytes.Buffer
			zw := gzip.NewWriter(&buf)
			zw.Write([]byte(`{"compressed":true}`))
			zw.Close()
			w.Header().Set("Content-Encoding", "gzip")
			w.Write(buf.Bytes())
		}))
		defer ts.Close()

		header := http.Header{}
		header.Set("Accept-Encoding", "gzip")
		resp, err := New(ts.URL).Do(context.Background(), Request{Method: http.MethodGet, Path: "x", Header: header})
		if err != nil {
			t.Fatalf("Do()でエラーが発生: %v", err)
		}
		if string(resp.Body) != `{"compressed":true}` {
			t.Errorf("Body = %q", resp.Body)
		}
	})

	t.Run("deflateとzstdで圧縮されたレスポンスを展開すること", func(t *testing.T) {
		t.Parallel()

		plain := []byte(`{"compressed":true}`)
		encoders := map[string]func(*bytes.Buffer){
			"deflate": func(buf *bytes.Buffer) {
				zw := zlib.NewWriter(buf)
				zw.Write(plain)
				zw.Close()
			},
			"zstd": func(buf *bytes.Buffer) {
				zw, _ := zstd.NewWriter(buf)
				zw.Write(plain)
				zw.Close()
			},
		}
		for encoding, encode := range encoders {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				var buf bytes.Buffer
				encode(&buf)
				w.Header().Set("Content-Encoding", encoding)
				w.Write(buf.Bytes())
			}))

			header := http.Header{}
			header.Set("Accept-Encoding", encoding)
			resp, err := New(ts.URL).Do(context.Background(), Request{Method: http.MethodGet, Path: "x", Header: header})
			ts.Close()
			if err != nil {
				t.Fatalf("%s: Do()でエラーが発生: %v", encoding, err)
			}
			if string(resp.Body) != string(plain) || resp.Encoding != "" {
				t.Errorf("%s: Body = %q, Encoding = %q", encoding, resp.Body, resp.Encoding)
			}
		}
	})

	t.Run("展開できない符号化はボディと符号化名をそのまま返すこと", func(t *testing.T) {
		t.Parallel()

		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Encoding", "br")
			w.Write([]byte{0x1b, 0x02, 0x00})
		}))
		defer ts.Close()

		header := http.Header{}
		header.Set("Accept-Encoding", "br")
		resp, err := New(ts.URL).Do(context.Background(), Request{Method: http.MethodGet, Path: "x", Header: header})
		if err != nil {
			t.Fatalf("Do()でエラーが発生: %v", err)
		}
		if resp.Encoding != "br" || !bytes.Equal(resp.Body, []byte{0x1b, 0x02, 0x00}) {
			t.Errorf("Body = %v, Encoding = %q", resp.Body, resp.Encoding)
		}
	})

	t.Run("接続できない場合にエラーが返ること", func(t *testing.T) {
		t.Parallel()

		ts := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
		addr := ts.URL
		ts.Close()

		if _, err := New(addr).Do(context.Background(), Request{Method: http.MethodGet, Path: "x"}); err == nil {
			t.Fatal("Do()がエラーを返すべきだが、nilが返った")
		}
	})

	t.Run("タイムアウトした場合にエラーが返ること", func(t *testing.T) {
		t.Parallel()

		block := make(chan struct{})
		ts := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			<-block
		}))
		defer ts.Close()
		defer close(block)

		client := New(ts.URL, WithHTTPClient(NewHTTPClient(50*time.Millisecond)))
		if _, err := client.Do(context.Background(), Request{Method: http.MethodGet, Path: "x"}); err == nil {
			t.Fatal("Do()がエラーを返すべきだが、nilが返った")
		}
	})

	t.Run("キャンセルされたコンテキストでエラーが返ること", func(t *testing.T) {
		t.Parallel()

		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Write([]byte("ok"))
		}))
		defer ts.Close()

		ctx, cancel := context.WithCancel(context.Background())
		cancel() // 即座にキャンセル

		if _, err := New(ts.URL).Do(ctx, Request{Method: http.MethodGet, Path: "x"}); err == nil {
			t.Fatal("Do()がエラーを返すべきだが、nilが返った")
		}
	})
}
