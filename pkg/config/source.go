package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Source は環境変数と設定ファイルから値を引く。
type Source struct {
	// file はCONFIG_FILEから読み込んだキーと値。
	file map[string]string
	// getenv は環境変数の取得関数。テストで差し替える。
	getenv func(string) string
}

// NewSource はCONFIG_FILEを読み込んだSourceを生成する。
func NewSource() (*Source, error) {
	return newSource(os.Getenv, os.ReadFile)
}

func newSource(getenv func(string) string, readFile func(string) ([]byte, error)) (*Source, error) {
	s := &Source{file: map[string]string{}, getenv: getenv}

	path := getenv("CONFIG_FILE")
	if path == "" {
		return s, nil
	}
	data, err := readFile(path)
	if err != nil {
		return nil, fmt.Errorf("設定ファイルの読み込みに失敗: %w", err)
	}
	if err := s.parse(data); err != nil {
		return nil, fmt.Errorf("設定ファイル %s の解析に失敗: %w", path, err)
	}
	return s, nil
}

// parse はYAMLのトップレベルのキーを文字列として取り込む。
// リストはカンマ区切りの文字列に変換する。
func (s *Source) parse(data []byte) error {
	raw := map[string]any{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return err
	}
	for k, v := range raw {
		switch val := v.(type) {
		case nil:
			continue
		case []any:
			items := make([]string, 0, len(val))
			for _, item := range val {
				items = append(items, fmt.Sprint(item))
			}
			s.file[strings.ToUpper(k)] = strings.Join(items, ",")
		default:
			s.file[strings.ToUpper(k)] = fmt.Sprint(val)
		}
	}
	return nil
}

// String はkeyの値を返す。未設定の場合はdefaultValueを返す。
func (s *Source) String(key, defaultValue string) string {
	if v := s.getenv(key); v != "" {
		return v
	}
	if v, ok := s.file[key]; ok && v != "" {
		return v
	}
	return defaultValue
}

// Int はkeyの値を整数として返す。
func (s *Source) Int(key string, defaultValue int) (int, error) {
	v := s.String(key, "")
	if v == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s は整数である必要があります: %w", key, err)
	}
	return n, nil
}

// Bool はkeyの値が "true"（大文字小文字を区別しない）かどうかを返す。
func (s *Source) Bool(key string) bool {
	return strings.EqualFold(s.String(key, "false"), "true")
}

// List はカンマ区切りの値を空要素を除いて返す。
func (s *Source) List(key string) []string {
	var out []string
	for _, item := range strings.Split(s.String(key, ""), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
