// Package config は各サービスの設定を環境変数から読み込む。
//
// CONFIG_FILE にYAMLファイルのパスが指定された場合はそのファイルを
// 下敷きにし、同名の環境変数が設定されていれば環境変数を優先する。
package config
