// Package password はパスワードの一方向ハッシュ化と照合を提供する。
//
// 新規のハッシュはbcryptで生成する。以前の実装が保存していた
// ソルトなしSHA-256の16進ダイジェストも照合のみ受け付ける。
package password

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// ErrMismatch はパスワードがハッシュと一致しないことを示す。
var ErrMismatch = errors.New("password: mismatch")

// ErrTooLong はパスワードがbcryptで扱える長さを超えていることを示す。
var ErrTooLong = errors.New("password: longer than 72 bytes")

// maxLen はbcryptが受け付けるパスワードの最大バイト数。
const maxLen = 72

// legacyHashLen はSHA-256の16進ダイジェストの長さ。
const legacyHashLen = sha256.Size * 2

// dummyHash は存在しないユーザーの照合に使うハッシュ。
// ユーザーの有無で応答時間が変わらないようにする。
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("dummy-password-for-timing"), bcrypt.DefaultCost)

// Hash は平文パスワードからbcryptハッシュを生成する。
func Hash(plain string) (string, error) {
	if plain == "" {
		return "", errors.New("password: empty")
	}
	if len(plain) > maxLen {
		return "", ErrTooLong
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("パスワードのハッシュ化に失敗: %w", err)
	}
	return string(hash), nil
}

// Verify は平文パスワードと保存済みハッシュを照合する。
// 一致しない場合はErrMismatchを返す。
func Verify(hash, plain string) error {
	if IsLegacy(hash) {
		sum := sha256.Sum256([]byte(plain))
		if subtle.ConstantTimeCompare([]byte(hex.EncodeToString(sum[:])), []byte(hash)) == 1 {
			return nil
		}
		return ErrMismatch
	}

	// 登録時に長すぎるパスワードは拒否しているため、一致するハッシュは存在しない
	if len(plain) > maxLen {
		return ErrMismatch
	}
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain))
	switch {
	case err == nil:
		return nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return ErrMismatch
	default:
		return fmt.Errorf("パスワードハッシュの照合に失敗: %w", err)
	}
}

// VerifyDummy は存在しないユーザーに対して照合と同じコストを消費する。
func VerifyDummy(plain string) {
	_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(plain))
}

// IsLegacy はハッシュがソルトなしSHA-256の16進ダイジェストかどうかを判定する。
func IsLegacy(hash string) bool {
	if len(hash) != legacyHashLen {
		return false
	}
	_, err := hex.DecodeString(hash)
	return err == nil
}
