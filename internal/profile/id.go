package profile

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// newID は生成順にソート可能なプロフィールIDを返す。
func newID(now time.Time) string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(now), entropy).String()
}

// validID はidがこのサービスの生成したID形式かどうかを判定する。
func validID(id string) bool {
	_, err := ulid.ParseStrict(id)
	return err == nil
}
