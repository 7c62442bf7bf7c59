package apperr

import (
	"errors"
	"net/http"
)

// Kind はエラーの分類。
type Kind int

const (
	// KindInternal は分類できない内部エラー。
	KindInternal Kind = iota
	// KindValidation は入力の欠落や形式不正。
	KindValidation
	// KindConflict は一意性制約への違反（重複登録）。
	KindConflict
	// KindInvalidCredentials はログインまたはトークン検証の失敗。
	KindInvalidCredentials
	// KindNotFound はリソースが存在しない。
	KindNotFound
	// KindUpstreamUnavailable はプロキシ先に到達できない、またはタイムアウトした。
	KindUpstreamUnavailable
	// KindMethodNotSupported はGatewayが扱わないHTTPメソッド。
	KindMethodNotSupported
)

// String はログ出力用の名前を返す。
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "ValidationError"
	case KindConflict:
		return "ConflictError"
	case KindInvalidCredentials:
		return "InvalidCredentials"
	case KindNotFound:
		return "NotFound"
	case KindUpstreamUnavailable:
		return "UpstreamUnavailable"
	case KindMethodNotSupported:
		return "MethodNotSupported"
	default:
		return "Internal"
	}
}

// Error は分類付きのエラー。Messageはクライアントにそのまま返してよい短い文言。
type Error struct {
	// Kind はエラーの分類。
	Kind Kind
	// Message はクライアント向けのメッセージ。
	Message string
	// Err は原因となったエラー。ログ出力にのみ使用する。
	Err error
}

// Error はerrorインターフェースを実装する。
func (e *Error) Error() string {
	if e.Err != nil {
		return e.Kind.String() + ": " + e.Message + ": " + e.Err.Error()
	}
	return e.Kind.String() + ": " + e.Message
}

// Unwrap は原因エラーを返す。
func (e *Error) Unwrap() error {
	return e.Err
}

// New は分類付きエラーを生成する。
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap は原因エラーを保持した分類付きエラーを生成する。
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf はerrのエラー分類を返す。分類付きエラーでなければKindInternal。
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is はerrが指定した分類かどうかを判定する。
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Status はエラー分類に対応するHTTPステータスコードを返す。
func Status(kind Kind) int {
	switch kind {
	case KindValidation, KindConflict:
		return http.StatusBadRequest
	case KindInvalidCredentials:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	case KindUpstreamUnavailable:
		return http.StatusServiceUnavailable
	case KindMethodNotSupported:
		return http.StatusMethodNotAllowed
	default:
		return http.StatusInternalServerError
	}
}

// Message はクライアントに返すメッセージを取り出す。
// 分類付きエラーでない場合は内部エラーの定型文を返す。
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != KindInternal {
		return e.Message
	}
	return "Internal server error"
}
