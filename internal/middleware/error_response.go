package middleware

import (
	"encoding/json"
	"net/http"
)

// ErrorBody はAPIエラーレスポンスの統一フォーマット。
// errorフィールドには機械可読な短いコードのみを入れる。
type ErrorBody struct {
	Error string `json:"error"`
}

// WriteError は統一エラーフォーマットでHTTPエラーレスポンスを書き込む。
func WriteError(w http.ResponseWriter, statusCode int, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorBody{Error: code})
}
