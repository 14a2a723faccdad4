package handler

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
)

// StaticHandler はSPAの静的アセットを配信するハンドラー。
// 実在するファイルはそのまま配信し、それ以外のパスはすべて
// エントリドキュメント（index.html）にフォールバックする。
// ルーティングはクライアント側で解決される。
type StaticHandler struct {
	dir        string
	fileServer http.Handler
}

// NewStaticHandler は指定ディレクトリを配信するStaticHandlerを生成する。
func NewStaticHandler(dir string) *StaticHandler {
	return &StaticHandler{
		dir:        dir,
		fileServer: http.FileServer(http.Dir(dir)),
	}
}

// ServeHTTP はリクエストパスに対応するファイル、またはindex.htmlを配信する。
func (h *StaticHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.NotFound(w, r)
		return
	}

	// パスを正規化してディレクトリ外への参照を防ぐ
	cleaned := path.Clean("/" + r.URL.Path)
	target := filepath.Join(h.dir, filepath.FromSlash(cleaned))

	info, err := os.Stat(target)
	if err == nil && !info.IsDir() && cleaned == r.URL.Path {
		h.fileServer.ServeHTTP(w, r)
		return
	}

	h.serveIndex(w, r)
}

// serveIndex はSPAのエントリドキュメントを配信する。
// リクエストパスに依存しないため、パス由来の配信拒否を避けて
// ファイルを直接開いて返す。
func (h *StaticHandler) serveIndex(w http.ResponseWriter, r *http.Request) {
	indexPath := filepath.Join(h.dir, "index.html")

	f, err := os.Open(indexPath)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		http.NotFound(w, r)
		return
	}

	http.ServeContent(w, r, "index.html", info.ModTime(), f)
}
