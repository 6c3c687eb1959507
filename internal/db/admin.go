package db

import (
	"compress/gzip"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tailscale/tailsql/server/tailsql"
	"tailscale.com/tsweb"

	"github.com/banshee-data/depthsync/internal/monitoring"
)

// AttachAdminRoutes mounts tailsql over the recorder database and a backup
// download under /debug/.
func (db *DB) AttachAdminRoutes(mux *http.ServeMux) error {
	debug := tsweb.Debugger(mux)

	tsql, err := tailsql.NewServer(tailsql.Options{
		RoutePrefix: "/debug/tailsql/",
	})
	if err != nil {
		return fmt.Errorf("db: tailsql: %w", err)
	}
	tsql.SetDB("sqlite://"+filepath.Base(db.path), db.DB, &tailsql.DBOptions{
		Label: "Session recorder",
	})
	debug.Handle("tailsql/", "SQL live debugging", tsql.NewMux())

	debug.Handle("backup", "Create and download a backup of the database now", http.HandlerFunc(db.handleBackup))
	return nil
}

// snapshot writes a consistent copy of the database into dir and returns
// its path.
func (db *DB) snapshot(dir string, at time.Time) (string, error) {
	base := strings.TrimSuffix(filepath.Base(db.path), filepath.Ext(db.path))
	out := filepath.Join(dir, fmt.Sprintf("%s-%s.db", base, at.UTC().Format("20060102T150405Z")))
	if _, err := db.Exec("VACUUM INTO ?", out); err != nil {
		return "", fmt.Errorf("vacuum into %s: %w", out, err)
	}
	return out, nil
}

func (db *DB) handleBackup(w http.ResponseWriter, r *http.Request) {
	dir, err := os.MkdirTemp("", "depthsync-backup-")
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	defer os.RemoveAll(dir)

	path, err := db.snapshot(dir, time.Now())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	f, err := os.Open(path)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s.gz", filepath.Base(path)))
	w.Header().Set("Content-Type", "application/gzip")
	zw := gzip.NewWriter(w)
	if _, err := io.Copy(zw, f); err != nil {
		monitoring.Opsf("db: backup stream: %v", err)
	}
	if err := zw.Close(); err != nil {
		monitoring.Opsf("db: backup stream: %v", err)
	}
}
