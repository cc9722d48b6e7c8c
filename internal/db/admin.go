package db

import (
	"compress/gzip"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/tailscale/tailsql/server/tailsql"
	"tailscale.com/tsweb"
)

// AttachAdminRoutes mounts the debug surface on mux: a tailSQL instance for
// live read-only queries against the trajectory database, and an on-demand
// backup download.
func (db *DB) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)

	// create a tailSQL instance and point it to our DB
	tsql, err := tailsql.NewServer(tailsql.Options{
		RoutePrefix: "/debug/tailsql/",
	})
	if err != nil {
		log.Fatalf("failed to create tailsql server: %v", err)
	}
	tsql.SetDB("sqlite://"+db.path, db.DB, &tailsql.DBOptions{
		Label: "Trajectory DB",
	})

	// mount the tailSQL server on the debug /tailsql path
	debug.Handle("tailsql/", "SQL live debugging", tsql.NewMux())

	debug.Handle("backup", "Create and download a backup of the database now", http.HandlerFunc(db.handleBackup))
}

// handleBackup snapshots the database with VACUUM INTO and streams the
// gzipped copy to the client, removing the snapshot file afterwards.
func (db *DB) handleBackup(w http.ResponseWriter, r *http.Request) {
	unixTime := time.Now().Unix()
	backupPath := fmt.Sprintf("backup-trajlab-%d.db", unixTime)
	if _, err := db.DB.Exec("VACUUM INTO ?", backupPath); err != nil {
		http.Error(w, fmt.Sprintf("Failed to create backup: %v", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", backupPath))
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Encoding", "gzip")

	backupFile, err := os.Open(backupPath)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to open backup file: %v", err), http.StatusInternalServerError)
		return
	}

	// close the backup file after sending it
	// and remove it from the filesystem
	defer func() {
		backupFile.Close()
		if err := os.Remove(backupPath); err != nil {
			log.Printf("Failed to remove backup file: %v", err)
		}
	}()

	gzipWriter := gzip.NewWriter(w)
	defer gzipWriter.Close()
	if _, err := gzipWriter.Write([]byte{}); err != nil {
		// Need to write something to initialize the gzip header
		http.Error(w, fmt.Sprintf("Failed to initialize gzip writer: %v", err), http.StatusInternalServerError)
		return
	}

	// Copy the backup file content to the gzip writer
	if _, err := io.Copy(gzipWriter, backupFile); err != nil {
		http.Error(w, fmt.Sprintf("Failed to write backup file: %v", err), http.StatusInternalServerError)
		return
	}
}
