package internal

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
)

const inspectPage = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>session-lab inspector</title></head>
<body>
<form><input name="prefix" value="{{.Prefix}}"><button>Scan</button></form>
<table border="1" cellpadding="4">
<tr><th>Key</th><th>Type</th><th>Time</th><th>ID</th><th>Session</th><th>Author</th><th>Detail</th></tr>
{{range .Items}}<tr><td>{{.Key}}</td><td>{{.Type}}</td><td>{{.Timestamp}}</td><td>{{.EntityID}}</td><td>{{.Namespace}}</td><td>{{.Author}}</td><td>{{.Detail}}</td></tr>
{{end}}</table>
</body>
</html>`

var inspectTemplate = template.Must(template.New("inspect").Parse(inspectPage))

type InspectRow struct {
	Key       string
	Type      string
	Timestamp string
	EntityID  string
	Namespace string
	Author    string
	Detail    string
}

type RowMapper func(key string, val []byte) InspectRow

type PageData struct {
	Prefix string
	Items  []InspectRow
}

// InspectHandler renders every key under ?prefix= (default "msg:") as a
// table row built by mapper.
func InspectHandler(db *badger.DB, mapper RowMapper) http.Handler {
	if mapper == nil {
		mapper = DefaultMapper
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		prefix := r.URL.Query().Get("prefix")
		if prefix == "" {
			prefix = "msg:"
		}
		data := PageData{Prefix: prefix}

		err := db.View(func(txn *badger.Txn) error {
			it := txn.NewIterator(badger.DefaultIteratorOptions)
			defer it.Close()
			for it.Seek([]byte(prefix)); it.ValidForPrefix([]byte(prefix)); it.Next() {
				item := it.Item()
				err := item.Value(func(val []byte) error {
					data.Items = append(data.Items, mapper(string(item.Key()), val))
					return nil
				})
				if err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_ = inspectTemplate.Execute(w, data)
	})
}

// ServeInspector blocks serving the inspector on port until ctx is done.
func ServeInspector(ctx context.Context, log *slog.Logger, db *badger.DB, port int, mapper RowMapper) error {
	mux := http.NewServeMux()
	mux.Handle("/inspect", InspectHandler(db, mapper))
	srv := &http.Server{Addr: fmt.Sprintf("0.0.0.0:%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("History inspector available", "url", fmt.Sprintf("http://localhost:%d/inspect", port))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// DefaultMapper reads the "prefix:scope:timestamp:id" key layout.
func DefaultMapper(key string, val []byte) InspectRow {
	parts := strings.Split(key, ":")
	row := InspectRow{
		Key:       key,
		Type:      "RAW",
		Timestamp: "--:--:--",
		EntityID:  "--------",
		Namespace: "-",
		Author:    "-",
		Detail:    "Size: " + strconv.Itoa(len(val)) + " bytes",
	}

	if len(parts) >= 4 {
		row.Namespace = parts[1]
		if tsNano, err := strconv.ParseInt(parts[2], 10, 64); err == nil {
			row.Timestamp = time.Unix(0, tsNano).Format("15:04:05")
		}
		row.EntityID = parts[3]
		if len(row.EntityID) > 8 {
			row.EntityID = row.EntityID[:8]
		}
	}
	return row
}
