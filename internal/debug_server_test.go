package internal

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
)

func TestDefaultMapper_MessageKey(t *testing.T) {
	req := require.New(t)
	at := time.Date(2026, 1, 2, 15, 4, 5, 0, time.Local)
	key := fmt.Sprintf("msg:session-1:%019d:0123456789abcdef", at.UnixNano())

	row := DefaultMapper(key, []byte("abc"))

	req.Equal("session-1", row.Namespace)
	req.Equal("15:04:05", row.Timestamp)
	req.Equal("01234567", row.EntityID)
	req.Equal("Size: 3 bytes", row.Detail)
}

func TestDefaultMapper_ForeignKey(t *testing.T) {
	row := DefaultMapper("other", nil)

	require.Equal(t, "RAW", row.Type)
	require.Equal(t, "--------", row.EntityID)
}

func TestInspectHandler_RendersPrefixedKeys(t *testing.T) {
	req := require.New(t)
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	defer func() { _ = db.Close() }()
	req.NoError(db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte("msg:s1:0000000000000000001:aaaaaaaa"), []byte("x")); err != nil {
			return err
		}
		return txn.Set([]byte("other:key"), []byte("y"))
	}))

	srv := httptest.NewServer(InspectHandler(db, func(key string, val []byte) InspectRow {
		row := DefaultMapper(key, val)
		row.Detail = "payload-" + string(val)
		return row
	}))
	defer srv.Close()

	res, err := http.Get(srv.URL + "/?prefix=msg:")
	req.NoError(err)
	defer func() { _ = res.Body.Close() }()
	body, err := io.ReadAll(res.Body)
	req.NoError(err)

	req.Equal(http.StatusOK, res.StatusCode)
	req.Contains(string(body), "payload-x")
	req.NotContains(string(body), "payload-y")
}
