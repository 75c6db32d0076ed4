package internal

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
)

func seed(t *testing.T, entries map[string]string) *badger.DB {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, db.Update(func(txn *badger.Txn) error {
		for k, v := range entries {
			if err := txn.Set([]byte(k), []byte(v)); err != nil {
				return err
			}
		}
		return nil
	}))
	return db
}

func TestScan_PrefixAndLimit(t *testing.T) {
	req := require.New(t)
	db := seed(t, map[string]string{
		"user:id:0123456789": "a",
		"user:id:abcdefghij": "bb",
		"conv:pair:a:b":      "ccc",
	})

	rows, err := Scan(db, "user:", nil, 0)
	req.NoError(err)
	req.Len(rows, 2)
	req.Equal("user:id:0123456789", rows[0].Key)
	req.Equal("USER", rows[0].Type)
	req.Equal("01234567", rows[0].EntityID)
	req.Equal("id", rows[0].Namespace)
	req.Equal("Size: 1 bytes", rows[0].Detail)

	rows, err = Scan(db, "", nil, 1)
	req.NoError(err)
	req.Len(rows, 1)
}

func TestRender(t *testing.T) {
	var out bytes.Buffer

	Render(&out, []InspectRow{{Key: "conv:pair:a:b", Type: "CONVERSATION", EntityID: "a:b", Detail: "3 messages"}})

	require.Contains(t, out.String(), "conv:pair:a:b")
	require.Contains(t, out.String(), "3 messages")
}

func TestDebugHandler(t *testing.T) {
	req := require.New(t)
	db := seed(t, map[string]string{"msg:body:42": "hello"})
	srv := httptest.NewServer(DebugHandler(db, nil, func() any { return map[string]int{"connections": 2} }))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/inspect?prefix=msg:")
	req.NoError(err)
	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	req.NoError(err)
	req.Equal(http.StatusOK, resp.StatusCode)
	req.Contains(string(body), "msg:body:42")

	resp, err = http.Get(srv.URL + "/stats")
	req.NoError(err)
	body, err = io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	req.NoError(err)
	req.Equal(`{"connections":2}`, strings.TrimSpace(string(body)))
}

func TestDefaultMapper_UnknownLayoutFallsBack(t *testing.T) {
	req := require.New(t)

	row := DefaultMapper("orphan", []byte("abc"))

	req.Equal("orphan", row.Key)
	req.Equal("RAW", row.Type)
	req.Equal("--------", row.EntityID)
	req.Equal("Size: 3 bytes", row.Detail)
}
