package internal

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/database"
	"github.com/olekukonko/tablewriter"
)

const defaultScanLimit = 500

type InspectRow = database.InspectRow
type RowMapper = database.RowMapper
type StatsProvider func() any

// Scan reads at most limit rows under prefix. Values are only valid inside
// the transaction, mapper must copy what it keeps.
func Scan(db *badger.DB, prefix string, mapper RowMapper, limit int) ([]InspectRow, error) {
	if mapper == nil {
		mapper = DefaultMapper
	}
	if limit <= 0 {
		limit = defaultScanLimit
	}

	var rows []InspectRow
	err := db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefixBytes := []byte(prefix)
		for it.Seek(prefixBytes); it.ValidForPrefix(prefixBytes) && len(rows) < limit; it.Next() {
			item := it.Item()
			key := string(item.KeyCopy(nil))
			if err := item.Value(func(val []byte) error {
				rows = append(rows, mapper(key, val))
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})
	return rows, err
}

// Render prints rows as a borderless table.
func Render(w io.Writer, rows []InspectRow) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Key", "Type", "Namespace", "Timestamp", "Entity ID", "Detail"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	for _, row := range rows {
		table.Append([]string{row.Key, row.Type, row.Namespace, row.Timestamp, row.EntityID, row.Detail})
	}
	table.Render()
}

// DebugHandler serves /inspect?prefix=&limit= as a text table and /stats as JSON.
func DebugHandler(db *badger.DB, mapper RowMapper, stats StatsProvider) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /inspect", func(w http.ResponseWriter, r *http.Request) {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		rows, err := Scan(db, r.URL.Query().Get("prefix"), mapper, limit)
		if err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		Render(w, rows)
	})

	mux.HandleFunc("GET /stats", func(w http.ResponseWriter, _ *http.Request) {
		var body any = map[string]any{}
		if stats != nil {
			body = stats()
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(body)
	})
	return mux
}

// DefaultMapper extends database.DefaultMapper to the family:kind:id key layout.
func DefaultMapper(key string, val []byte) InspectRow {
	row := database.DefaultMapper(key, val)
	parts := strings.Split(key, ":")
	if len(parts) >= 3 {
		row.Type = strings.ToUpper(parts[0])
		row.Namespace = parts[1]
		row.Timestamp = "--:--:--"
		row.EntityID = ShortID(parts[len(parts)-1])
	}
	return row
}

// ShortID keeps the first 8 characters of an identifier for display.
func ShortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
