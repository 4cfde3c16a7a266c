// Command inspect dumps the batches and the allocation read model from a
// BadgerDB directory. Read-only; safe to run against a live service.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"

	"stockflow/domain"
)

func main() {
	dbPath := flag.String("db", "./data", "Path to badger DB")
	prefix := flag.String("prefix", "batch:", "Prefix to scan (batch: or view:allocation:)")
	flag.Parse()

	// BypassLockGuard allows opening while the service holds the lock.
	opts := badger.DefaultOptions(*dbPath).
		WithReadOnly(true).
		WithBypassLockGuard(true).
		WithLoggingLevel(badger.ERROR)

	db, err := badger.Open(opts)
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	switch {
	case strings.HasPrefix(*prefix, "batch:"):
		dumpBatches(db, *prefix)
	case strings.HasPrefix(*prefix, "view:"):
		dumpViews(db, *prefix)
	default:
		log.Fatalf("Unsupported prefix %q", *prefix)
	}
}

func newTable(headers []string) *tablewriter.Table {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader(headers)
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
	return table
}

func dumpBatches(db *badger.DB, prefix string) {
	color.Bold.Println("Batches")
	table := newTable([]string{"Ref", "SKU", "ETA", "Purchased", "Available", "Allocations"})

	err := scan(db, prefix, func(key string, val []byte) error {
		var b domain.Batch
		if err := json.Unmarshal(val, &b); err != nil {
			fmt.Printf("Error unmarshaling key %s: %v\n", key, err)
			return nil
		}

		eta := color.Green.Sprint("in stock")
		if b.ETA != nil {
			eta = b.ETA.Format("2006-01-02")
		}
		allocations := lo.Map(b.Allocations, func(l domain.OrderLine, _ int) string {
			return fmt.Sprintf("%s x%d", l.OrderID, l.Qty)
		})
		table.Append([]string{
			b.Ref, b.SKU, eta,
			fmt.Sprintf("%d", b.Purchased),
			fmt.Sprintf("%d", b.Available()),
			strings.Join(allocations, ", "),
		})
		return nil
	})
	if err != nil {
		log.Fatal(err)
	}
	table.Render()
}

func dumpViews(db *badger.DB, prefix string) {
	color.Bold.Println("Allocation view")
	table := newTable([]string{"Key", "Batch Ref"})

	err := scan(db, prefix, func(key string, val []byte) error {
		table.Append([]string{key, string(val)})
		return nil
	})
	if err != nil {
		log.Fatal(err)
	}
	table.Render()
}

func scan(db *badger.DB, prefix string, fn func(key string, val []byte) error) error {
	return db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefixBytes := []byte(prefix)
		for it.Seek(prefixBytes); it.ValidForPrefix(prefixBytes); it.Next() {
			item := it.Item()
			err := item.Value(func(v []byte) error {
				return fn(string(item.Key()), v)
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
}
