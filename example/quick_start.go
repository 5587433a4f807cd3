package main

import (
	"fmt"
	"math/rand/v2"
	"strconv"

	"github.com/nyan233/filedb"
)

func main() {
	// create files with prefix dbset/quick_start
	db, err := filedb.Open(filedb.Config{
		RootDir: "dbset",
		Name:    "quick_start",
		Schema: &filedb.Metadata{
			Cols: []filedb.Column{
				{Name: "network", Type: filedb.ColumnTypeInt, Length: 11},
				{Name: "mask", Type: filedb.ColumnTypeInt, Length: 11},
				{Name: "status", Type: filedb.ColumnTypeInt, Length: 2},
			},
			Description: "quick start",
			Indexes: []filedb.IndexDesc{
				{Columns: []string{"network"}, Type: filedb.IndexTypeBTree},
			},
		},
	})
	if err != nil {
		panic(err)
	}
	rows := make([]filedb.Row, 0, 64)
	for i := uint64(0); i < 64; i++ {
		rows = append(rows, filedb.Row{
			"network": strconv.FormatUint(i%16, 10),
			"mask":    strconv.FormatUint(rand.Uint64N(1<<32), 10),
			"status":  "1",
		})
	}
	n, err := db.Insert(rows)
	if err != nil {
		panic(fmt.Errorf("insert err:%v", err))
	}
	fmt.Printf("inserted %d rows\n", n)
	for i := 0; i < 8; i++ {
		network := strconv.FormatUint(rand.Uint64N(16), 10)
		res, err := db.Query().Where("network", network).Select("network", "mask")
		if err != nil {
			panic(fmt.Errorf("select err:%v", err))
		}
		fmt.Printf("network=%s rows=%v\n", network, res)
	}
	// the tree index can also be used on its own
	tree, err := filedb.OpenTree("dbset/quick_start_standalone.btree", nil)
	if err != nil {
		panic(err)
	}
	for i := uint64(0); i < 64; i++ {
		if _, err = tree.Put(i%10, i); err != nil {
			panic(err)
		}
	}
	navs, found, err := tree.Get(3)
	if err != nil {
		panic(err)
	}
	fmt.Printf("tree.Get key=3 found=%v navs=%v\n", found, navs)
	if err = tree.Close(); err != nil {
		panic(fmt.Errorf("close tree err:%v", err))
	}
	if err = db.Close(); err != nil {
		panic(fmt.Errorf("close err:%v", err))
	}
}
