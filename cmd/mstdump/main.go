// mstdump parses brokerage master files and prints what the directory
// would index, optionally running a ranked search over it. Debug tool for
// verifying record offsets and the EUC-KR name decoding.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"stockwatch/internal/symdir"
)

func main() {
	var filesCSV string
	var keyword string
	var limit int
	flag.StringVar(&filesCSV, "files", "kospi_code.mst,kosdaq_code.mst", "comma-separated master files")
	flag.StringVar(&keyword, "search", "", "optional search keyword")
	flag.IntVar(&limit, "limit", 25, "max search results")
	flag.Parse()

	log, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	dir := symdir.New(log)
	var files []string
	for _, f := range strings.Split(filesCSV, ",") {
		if f = strings.TrimSpace(f); f != "" {
			files = append(files, f)
		}
	}
	dir.LoadMasterFiles(files...)
	fmt.Printf("%d entries indexed\n", dir.Len())

	if keyword != "" {
		for _, r := range dir.Search(keyword, limit) {
			fmt.Println(r)
		}
	}
}
