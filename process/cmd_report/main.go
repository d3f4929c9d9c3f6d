package main

import (
	"flag"
	"time"

	"tvms/process/report"
)

func main() {
	month := flag.String("month", time.Now().UTC().Format("2006-01"), "month to report on (YYYY-MM)")
	list := flag.Bool("list", false, "list individual payments")
	flag.Parse()

	report.RunCollections(*month, *list)
}
