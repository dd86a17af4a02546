package replication

import "fmt"

func fmtPred(lname string, lv uint64, op, rname string, rv uint64) string {
	return fmt.Sprintf("%s(%d) %s %s(%d)", lname, lv, op, rname, rv)
}
