// Command accountd serves the account pages of goAccount over HTTP.
//
//	accountd serve --config accountd.yaml
//	accountd migrate up --database-url postgres://...
package main

import (
	"os"
)

func main() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
