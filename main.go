// Package main is the entry point for sqlchat, a natural-language query
// assistant over a SQL Server data store.
package main

import (
	"github.com/ekaya-inc/ekaya-sqlchat/cmd"
)

func main() {
	cmd.Execute()
}
