package main

import (
	"context"
	"fmt"
	"os"

	"github.com/dmitrijs2005/salesdash/internal/admin"
)

func main() {
	if err := admin.NewRootCommand(admin.Env{}).ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
