package main

import (
	"fmt"
	"os"

	"github.com/crucial707/inkwell/cmd/cli/audit"
	"github.com/crucial707/inkwell/cmd/cli/auth"
	"github.com/crucial707/inkwell/cmd/cli/config"
	"github.com/crucial707/inkwell/cmd/cli/posts"
	"github.com/crucial707/inkwell/cmd/cli/root"
)

func main() {
	rootCmd := root.GetRoot()
	auth.InitAuth(rootCmd)
	posts.InitPosts(rootCmd)
	audit.InitAudit(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", config.Explain(err))
		os.Exit(1)
	}
}
