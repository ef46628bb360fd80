// Command coursehistory prints the change history of one course as JSON.
//
//	coursehistory -config <dir> -course <uuid>
//
// Exit codes: 0 on success, 2 if the course does not exist, 1 on any other failure.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()

	os.Exit(code)
}
