// Command fleetctl is the operator tool: it converts between internal ids and
// id tokens, issues and revokes development sessions and bootstraps
// organizations.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
)

const usage = `usage: fleetctl <command> [flags]

commands:
  encode <id>                       print the id token for an internal id
  decode <token>                    print the internal id behind a token
  session issue --user N [--ttl D]  issue a bearer token and register its session
  session revoke <session-id>       revoke a session
  bootstrap --org NAME --email E    create an organization and make E its owner
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "fleetctl:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("missing command\n%s", usage)
	}
	switch args[0] {
	case "encode":
		return cmdEncode(args[1:], out)
	case "decode":
		return cmdDecode(args[1:], out)
	case "session":
		if len(args) < 2 {
			return fmt.Errorf("missing session subcommand\n%s", usage)
		}
		switch args[1] {
		case "issue":
			return cmdSessionIssue(ctx, args[2:], out)
		case "revoke":
			return cmdSessionRevoke(ctx, args[2:], out)
		}
		return fmt.Errorf("unknown session subcommand %q", args[1])
	case "bootstrap":
		return cmdBootstrap(ctx, args[1:], out)
	case "help", "-h", "--help":
		_, err := io.WriteString(out, usage)
		return err
	}
	return fmt.Errorf("unknown command %q\n%s", args[0], usage)
}
