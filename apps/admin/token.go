package main

import (
	"fmt"
	"os"

	"golang.org/x/term"

	echoapi "github.com/aizadzidi/tasmik-windsurf-sub000/apps/api/echo"
	"github.com/aizadzidi/tasmik-windsurf-sub000/core"
)

var isTerminalFunc = term.IsTerminal // mockable

// token issues a dashboard JWT. Only the token is printed when stdout is not a terminal.
func (cli *commandLine) token(id core.Identity) error {
	token, err := echoapi.GenerateToken(echoapi.GetTeacherClaims(id, cli.conf), cli.conf)
	if err != nil {
		return err
	}
	if !isTerminalFunc(int(os.Stdout.Fd())) {
		fmt.Fprintln(cli.out, token)
		return nil
	}
	role := "teacher"
	if id.IsAdmin {
		role = "admin"
	}
	fmt.Fprintf(cli.out, "%s token for %s, valid for %v:\n\n%s\n\n", role, id.ID, cli.conf.Server.JWTExpirationDelta, token)
	fmt.Fprintln(cli.out, "Send it as `Authorization: Bearer <token>`.")
	return nil
}
