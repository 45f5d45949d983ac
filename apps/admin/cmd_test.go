package main

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/dgrijalva/jwt-go"
	"github.com/pkg/errors"

	echoapi "github.com/aizadzidi/tasmik-windsurf-sub000/apps/api/echo"
	"github.com/aizadzidi/tasmik-windsurf-sub000/core/exam"
	"github.com/aizadzidi/tasmik-windsurf-sub000/storage/database/inmem"
	"github.com/aizadzidi/tasmik-windsurf-sub000/tests"
)

func setup(t *testing.T) (*commandLine, *bytes.Buffer) {
	db := testutil.OpenDB(t)
	testutil.SeedExam(db)

	var out bytes.Buffer
	return &commandLine{
		conf:   testutil.Config(),
		repo:   inmemdb.NewExamRepository(db),
		ledger: inmemdb.NewLedgerWriter(db),
		out:    &out,
	}, &out
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	wantOut    string
}

func (tt cliTest) check(t *testing.T, cli *commandLine, out *bytes.Buffer) {
	out.Reset()
	err := cli.run(append([]string{"admin"}, tt.args...))
	switch {
	case tt.wantErr != nil:
		if errors.Cause(err) != tt.wantErr {
			t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
		}
	case tt.wantErrStr != "":
		if err == nil || err.Error() != tt.wantErrStr {
			t.Errorf("cli.run() error = %v, wantErrStr %s", err, tt.wantErrStr)
		}
	case err != nil:
		t.Errorf("cli.run() unexpected error = %v", err)
	}
	if tt.wantOut != "" && !strings.Contains(out.String(), tt.wantOut) {
		t.Errorf("cli.run() output = %q, want it to contain %q", out.String(), tt.wantOut)
	}
}

func Test_commandLine_usage(t *testing.T) {
	cli, out := setup(t)

	tests := []cliTest{
		{name: "no command", wantErr: errHelp, wantOut: "Usage:"},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp, wantOut: "Usage:"},
		{name: "misspelled command", args: []string{"snapshto"}, wantErr: errHelp, wantOut: `did you mean "snapshot"?`},
		{name: "snapshot: no exam", args: []string{"snapshot"}, wantErr: errHelp},
		{name: "exclude: no student", args: []string{"exclude", "-exam", "e1"}, wantErr: errHelp},
		{name: "optout: no subject", args: []string{"optout", "-exam", "e1", "-student", "s1"}, wantErr: errHelp},
		{name: "token: no teacher", args: []string{"token"}, wantErr: errHelp},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli, out)
		})
	}
}

func Test_commandLine_migrate(t *testing.T) {
	cli, out := setup(t)

	gooseRunFunc = func(command string, db *sql.DB, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return fmt.Errorf("%s must be of form: goose [OPTIONS] DRIVER DBSTRING %s VERSION", command, command)
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "create", args: []string{"migrate", "create", "grading_scales_index", "sql"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli, out)
		})
	}
}

func Test_commandLine_snapshot(t *testing.T) {
	cli, out := setup(t)

	tests := []cliTest{
		{name: "unknown exam", args: []string{"snapshot", "-exam", "e9"}, wantErr: exam.ErrNotFound},
		{name: "capture", args: []string{"snapshot", "-exam", "e1"}, wantOut: "roster snapshot of exam e1 captured: 4 students"},
		{name: "captured once", args: []string{"snapshot", "-exam", "e1"}, wantOut: "exam e1 already has a roster snapshot"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli, out)
		})
	}
}

func Test_commandLine_exclude(t *testing.T) {
	cli, out := setup(t)
	ctx := context.Background()

	tests := []cliTest{
		{name: "unknown exam", args: []string{"exclude", "-exam", "e9", "-student", "s1"}, wantErr: exam.ErrNotFound},
		{name: "misspelled student", args: []string{"exclude", "-exam", "e1", "-student", "s11"}, wantErrStr: `unknown student "s11", did you mean "s1"?`},
		{name: "unknown student", args: []string{"exclude", "-exam", "e1", "-student", "zzz"}, wantErrStr: `unknown student "zzz"`},
		{name: "class not in exam", args: []string{"exclude", "-exam", "e1", "-student", "s1", "-class", "c2"}, wantErrStr: `unknown class "c2"`},
		{name: "exam-wide", args: []string{"exclude", "-exam", "e1", "-student", "s1"}, wantOut: "student s1 excluded from exam e1"},
		{name: "one class", args: []string{"exclude", "-exam", "e1", "-student", "s2", "-class", "c1"}, wantOut: "student s2 excluded from exam e1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli, out)
		})
	}

	roster, err := exam.NewRosterResolver(cli.repo).Resolve(ctx, "e1", exam.AllClasses)
	if err != nil {
		t.Fatalf("Resolve() failed: %v", err)
	}
	if ids := exam.StudentIDs(roster); strings.Join(ids, ",") != "s3,s4" {
		t.Errorf("roster = %v; want [s3 s4]", ids)
	}

	cliTest{args: []string{"exclude", "-exam", "e1", "-student", "s1", "-remove"}, wantOut: "no longer excluded"}.check(t, cli, out)
	roster, err = exam.NewRosterResolver(cli.repo).Resolve(ctx, "e1", exam.AllClasses)
	if err != nil {
		t.Fatalf("Resolve() failed: %v", err)
	}
	if ids := exam.StudentIDs(roster); strings.Join(ids, ",") != "s1,s3,s4" {
		t.Errorf("roster = %v; want [s1 s3 s4]", ids)
	}
}

func Test_commandLine_optOut(t *testing.T) {
	cli, out := setup(t)
	ctx := context.Background()

	tests := []cliTest{
		{name: "misspelled subject", args: []string{"optout", "-exam", "e1", "-subject", "maths", "-student", "s1"}, wantErrStr: `unknown subject "maths", did you mean "math"?`},
		{name: "unknown student", args: []string{"optout", "-exam", "e1", "-subject", "math", "-student", "zzz"}, wantErrStr: `unknown student "zzz"`},
		{name: "opt out", args: []string{"optout", "-exam", "e1", "-subject", "math", "-student", "s1"}, wantOut: "student s1 opted out of math in exam e1"},
		{name: "lift", args: []string{"optout", "-exam", "e1", "-subject", "art", "-student", "s4", "-remove"}, wantOut: "student s4 takes art again"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli, out)
		})
	}

	ledger, err := exam.LoadLedger(ctx, cli.repo, "e1", "c1")
	if err != nil {
		t.Fatalf("LoadLedger() failed: %v", err)
	}
	if !ledger.IsOptedOut("e1", "math", "s1") {
		t.Error("s1 should be opted out of math")
	}
	if ledger.IsOptedOut("e1", "art", "s4") {
		t.Error("s4 should take art again")
	}
}

func Test_commandLine_token(t *testing.T) {
	cli, out := setup(t)
	isTerminalFunc = func(fd int) bool { return false }

	tests := []struct {
		name    string
		args    []string
		wantSub string
		admin   bool
	}{
		{name: "teacher", args: []string{"token", "-teacher", "t1", "-name", "Cikgu Farah"}, wantSub: "t1"},
		{name: "admin", args: []string{"token", "-teacher", "a1", "-admin"}, wantSub: "a1", admin: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out.Reset()
			if err := cli.run(append([]string{"admin"}, tt.args...)); err != nil {
				t.Fatalf("cli.run() unexpected error = %v", err)
			}

			var claims echoapi.Claims
			_, err := jwt.ParseWithClaims(strings.TrimSpace(out.String()), &claims, func(*jwt.Token) (interface{}, error) {
				return []byte(cli.conf.SecretKey), nil
			})
			if err != nil {
				t.Fatalf("ParseWithClaims() failed: %v", err)
			}
			if claims.Subject != tt.wantSub || claims.IsAdmin != tt.admin {
				t.Errorf("claims = %+v; want subject %s, admin %v", claims, tt.wantSub, tt.admin)
			}
		})
	}
}
