package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/aizadzidi/tasmik-windsurf-sub000/core"
	"github.com/aizadzidi/tasmik-windsurf-sub000/core/exam"
)

var errHelp = errors.New("help provided")

var commands = []string{"migrate", "snapshot", "exclude", "optout", "token"}

type commandLine struct {
	db     *sql.DB
	conf   *core.Config
	repo   exam.Repository
	ledger exam.LedgerWriter
	out    io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS] - run a goose command (up, down, status, ...) on the embedded migrations")
	fmt.Fprintln(cli.out, "  snapshot -exam ID - capture the roster snapshot of an exam")
	fmt.Fprintln(cli.out, "  exclude -exam ID -student ID [-class ID] [-remove] - exclude a student from an exam")
	fmt.Fprintln(cli.out, "  optout -exam ID -subject ID -student ID [-remove] - exempt a student from a subject")
	fmt.Fprintln(cli.out, "  token -teacher ID [-name NAME] [-admin] - issue a dashboard token")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}
	ctx := context.Background()

	snapshotCmd := flag.NewFlagSet("snapshot", flag.ContinueOnError)
	snapshotExam := snapshotCmd.String("exam", "", "The exam ID.")

	excludeCmd := flag.NewFlagSet("exclude", flag.ContinueOnError)
	excludeExam := excludeCmd.String("exam", "", "The exam ID.")
	excludeStudent := excludeCmd.String("student", "", "The student ID.")
	excludeClass := excludeCmd.String("class", "", "Limit the exclusion to this class. Exam-wide when empty.")
	excludeRemove := excludeCmd.Bool("remove", false, "Lift the exclusion instead.")

	optOutCmd := flag.NewFlagSet("optout", flag.ContinueOnError)
	optOutExam := optOutCmd.String("exam", "", "The exam ID.")
	optOutSubject := optOutCmd.String("subject", "", "The subject ID.")
	optOutStudent := optOutCmd.String("student", "", "The student ID.")
	optOutRemove := optOutCmd.Bool("remove", false, "Lift the opt-out instead.")

	tokenCmd := flag.NewFlagSet("token", flag.ContinueOnError)
	tokenTeacher := tokenCmd.String("teacher", "", "The teacher ID the dashboard grades for.")
	tokenName := tokenCmd.String("name", "", "The teacher's display name.")
	tokenAdmin := tokenCmd.Bool("admin", false, "Grant access to the admin endpoints.")

	for _, fs := range []*flag.FlagSet{snapshotCmd, excludeCmd, optOutCmd, tokenCmd} {
		fs.SetOutput(cli.out)
	}

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	case "snapshot":
		if err := snapshotCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *snapshotExam == "" {
			snapshotCmd.Usage()
			return errHelp
		}
		return cli.snapshot(ctx, *snapshotExam)
	case "exclude":
		if err := excludeCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *excludeExam == "" || *excludeStudent == "" {
			excludeCmd.Usage()
			return errHelp
		}
		return cli.exclude(ctx, *excludeExam, *excludeClass, *excludeStudent, *excludeRemove)
	case "optout":
		if err := optOutCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *optOutExam == "" || *optOutSubject == "" || *optOutStudent == "" {
			optOutCmd.Usage()
			return errHelp
		}
		return cli.optOut(ctx, *optOutExam, *optOutSubject, *optOutStudent, *optOutRemove)
	case "token":
		if err := tokenCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *tokenTeacher == "" {
			tokenCmd.Usage()
			return errHelp
		}
		return cli.token(core.Identity{ID: *tokenTeacher, Name: *tokenName, IsAdmin: *tokenAdmin})
	default:
		if match := suggest(args[1], commands); match != "" {
			fmt.Fprintf(cli.out, "unknown command %q, did you mean %q?\n", args[1], match)
		}
		cli.printUsage()
		return errHelp
	}
}

// suggest returns the candidate closest to `word`, or "" when none is close enough.
func suggest(word string, candidates []string) string {
	best, bestRatio := "", 0.6
	for _, c := range candidates {
		m := difflib.NewMatcher(strings.Split(word, ""), strings.Split(c, ""))
		if r := m.Ratio(); r > bestRatio {
			best, bestRatio = c, r
		}
	}
	return best
}

func unknownError(kind, value string, candidates []string) error {
	if match := suggest(value, candidates); match != "" {
		return fmt.Errorf("unknown %s %q, did you mean %q?", kind, value, match)
	}
	return fmt.Errorf("unknown %s %q", kind, value)
}
