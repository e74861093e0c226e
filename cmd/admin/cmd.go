package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"syscall"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/term"

	"github.com/IsmaHaa12/smp-announcement/internal/model"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

const minPasswordLen = 8

// userWriter provisions accounts in the identity directory.
type userWriter interface {
	CreateUser(ctx context.Context, id, email, password string) error
}

type commandLine struct {
	users    userWriter
	validate *validator.Validate
	out      io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  adduser -email EMAIL - create an account or reset its password")
}

func (cli *commandLine) run(ctx context.Context, args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addUserCmd := flag.NewFlagSet("adduser", flag.ContinueOnError)
	addUserCmd.SetOutput(cli.out)
	addUserEmail := addUserCmd.String("email", "", "The account email. The password will be prompted next.")

	switch args[1] {
	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		email := model.NormalizeEmail(*addUserEmail)
		if err := cli.validate.Var(email, "required,email,max=254"); err != nil {
			addUserCmd.Usage()
			return errHelp
		}
		fmt.Fprint(cli.out, "Enter password:")
		pwd, err := readPasswordFunc(int(syscall.Stdin))
		fmt.Fprintln(cli.out)
		if err != nil {
			return err
		}
		if len(pwd) < minPasswordLen {
			fmt.Fprintf(cli.out, "password must be at least %d characters\n", minPasswordLen)
			return errHelp
		}
		return cli.addUser(ctx, email, string(pwd))
	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) addUser(ctx context.Context, email, password string) error {
	if err := cli.users.CreateUser(ctx, uuid.NewString(), email, password); err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "account %s ready\n", email)
	return nil
}
