package main

import (
	"errors"
	"fmt"
	"io"
	"syscall"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/trezcool/minerva/core/course"
	"github.com/trezcool/minerva/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db        *sqlx.DB
	usrRepo   user.Repository
	courseSvc course.ServiceInterface
	out       io.Writer
}

// usage prints the help of cmd and returns errHelp.
func usage(cmd *cobra.Command) error {
	_ = cmd.Help()
	return errHelp
}

// readPassword prompts for a password. An empty password is a usage error.
func (cli *commandLine) readPassword(cmd *cobra.Command) (string, error) {
	fmt.Fprint(cli.out, "Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Fprintln(cli.out)
	if err != nil {
		return "", err
	}
	if len(pwd) == 0 {
		return "", usage(cmd)
	}
	return string(pwd), nil
}

func (cli *commandLine) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "admin",
		Short:         "Minerva administration commands",
		Args:          cobra.ArbitraryArgs, // unknown commands print the usage
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return usage(cmd)
		},
	}
	root.SetOut(cli.out)
	root.SetErr(cli.out)
	root.AddCommand(cli.migrateCmd(), cli.addUserCmd(), cli.resetPasswordCmd(), cli.resequenceCmd())
	return root
}

func (cli *commandLine) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:                "migrate COMMAND [ARGS]",
		Short:              "Run a goose command (up, up-by-one, up-to, down, down-to, redo, reset, status, version)",
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return usage(cmd)
			}
			return cli.migrate(args)
		},
	}
}

func (cli *commandLine) addUserCmd() *cobra.Command {
	var (
		uname, email, name string
		isAdmin, isTeacher bool
	)
	cmd := &cobra.Command{
		Use:   "adduser",
		Short: "Create or update an active user. The password is prompted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if uname == "" || email == "" || (isAdmin && isTeacher) {
				return usage(cmd)
			}
			pwd, err := cli.readPassword(cmd)
			if err != nil {
				return err
			}
			role := user.RoleStudent
			switch {
			case isAdmin:
				role = user.RoleAdmin
			case isTeacher:
				role = user.RoleTeacher
			}
			return cli.addUser(name, uname, email, pwd, role)
		},
	}
	cmd.Flags().StringVar(&uname, "username", "", "The user's username.")
	cmd.Flags().StringVar(&email, "email", "", "The user's email.")
	cmd.Flags().StringVar(&name, "name", "", "The user's full name.")
	cmd.Flags().BoolVar(&isAdmin, "admin", false, "Give the user the admin role.")
	cmd.Flags().BoolVar(&isTeacher, "teacher", false, "Give the user the teacher role.")
	return cmd
}

func (cli *commandLine) resetPasswordCmd() *cobra.Command {
	var (
		uname    string
		activate bool
	)
	cmd := &cobra.Command{
		Use:   "resetpassword",
		Short: "Reset a user's password. The password is prompted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if uname == "" {
				return usage(cmd)
			}
			pwd, err := cli.readPassword(cmd)
			if err != nil {
				return err
			}
			return cli.resetPassword(uname, pwd, activate)
		},
	}
	cmd.Flags().StringVar(&uname, "username", "", "The user's username or email.")
	cmd.Flags().BoolVar(&activate, "activate", false, "Also reactivate the user.")
	return cmd
}

func (cli *commandLine) resequenceCmd() *cobra.Command {
	var courseID string
	cmd := &cobra.Command{
		Use:   "resequence",
		Short: "Repair the order of modules and contents, and all derived counters",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.resequence(courseID)
		},
	}
	cmd.Flags().StringVar(&courseID, "course", "", "The ID of the course to repair. All courses are repaired if empty.")
	return cmd
}

// run executes the command line args (program name first).
func (cli *commandLine) run(args []string) error {
	root := cli.rootCmd()
	cmdArgs := []string{} // never nil: cobra would read os.Args
	if len(args) > 1 {
		cmdArgs = args[1:]
	}
	root.SetArgs(cmdArgs)
	return root.Execute()
}
