package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/minerva/core"
	"github.com/trezcool/minerva/core/user"
)

// addUser updates or creates an active user.User with the given role.
// The password policy does not apply: operators set what they need.
func (cli *commandLine) addUser(name, uname, email, pwd, role string) error {
	ctx := context.Background()
	uname = core.CleanString(uname, true /* lower */)
	email = core.CleanString(email, true /* lower */)

	usr, err := cli.findUser(ctx, uname, email)
	isNew := errors.Cause(err) == user.ErrNotFound
	if err != nil && !isNew {
		return err
	}

	now := time.Now().UTC()
	if isNew {
		usr = user.User{ID: uuid.NewString(), CreatedAt: now}
	}
	usr.Username = null.StringFrom(uname)
	usr.Email = email
	if name = core.CleanString(name); name != "" {
		usr.Name = name
	}
	usr.Role = role
	usr.IsActive = true
	usr.UpdatedAt = now
	if err = usr.SetPassword(pwd); err != nil {
		return err
	}

	if isNew {
		_, err = cli.usrRepo.CreateUser(ctx, usr)
	} else {
		_, err = cli.usrRepo.UpdateUser(ctx, usr)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "%s saved as %s\n", uname, role)
	return nil
}

// findUser returns the user with uname as username, or else with email.
func (cli *commandLine) findUser(ctx context.Context, uname, email string) (user.User, error) {
	usr, err := cli.usrRepo.GetUser(ctx, user.GetFilter{UsernameOrEmail: uname})
	if errors.Cause(err) != user.ErrNotFound {
		return usr, err
	}
	return cli.usrRepo.GetUser(ctx, user.GetFilter{Email: email})
}
