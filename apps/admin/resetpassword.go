package main

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/minerva/core"
	"github.com/trezcool/minerva/core/user"
)

// resetPassword sets the password of the user known by login (username or email).
// Inactive users stay inactive unless activate is set.
func (cli *commandLine) resetPassword(login, pwd string, activate bool) error {
	ctx := context.Background()
	login = core.CleanString(login, true /* lower */)

	usr, err := cli.usrRepo.GetUser(ctx, user.GetFilter{UsernameOrEmail: login})
	if err != nil {
		return errors.Wrapf(err, "getting user %q", login)
	}
	if err = usr.SetPassword(pwd); err != nil {
		return errors.Wrap(err, "setting password")
	}
	if activate {
		usr.IsActive = true
	}
	usr.UpdatedAt = time.Now().UTC()
	if _, err = cli.usrRepo.UpdateUser(ctx, usr); err != nil {
		return errors.Wrap(err, "updating user")
	}

	status := "active"
	if !usr.IsActive {
		status = "inactive"
	}
	fmt.Fprintf(cli.out, "password of %s reset, account %s\n", usr.Email, status)
	return nil
}
