package main

import (
	"context"

	"github.com/pkg/errors"

	"github.com/skillforge/skillforge/core"
	"github.com/skillforge/skillforge/core/user"
)

// addUser updates or creates a user.
func (cli *commandLine) addUser(uname, email, pwd string, isAdmin bool) error {
	ctx := context.Background()
	uname = core.CleanString(uname, true /* lower */)
	email = core.CleanString(email, true /* lower */)

	usr, err := cli.usrSvc.GetByUsernameOrEmail(ctx, uname)
	if err != nil {
		if !errors.Is(err, user.ErrNotFound) {
			return err
		}
		role := user.RoleStudent
		if isAdmin {
			role = user.RoleAdmin
		}
		usr, err = cli.usrSvc.Register(ctx, user.NewUser{
			Name:     uname,
			Username: uname,
			Email:    email,
			Password: pwd,
			Role:     role,
		})
		if err != nil {
			return err
		}
		return cli.usrSvc.Activate(ctx, usr.ID)
	}

	if isAdmin {
		if err = cli.usrSvc.SetRole(ctx, usr.ID, user.RoleAdmin); err != nil {
			return err
		}
	}
	active := true
	_, err = cli.usrSvc.Update(ctx, usr.ID, user.UpdateUser{Password: pwd, IsActive: &active})
	return err
}
