package main

import (
	"context"
)

func (cli *commandLine) resetPassword(code, pwd string) error {
	_, err := cli.schoolSvc.ResetPassword(context.Background(), code, pwd)
	return err
}
