package main

import (
	"context"
	"fmt"

	"github.com/trezcool/shuleboard/core/school"
)

// addSchool signs a new school.School up
func (cli *commandLine) addSchool(code, name, pwd string) error {
	ns := school.NewSchool{Code: code, Name: name, Password: pwd}
	if err := ns.Validate(cli.validate); err != nil {
		return err
	}
	s, err := cli.schoolSvc.Create(context.Background(), ns)
	if err != nil {
		return err
	}
	fmt.Printf("school %q created: %s\n", s.Code, s.ID)
	return nil
}
