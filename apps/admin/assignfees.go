package main

import (
	"context"
	"fmt"

	"github.com/trezcool/karo/core"
)

// assignFees runs one assignment pass for the structure, as the school.
// Useful for backfills and for schools onboarded mid-session.
func (cli *commandLine) assignFees(schoolID, structureID string) error {
	auth := core.AuthContext{
		SchoolID: schoolID,
		Email:    "admin-cli",
		UserType: core.UserTypeSchool,
	}

	res, err := cli.feeSvc.Assign(context.Background(), auth, structureID)
	if err != nil {
		return err
	}

	fmt.Printf("assigned: %d, skipped: %d, eligible: %d\n", res.Assigned, res.Skipped, res.TotalEligible)
	return nil
}
