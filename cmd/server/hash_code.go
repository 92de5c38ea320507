package main

import (
	"errors"
	"fmt"
	"strings"

	"arc-backend/internal/auth"

	"github.com/spf13/cobra"
)

var hashCodeCmd = &cobra.Command{
	Use:   "hash-code <access-code>",
	Short: "Print a bcrypt hash for ACCESS_CODE_HASH",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		code := strings.TrimSpace(args[0])
		if code == "" {
			return errors.New("access code cannot be empty")
		}
		hash, err := auth.HashAccessCode(code)
		if err != nil {
			return fmt.Errorf("hashing access code: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), hash)
		return nil
	},
}
