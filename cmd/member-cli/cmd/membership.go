package cmd

import (
	"context"
	"fmt"

	"member-core/internal/service"

	"github.com/spf13/cobra"
)

var membershipCmd = &cobra.Command{
	Use:   "membership",
	Short: "Membership housekeeping jobs",
}

var membershipExpireCmd = &cobra.Command{
	Use:   "expire",
	Short: "Move lapsed active memberships to inactive",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, db, err := bootstrap()
		if err != nil {
			return err
		}

		expired, err := service.NewMembershipService(db, &cfg.Membership).Expire(context.Background())
		if err != nil {
			return err
		}
		fmt.Printf("expired=%d\n", expired)
		return nil
	},
}

var membershipCompressCmd = &cobra.Command{
	Use:   "compress",
	Short: "Delete long-inactive memberships and relink their referrals",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, db, err := bootstrap()
		if err != nil {
			return err
		}

		compressed, err := service.NewMembershipService(db, &cfg.Membership).Compress(context.Background())
		if err != nil {
			return err
		}
		fmt.Printf("compressed=%d\n", compressed)
		return nil
	},
}

func init() {
	membershipCmd.AddCommand(membershipExpireCmd)
	membershipCmd.AddCommand(membershipCompressCmd)
	rootCmd.AddCommand(membershipCmd)
}
