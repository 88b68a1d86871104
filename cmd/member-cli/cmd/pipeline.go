package cmd

import (
	"context"
	"fmt"

	"member-core/internal/reserve"
	"member-core/internal/service"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/spf13/cobra"
)

var pipelineCmd = &cobra.Command{
	Use:   "pipeline",
	Short: "Settlement pipeline operations",
}

var pipelineRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one scan -> sweep -> apply pass",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, db, err := bootstrap()
		if err != nil {
			return err
		}

		ethClient, err := ethclient.Dial(cfg.Chain.RpcUrl)
		if err != nil {
			return fmt.Errorf("failed to connect chain RPC: %w", err)
		}
		defer ethClient.Close()

		reserveClient := reserve.NewClient(reserve.Config{
			BaseURL: cfg.Reserve.BaseURL,
			APIKey:  cfg.Reserve.APIKey,
			Timeout: cfg.Reserve.Timeout,
		})

		membership := service.NewMembershipService(db, &cfg.Membership)
		commission := service.NewCommissionService(&cfg.Commission)

		pipeline := service.NewPipelineService(
			service.NewScannerService(db, ethClient, &cfg.Chain),
			service.NewSweeperService(db, reserveClient, &cfg.Sweep, cfg.Chain.TokenDecimals),
			service.NewSettlementService(db, membership, commission),
		)

		result, err := pipeline.RunOnce(context.Background())
		if result != nil {
			confirmed, swept := 0, 0
			if result.Scan != nil {
				confirmed = result.Scan.ConfirmedCount
			}
			if result.Sweep != nil {
				swept = result.Sweep.SweptCount
			}
			fmt.Printf("confirmed=%d swept=%d applied=%d\n", confirmed, swept, result.Applied)
		}
		return err
	},
}

func init() {
	pipelineCmd.AddCommand(pipelineRunCmd)
	rootCmd.AddCommand(pipelineCmd)
}
