package cmd

import (
	"fmt"
	"strconv"

	"member-core/internal/model"

	"github.com/spf13/cobra"
)

var paymentCmd = &cobra.Command{
	Use:   "payment",
	Short: "Payment intent inspection",
}

var paymentStatusCmd = &cobra.Command{
	Use:   "status <payment-id>",
	Short: "Print the pipeline state of one payment",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		paymentID, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid payment id %q", args[0])
		}

		_, db, err := bootstrap()
		if err != nil {
			return err
		}

		var intent model.PaymentIntent
		if err := db.First(&intent, paymentID).Error; err != nil {
			return fmt.Errorf("failed to load payment %d: %w", paymentID, err)
		}

		fmt.Printf("payment  %d  user=%d  tier=%s  amount_cents=%d\n",
			intent.ID, intent.UserID, intent.Tier, intent.AmountUsdCents)
		fmt.Printf("address  %s (index %d, %s)\n",
			intent.DepositAddress, intent.DerivationIndex, intent.Chain)
		fmt.Printf("status   %s  sweep=%s  retries=%d\n",
			intent.Status, intent.SweepStatus, intent.SweepRetryCount)
		if intent.TxHash != "" {
			fmt.Printf("deposit  tx=%s received=%s overpaid=%s\n",
				intent.TxHash, intent.ReceivedUnits, intent.OverpaymentUnits)
		}
		if intent.SweepTxHash != "" {
			fmt.Printf("sweep    tx=%s\n", intent.SweepTxHash)
		}
		if intent.SweepLastError != "" {
			fmt.Printf("error    %s\n", intent.SweepLastError)
		}
		if intent.AppliedAt != nil {
			fmt.Printf("applied  %s\n", intent.AppliedAt.Format("2006-01-02 15:04:05"))
		}
		return nil
	},
}

func init() {
	paymentCmd.AddCommand(paymentStatusCmd)
	rootCmd.AddCommand(paymentCmd)
}
