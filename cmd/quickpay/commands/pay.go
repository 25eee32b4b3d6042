package commands

import (
	"context"
	"crypto"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/spf13/cobra"

	"github.com/alapierre/go-quickpay/quickpay"
	"github.com/alapierre/go-quickpay/quickpay/api"
	"github.com/alapierre/go-quickpay/quickpay/authorize"
	"github.com/alapierre/go-quickpay/quickpay/config"
	"github.com/alapierre/go-quickpay/quickpay/keys"
	"github.com/alapierre/go-quickpay/quickpay/payment"
	"github.com/alapierre/go-quickpay/quickpay/sign"
)

const httpTimeout = 15 * time.Second

// pay <currency> <amount>: create a payment, walk the user through bank
// authorization and wait for the terminal status.
func payCmd() *cobra.Command {
	var (
		iban         string
		scan         string
		name         string
		reference    string
		payerName    string
		payerEmail   string
		pollInterval time.Duration
		pollDeadline time.Duration
		authTimeout  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "pay <currency> <amount>",
		Short: "Send a payment of <amount> minor units (e.g. pence) in <currency>",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return &payment.ValidationError{Field: "amount", Reason: "must be an integer number of minor units"}
			}

			in := payment.Inputs{
				AmountInMinor: amount,
				Currency:      args[0],
				Beneficiary:   name,
				IBAN:          iban,
				Reference:     reference,
			}
			if scan != "" {
				sc, acc, ok := strings.Cut(scan, ",")
				if !ok {
					return &payment.ValidationError{Field: "scan", Reason: `expected "sortcode,accountnumber"`}
				}
				in.SortCode = sc
				in.AccountNumber = acc
			}

			// validate before touching config or the network
			req, err := payment.Build(in)
			if err != nil {
				return err
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			var env quickpay.Environment
			envName := cfg.Environment
			if environment != "" {
				envName = environment
			}
			if err := env.UnmarshalText([]byte(envName)); err != nil {
				return err
			}

			var signer quickpay.AssertionSource
			if cfg.ClientPrivateKey != "" {
				key, err := loadKey(cfg)
				if err != nil {
					return err
				}
				signer, err = sign.New(cfg.ClientID, cfg.ClientKID, cfg.Algorithm(), key)
				if err != nil {
					return err
				}
			}

			tokens := quickpay.NewTokenProvider(
				api.New(env.AuthBaseURL(), httpTimeout),
				signer, cfg.ClientID, cfg.ClientSecret, "payments")

			payments := api.NewPaymentService(api.New(env.PaymentsBaseURL(), httpTimeout))
			authorizer := authorize.New(cfg.RedirectURI, authTimeout)

			opts := quickpay.DefaultFlowOptions()
			opts.PollInterval = pollInterval
			opts.PollDeadline = pollDeadline
			opts.PayerName = payerName
			opts.PayerEmail = payerEmail

			flow := quickpay.NewFlow(tokens, payments, authorizer, cfg.RedirectURI, opts)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()

			result, err := flow.Run(ctx, req)
			return report(cmd, req, result, err)
		},
	}

	cmd.Flags().StringVarP(&iban, "iban", "i", "", "beneficiary IBAN")
	cmd.Flags().StringVarP(&scan, "scan", "s", "", `beneficiary sort code and account number, e.g. "010102,12345678"`)
	cmd.Flags().StringVarP(&name, "name", "n", "", "name of the beneficiary")
	cmd.Flags().StringVarP(&reference, "reference", "r", "", "payment reference")
	cmd.Flags().StringVar(&payerName, "payer-name", "Name", "payer name sent to the provider")
	cmd.Flags().StringVar(&payerEmail, "payer-email", "a@b.com", "payer email sent to the provider")
	cmd.Flags().DurationVar(&pollInterval, "poll-interval", 2*time.Second, "status poll interval")
	cmd.Flags().DurationVar(&pollDeadline, "poll-deadline", 5*time.Minute, "overall wait bound for a terminal status")
	cmd.Flags().DurationVar(&authTimeout, "auth-timeout", 5*time.Minute, "wait bound for the bank redirect")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

// loadKey accepts the key either inline as PEM or as a path to a PEM file.
func loadKey(cfg *config.Config) (crypto.Signer, error) {
	password := []byte(os.Getenv("QUICKPAY_KEY_PASSWORD"))
	if strings.Contains(cfg.ClientPrivateKey, "-----BEGIN") {
		return keys.SignerFromPEM([]byte(cfg.ClientPrivateKey), password)
	}
	return keys.SignerFromFile(cfg.ClientPrivateKey, password)
}

func report(cmd *cobra.Command, req *payment.Request, result *quickpay.Result, err error) error {
	if result != nil && result.State == quickpay.StateExecuted {
		when := ""
		if result.FinishedAt != nil {
			when = " at " + result.FinishedAt.Format(time.RFC3339)
		}
		cmd.Printf("Payment %s: %s%s\n", result.PaymentID, result.Status, when)
		cmd.Printf("Sent %s %s to %s\n", payment.FormatMinor(req.AmountInMinor, req.Currency), req.Currency, req.Beneficiary)
		return nil
	}

	if err != nil {
		if result != nil {
			return errors.Wrapf(err, "payment %s ended %s", result.PaymentID, result.State)
		}
		return err
	}

	// provider-side terminal failure: rejected, failed or cancelled
	return &terminalError{result: result}
}
