package cli

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/params"
	"github.com/spf13/cobra"

	"github.com/majorcontext/opensig/internal/annotation"
	"github.com/majorcontext/opensig/internal/hashchain"
	"github.com/majorcontext/opensig/internal/journal"
	"github.com/majorcontext/opensig/internal/log"
	"github.com/majorcontext/opensig/internal/provider"
	"github.com/majorcontext/opensig/internal/signature"
	"github.com/majorcontext/opensig/internal/ui"
	"github.com/majorcontext/opensig/internal/wallet"
)

var (
	signChain      string
	signMessage    string
	signData       string
	signEncrypt    bool
	signNoWait     bool
	signYes        bool
	signMaxFeeGwei uint64
)

var signCmd = &cobra.Command{
	Use:   "sign <file>",
	Short: "Publish a signature for a document",
	Long: `Discover the document's existing signatures, then register the next one
from the configured key. An optional annotation (--message or --data) is
stored with the signature; --encrypt seals it with a key derived from the
document so only holders of the document can read it.

The command waits until the transaction is mined unless --no-wait is given.`,
	Args: cobra.ExactArgs(1),
	RunE: runSign,
}

func init() {
	rootCmd.AddCommand(signCmd)
	signCmd.Flags().StringVar(&signChain, "chain", "", "chain ID to publish on (default from config)")
	signCmd.Flags().StringVarP(&signMessage, "message", "m", "", "text annotation")
	signCmd.Flags().StringVar(&signData, "data", "", "hex annotation")
	signCmd.Flags().BoolVar(&signEncrypt, "encrypt", false, "encrypt the annotation with a key derived from the document")
	signCmd.Flags().BoolVar(&signNoWait, "no-wait", false, "return once the transaction is submitted")
	signCmd.Flags().BoolVarP(&signYes, "yes", "y", false, "do not ask for confirmation")
	signCmd.Flags().Uint64Var(&signMaxFeeGwei, "max-fee-gwei", 0, "refuse wallet-network transactions whose fee exceeds this (0 = no limit)")
	signCmd.MarkFlagsMutuallyExclusive("message", "data")
}

// annotationFromFlags builds the annotation requested on the command line.
func annotationFromFlags(message, data string, encrypt bool) (annotation.Annotation, error) {
	var a annotation.Annotation
	switch {
	case message != "":
		a = annotation.String(message)
	case data != "":
		b, err := hex.DecodeString(strings.TrimPrefix(data, "0x"))
		if err != nil {
			return annotation.Annotation{}, fmt.Errorf("--data: %w", err)
		}
		a = annotation.Bytes(b)
	default:
		a = annotation.None()
	}
	if encrypt {
		if a.IsEmpty() {
			return annotation.Annotation{}, errors.New("--encrypt needs --message or --data")
		}
		a.Encrypted = true
	}
	return a, nil
}

// feeGuard rejects wallet transactions above maxGwei.
func feeGuard(maxGwei uint64) wallet.ConfirmFunc {
	return func(_ context.Context, tx wallet.TxSummary) (bool, error) {
		fee := tx.Fee()
		log.Info("transaction fee estimate", "chain_id", tx.ChainID, "gas", tx.Gas, "fee_wei", fee)
		if maxGwei == 0 {
			return true, nil
		}
		limit := new(big.Int).Mul(new(big.Int).SetUint64(maxGwei), big.NewInt(params.GWei))
		if fee.Cmp(limit) > 0 {
			ui.Warnf("estimated fee %s gwei exceeds --max-fee-gwei %d", new(big.Int).Div(fee, big.NewInt(params.GWei)), maxGwei)
			return false, nil
		}
		return true, nil
	}
}

func runSign(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := annotationFromFlags(signMessage, signData, signEncrypt)
	if err != nil {
		return err
	}
	nc, err := resolveChain(signChain)
	if err != nil {
		return err
	}
	digest, err := hashchain.HashFile(args[0])
	if err != nil {
		return err
	}
	signer, source, err := loadSigner(ctx)
	if err != nil {
		return err
	}
	log.Debug("signer loaded", "address", signer.Address().Hex(), "source", source)

	svc := newService(serviceOptions{Signer: signer, Confirm: feeGuard(signMaxFeeGwei)})
	defer closeService(svc)

	sess, records, err := svc.Verify(ctx, nc.ChainID, digest)
	if err != nil {
		return fmt.Errorf("discovering existing signatures: %w", err)
	}
	if !jsonOut {
		ui.Section(args[0])
		ui.Printf("Network: %s (%s)\n", nc.Name, nc.ChainID)
		ui.Printf("Signer:  %s\n\n", signer.Address().Hex())
		if err := printRecords(records); err != nil {
			return err
		}
		ui.Printf("\n")
	}

	if !signYes {
		ok, err := ui.Confirm(fmt.Sprintf("Publish signature #%d on %s?", sess.HighestIndex()+1, nc.Name))
		if err != nil {
			return err
		}
		if !ok {
			ui.Infof("Signing cancelled.")
			return nil
		}
	}

	pub, err := svc.Sign(ctx, sess, a)
	if err != nil {
		return err
	}
	if pub.Cancelled {
		ui.Infof("Signing cancelled.")
		return nil
	}

	record(ctx, journal.KindPublish, journal.PublishData{
		Document:   args[0],
		Digest:     digest.String(),
		ChainID:    uint64(nc.ChainID),
		Index:      pub.Record.Index,
		Identifier: pub.Record.IdentifierHex(),
		TxHash:     pub.TxHash.Hex(),
		Signer:     pub.Signer.Hex(),
		Annotation: a.Type.String(),
		Encrypted:  a.Encrypted,
	})

	if !jsonOut {
		ui.Printf("%s Published signature #%d\n", ui.OKTag(), pub.Record.Index)
		ui.Printf("  tx: %s\n", pub.TxHash.Hex())
		if pub.ExplorerURL != "" {
			ui.Printf("  %s\n", pub.ExplorerURL)
		}
	}

	if signNoWait {
		pub.Confirmation.Cancel()
		if jsonOut {
			return writeJSON(ui.Stdout(), pub.Record)
		}
		return nil
	}

	if !jsonOut {
		ui.Printf("Waiting for confirmation (block time %s)...\n", nc.BlockTime())
	}
	receipt, waitErr := pub.Confirmation.Wait(ctx)
	if waitErr != nil {
		pub.Confirmation.Cancel()
	}

	conf := journal.ConfirmData{ChainID: uint64(nc.ChainID), TxHash: pub.TxHash.Hex()}
	var reverted *signature.TransactionRevertedError
	switch {
	case waitErr == nil:
		conf.Outcome = journal.OutcomeConfirmed
		conf.Block = receipt.BlockNumber
	case errors.As(waitErr, &reverted):
		conf.Outcome = journal.OutcomeReverted
		conf.Block = reverted.Receipt.BlockNumber
		conf.Error = waitErr.Error()
	default:
		conf.Outcome = journal.OutcomeAbandoned
		conf.Error = waitErr.Error()
	}
	record(context.WithoutCancel(ctx), journal.KindConfirm, conf)

	if waitErr != nil {
		if errors.Is(waitErr, provider.ErrConfirmationTimeout) || errors.Is(waitErr, context.Canceled) {
			ui.Warnf("stopped waiting; the transaction may still be mined: %s", pub.TxHash.Hex())
		}
		return waitErr
	}

	final, err := svc.Reverify(ctx, sess)
	if err != nil {
		log.Warn("reverify after confirmation failed", "error", err)
		final = sess.Records()
	}
	if jsonOut {
		return writeJSON(ui.Stdout(), newestFirst(final))
	}
	ui.Printf("%s Confirmed in block %d\n\n", ui.OKTag(), receipt.BlockNumber)
	return printRecords(final)
}
