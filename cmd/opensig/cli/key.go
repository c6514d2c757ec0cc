package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/majorcontext/opensig/internal/config"
	"github.com/majorcontext/opensig/internal/keystore"
	"github.com/majorcontext/opensig/internal/ui"
	"github.com/majorcontext/opensig/internal/wallet"
)

var (
	keyName  string
	keyForce bool
)

var keyCmd = &cobra.Command{
	Use:   "key",
	Short: "Manage the signing key",
	Long: `Manage the private key used to publish signatures. Keys are kept in the
system keychain, or in ~/.opensig/keys with mode 0600 when no keychain is
available.`,
}

var keyImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Import a hex private key (read from the terminal or stdin)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		input, err := ui.ReadSecret("Private key (hex)")
		if err != nil {
			return err
		}
		raw, err := keystore.DecodeKey(input)
		if err != nil {
			return err
		}
		return storeKey(raw)
	},
}

var keyGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Create a new random signing key",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, raw, err := wallet.GenerateKeySigner()
		if err != nil {
			return err
		}
		return storeKey(raw)
	},
}

func storeKey(raw []byte) error {
	s, err := wallet.NewKeySigner(raw)
	if err != nil {
		return err
	}
	backend, err := keystore.New(config.KeysDir()).Put(keyName, raw, keyForce)
	if errors.Is(err, keystore.ErrExists) {
		return fmt.Errorf("%w (use --force to replace it)", err)
	}
	if err != nil {
		return err
	}
	ui.Printf("%s Stored key %q in %s\n", ui.OKTag(), keyName, backend)
	ui.Printf("  address: %s\n", s.Address().Hex())
	return nil
}

var keyShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the signing address",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, backend, err := keystore.New(config.KeysDir()).Get(keyName)
		if err != nil {
			return err
		}
		s, err := wallet.NewKeySigner(raw)
		if err != nil {
			return err
		}
		if jsonOut {
			return writeJSON(ui.Stdout(), map[string]string{
				"name":    keyName,
				"address": s.Address().Hex(),
				"backend": backend,
			})
		}
		ui.Printf("%s\t%s\t%s\n", keyName, s.Address().Hex(), ui.Dim(backend))
		return nil
	},
}

var keyDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete the signing key",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !keyForce {
			ok, err := ui.Confirm(fmt.Sprintf("Delete key %q? Funds held by it become unreachable without a backup.", keyName))
			if err != nil {
				return err
			}
			if !ok {
				return nil
			}
		}
		if err := keystore.New(config.KeysDir()).Delete(keyName); err != nil {
			return err
		}
		ui.Printf("%s Deleted key %q\n", ui.OKTag(), keyName)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(keyCmd)
	keyCmd.AddCommand(keyImportCmd, keyGenerateCmd, keyShowCmd, keyDeleteCmd)
	keyCmd.PersistentFlags().StringVar(&keyName, "name", keystore.DefaultName, "key name")
	keyCmd.PersistentFlags().BoolVarP(&keyForce, "force", "f", false, "overwrite or delete without asking")
}
