package commands

import (
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/TheusHen/idms/idms/identity"
)

func keygenCmd() *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate an identity key",
		RunE: func(cmd *cobra.Command, args []string) error {
			ident, err := identity.Generate(id)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "id:          %s\n", ident.ID)
			fmt.Fprintf(out, "key:         %s\n", hex.EncodeToString(ident.PrivateKey.Seed()))
			fmt.Fprintf(out, "public key:  %s\n", hex.EncodeToString(ident.PublicKey))
			fmt.Fprintf(out, "fingerprint: %s\n", ident.Fingerprint())
			return nil
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "peer id")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}
