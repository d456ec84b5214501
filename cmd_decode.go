package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var (
	decodeFormat string
	decodeSave   bool
)

var decodeCmd = &cobra.Command{
	Use:   "decode <code> | <fragment1> <fragment2>",
	Short: "Decode a canonical code or a pair of QR fragments",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var code string
		var fragments []string
		if len(args) == 1 {
			code = args[0]
		} else {
			fragments = args
		}
		res, err := decodeInput(code, fragments)
		if err != nil {
			return err
		}
		if res.Rejected() {
			if err := writeResult(cmd.OutOrStdout(), decodeFormat, res); err != nil {
				return err
			}
			return eris.Errorf("fragments rejected: %s", res.Resolution.Reason)
		}
		if !decodeSave {
			return writeResult(cmd.OutOrStdout(), decodeFormat, res)
		}

		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()
		saved, err := env.Rec.Record(cmd.Context(), res.Code, "cli", nil)
		if err != nil {
			return err
		}
		return writeResult(cmd.OutOrStdout(), decodeFormat, saved)
	},
}

func init() {
	decodeCmd.Flags().StringVar(&decodeFormat, "format", formatJSON, "output format: json or yaml")
	decodeCmd.Flags().BoolVar(&decodeSave, "save", false, "save the decoded ticket")
	rootCmd.AddCommand(decodeCmd)
}
