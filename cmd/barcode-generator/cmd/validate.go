package cmd

import (
	"encoding/json"
	"fmt"

	"barcode-generator/internal/validator"

	"github.com/spf13/cobra"
)

type validateOutput struct {
	Valid              bool   `json:"valid"`
	Symbology          string `json:"symbology"`
	NormalizedContents string `json:"normalizedContents,omitempty"`
	Note               string `json:"note,omitempty"`
	Code               string `json:"code,omitempty"`
	Error              string `json:"error,omitempty"`
}

func newValidateCommand(a *app) *cobra.Command {
	var asJSON bool

	validateCmd := &cobra.Command{
		Use:   "validate <symbology> <contents>",
		Short: "Check contents against a symbology and print the normalized form",
		Long: `Validate contents for a symbology without rendering anything.

For EAN-13, EAN-8 and UPC-A the check digit is computed and appended; a
supplied check digit is replaced. The command exits non-zero when the
contents are rejected.

Examples:
  barcode-generator validate ean13 880956022307
  barcode-generator validate upca 036000291453 --json`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			symbology, err := validator.ParseSymbology(args[0])
			if err != nil {
				symbology = validator.Symbology(args[0])
			}
			res := validator.Validate(args[1], symbology)

			out := validateOutput{
				Valid:              res.Accepted,
				Symbology:          symbology.String(),
				NormalizedContents: res.NormalizedContents,
				Note:               res.Note,
			}
			if !res.Accepted {
				out.Code = res.Kind.String()
				out.Error = res.Reason
			}

			w := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				if err := enc.Encode(out); err != nil {
					return err
				}
			} else if res.Accepted {
				if res.Note != "" {
					fmt.Fprintf(w, "%s (%s)\n", res.NormalizedContents, res.Note)
				} else {
					fmt.Fprintln(w, res.NormalizedContents)
				}
			}

			return res.Err()
		},
	}

	validateCmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	return validateCmd
}
