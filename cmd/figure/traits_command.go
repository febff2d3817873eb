package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"actionfigure/internal/imagegen"
	"actionfigure/internal/traits"
)

func newTraitsCommand(ctx *commandContext) *cobra.Command {
	var promptOnly bool
	cmd := &cobra.Command{
		Use:   "traits [file]",
		Short: "Parse a trait list and show the generation prompt it produces",
		Long:  "Reads a markdown trait list (\"- Name: Value\" lines) from file, or stdin when file is omitted or \"-\".",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				raw []byte
				err error
			)
			if len(args) == 0 || args[0] == "-" {
				raw, err = io.ReadAll(cmd.InOrStdin())
			} else {
				raw, err = os.ReadFile(args[0])
			}
			if err != nil {
				return fmt.Errorf("read traits: %w", err)
			}
			components, err := ctx.ensure(cmd.Context())
			if err != nil {
				return err
			}

			set := traits.Parse(string(raw), components.Vocabulary)
			prompt := imagegen.BuildPrompt(set)
			out := cmd.OutOrStdout()
			if promptOnly {
				fmt.Fprintln(out, prompt)
				return nil
			}
			s := ctx.styles()
			fmt.Fprintln(out, s.Title.Render("Traits"))
			fmt.Fprint(out, renderTraits(s, set.Entries()))
			fmt.Fprintln(out)
			fmt.Fprintln(out, s.Title.Render("Prompt"))
			fmt.Fprintln(out, prompt)
			return nil
		},
	}
	cmd.Flags().BoolVar(&promptOnly, "prompt-only", false, "Print only the composed prompt")
	return cmd
}
