package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AshkanYarmoradi/go-herald"
	"github.com/AshkanYarmoradi/go-herald/cli/styles"
	"github.com/AshkanYarmoradi/go-herald/cli/ui"
)

// NewNameCommand creates the name command
func NewNameCommand() *cobra.Command {
	var (
		separator string
		plain     bool
	)

	cmd := &cobra.Command{
		Use:   "name <TypeName>...",
		Short: "Show the event names derived from type names",
		Long: `Show the event name an aggregate command triggers when it delegates to a
child of the given type without naming the event.

Package qualifiers and type parameters are ignored. A type name without
uppercase letters derives no event name.

Examples:
  herald name SendEmailCommand              # -send-email-command
  herald name notify.SendEmail --separator _  # _send_email
  herald name A B C --plain                 # one name per line`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			if plain {
				for _, typeName := range args {
					fmt.Fprintln(out, herald.EventNameFromType(typeName, separator))
				}
				return nil
			}

			table := ui.NewTable("Type", "Event")
			var empty int
			for _, typeName := range args {
				name := herald.EventNameFromType(typeName, separator)
				if name == "" {
					empty++
					name = styles.Muted.Render("(none)")
				}
				table.AddRow(typeName, name)
			}

			fmt.Fprintln(out, table.Render())
			if empty > 0 {
				fmt.Fprintln(out, styles.FormatWarning(fmt.Sprintf("%d type name(s) have no uppercase letters; pass an explicit event name to ExecuteChild", empty)))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&separator, "separator", "s", herald.DefaultEventNameSeparator, "Separator placed before each word")
	cmd.Flags().BoolVar(&plain, "plain", false, "Print one name per line without formatting")

	return cmd
}
