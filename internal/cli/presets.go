package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"dicomvol/pkg/transfer"
)

func (a *app) newPresetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "presets",
		Short: "List the available presets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b := a.builder(loggerFromContext(cmd.Context()))
			catalog := b.Catalog()

			var sb strings.Builder
			sb.WriteString(StyleTitle.Render("Window presets") + "\n")
			for _, name := range catalog.Names() {
				w := catalog[name]
				low, high := w.Bounds()
				line := fmt.Sprintf("  %-12s center %7.1f  width %7.1f  ", name, w.Center, w.Width)
				sb.WriteString(StyleValue.Render(line))
				sb.WriteString(StyleDim.Render(fmt.Sprintf("[%g, %g] HU", low, high)) + "\n")
			}

			sb.WriteString("\n" + StyleTitle.Render("Exclusive modes") + "\n")
			sb.WriteString(StyleValue.Render(fmt.Sprintf("  %-12s ", transfer.PresetBoneOnly)))
			sb.WriteString(StyleDim.Render(fmt.Sprintf("bone only, %s variant (also --bone-only)", a.cfg.BoneOnlyVariant())) + "\n")
			sb.WriteString(StyleValue.Render(fmt.Sprintf("  %-12s ", transfer.PresetCinematic)))
			sb.WriteString(StyleDim.Render("translucent soft tissue, opaque bone") + "\n")

			_, err := fmt.Fprint(a.out, sb.String())
			return err
		},
	}
}
