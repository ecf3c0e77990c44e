package cli

import (
	"encoding/json"
	"io"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"dicomvol/pkg/config"
	"dicomvol/pkg/transfer"
)

// writePair writes p to w in the requested format.
func writePair(w io.Writer, p transfer.Pair, cal transfer.Calibration, format string) error {
	switch format {
	case config.FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(p)
	case config.FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(p); err != nil {
			return err
		}
		return enc.Close()
	case config.FormatTable, "":
		return renderPairTable(w, p, cal.ScalarToHU)
	}
	return errors.Errorf("unknown output format %q", format)
}
