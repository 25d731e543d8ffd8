package report

import (
	"os"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"

	"github.com/sells-group/pe-score/internal/raster"
)

// WriteNoDataSummary writes the tally distribution of a run as CSV.
func WriteNoDataSummary(path string, tally *raster.Band) error {
	rows := TallyCounts(tally)
	if len(rows) == 0 {
		// csvutil writes nothing for an empty slice; keep the header.
		return eris.Wrap(os.WriteFile(path, []byte("nodata_inputs,cells,fraction\n"), 0o644), "report: write nodata summary")
	}
	data, err := csvutil.Marshal(rows)
	if err != nil {
		return eris.Wrap(err, "report: encode nodata summary")
	}
	return eris.Wrap(os.WriteFile(path, data, 0o644), "report: write nodata summary")
}
