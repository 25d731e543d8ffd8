package raster

// Block is a contiguous run of whole rows, the unit of parallel evaluation.
type Block struct {
	Index int `json:"index"`
	Row0  int `json:"row0"`
	Rows  int `json:"rows"`
	Cols  int `json:"cols"`
}

// Offset is the index of the block's first cell in a row-major band.
func (b Block) Offset() int { return b.Row0 * b.Cols }

// Cells is the number of cells in the block.
func (b Block) Cells() int { return b.Rows * b.Cols }

// Blocks splits rows into blocks of at most blockRows rows. A blockRows of
// zero or less yields one block covering the whole grid.
func Blocks(rows, cols, blockRows int) []Block {
	if rows <= 0 {
		return nil
	}
	if blockRows <= 0 || blockRows > rows {
		blockRows = rows
	}
	out := make([]Block, 0, (rows+blockRows-1)/blockRows)
	for r := 0; r < rows; r += blockRows {
		n := blockRows
		if r+n > rows {
			n = rows - r
		}
		out = append(out, Block{Index: len(out), Row0: r, Rows: n, Cols: cols})
	}
	return out
}
