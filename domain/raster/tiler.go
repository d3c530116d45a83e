package raster

import (
	"fmt"

	"goveg/domain/core"
)

// Tile splits an image into a row-major grid of equally sized sub-images.
// Partial edge tiles are dropped: centrality values are only comparable
// across tiles of identical shape, so an H x W image tiled at (h, w)
// yields exactly floor(H/h) * floor(W/w) tiles.
func Tile(im *Image, tileRows, tileCols int) ([]SubImage, error) {
	if tileRows <= 0 || tileCols <= 0 {
		return nil, core.NewConfigError("tile size", fmt.Sprintf("%dx%d is not positive", tileRows, tileCols))
	}
	if tileRows > im.Rows() || tileCols > im.Cols() {
		return nil, core.NewConfigError("tile size",
			fmt.Sprintf("%dx%d exceeds image size %dx%d", tileRows, tileCols, im.Rows(), im.Cols()))
	}

	gridRows := im.Rows() / tileRows
	gridCols := im.Cols() / tileCols

	tiles := make([]SubImage, 0, gridRows*gridCols)
	for tr := 0; tr < gridRows; tr++ {
		for tc := 0; tc < gridCols; tc++ {
			tiles = append(tiles, SubImage{
				Index:     tr*gridCols + tc,
				Row:       tr,
				Col:       tc,
				OriginRow: tr * tileRows,
				OriginCol: tc * tileCols,
				rows:      tileRows,
				cols:      tileCols,
				parent:    im,
			})
		}
	}
	return tiles, nil
}
