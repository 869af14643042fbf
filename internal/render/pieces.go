package render

import (
	"bytes"
	"embed"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"sync"

	nchess "github.com/corentings/chess/v2"
	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
)

//go:embed assets/pieces/*.svg
var pieceFiles embed.FS

// assetUnits is the drawing size of the bundled piece set.
const assetUnits = 45

type pieceKey struct {
	piece nchess.Piece
	size  int
}

// pieceSet rasterises piece SVGs on demand and keeps every size it produced.
type pieceSet struct {
	mu     sync.RWMutex
	images map[pieceKey]image.Image
}

var pieces = &pieceSet{images: map[pieceKey]image.Image{}}

func renderPieceImage(piece nchess.Piece, size int) (image.Image, error) {
	return pieces.image(piece, size)
}

func (s *pieceSet) image(piece nchess.Piece, size int) (image.Image, error) {
	key := pieceKey{piece: piece, size: size}

	s.mu.RLock()
	img, ok := s.images[key]
	s.mu.RUnlock()
	if ok {
		return img, nil
	}

	name := pieceAssetName(piece)
	data, err := pieceFiles.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("read piece asset %s: %w", name, err)
	}
	img, err = rasterizeSVG(data, size)
	if err != nil {
		return nil, fmt.Errorf("piece %s: %w", name, err)
	}

	s.mu.Lock()
	s.images[key] = img
	s.mu.Unlock()
	return img, nil
}

// rasterizeSVG draws an SVG into a transparent size×size image. A missing or
// zero viewBox falls back to the piece set's drawing units.
func rasterizeSVG(data []byte, size int) (*image.RGBA, error) {
	icon, err := oksvg.ReadIconStream(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse svg: %w", err)
	}
	if icon.ViewBox.W <= 0 {
		icon.ViewBox.W = assetUnits
	}
	if icon.ViewBox.H <= 0 {
		icon.ViewBox.H = assetUnits
	}
	icon.SetTarget(0, 0, float64(size), float64(size))

	img := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.Transparent), image.Point{}, draw.Src)

	scanner := rasterx.NewScannerGV(size, size, img, img.Bounds())
	icon.Draw(rasterx.NewDasher(size, size, scanner), 1.0)
	return img, nil
}

func pieceAssetName(piece nchess.Piece) string {
	prefix := "b"
	if piece.Color() == nchess.White {
		prefix = "w"
	}
	letter := map[nchess.PieceType]string{
		nchess.King:   "K",
		nchess.Queen:  "Q",
		nchess.Rook:   "R",
		nchess.Bishop: "B",
		nchess.Knight: "N",
		nchess.Pawn:   "P",
	}[piece.Type()]
	return fmt.Sprintf("assets/pieces/%s%s.svg", prefix, letter)
}
