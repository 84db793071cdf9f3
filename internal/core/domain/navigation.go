package domain

// Rect is a screen bounding box
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width" validate:"gte=0"`
	Height float64 `json:"height" validate:"gte=0"`
}

// Right returns the x coordinate of the right edge
func (r Rect) Right() float64 { return r.X + r.Width }

// Bottom returns the y coordinate of the bottom edge
func (r Rect) Bottom() float64 { return r.Y + r.Height }

// LayoutOracle reports where rendered items are placed.
// Items flow left to right, then top to bottom, in index order.
type LayoutOracle interface {
	Len() int
	BoundingBox(i int) Rect
}

// Rects is a LayoutOracle over precomputed boxes
type Rects []Rect

// Len returns the number of boxes
func (r Rects) Len() int { return len(r) }

// BoundingBox returns the box of item i in flow order
func (r Rects) BoundingBox(i int) Rect { return r[i] }

// MoveUp returns the item above selected in a wrapped flow layout.
// xRef optionally names an item whose horizontal extent replaces the selected
// item's when matching columns.
func MoveUp(layout LayoutOracle, selected int, xRef *int) int {
	return moveVertical(layout, selected, xRef, -1)
}

// MoveDown returns the item below selected in a wrapped flow layout.
func MoveDown(layout LayoutOracle, selected int, xRef *int) int {
	return moveVertical(layout, selected, xRef, 1)
}

func moveVertical(layout LayoutOracle, selected int, xRef *int, step int) int {
	n := layout.Len()
	if n == 0 {
		return 0
	}
	if selected < 0 {
		selected = 0
	}
	if selected >= n {
		selected = n - 1
	}

	current := layout.BoundingBox(selected)
	if xRef != nil && *xRef >= 0 && *xRef < n {
		ref := layout.BoundingBox(*xRef)
		current.X, current.Width = ref.X, ref.Width
	}

	var row Rect
	inRow := false
	rowStart := -1
	best, bestOverlap := -1, 0.0

	for i := selected + step; i >= 0 && i < n; i += step {
		box := layout.BoundingBox(i)

		if !inRow {
			if verticalOverlap(current, box) > 0.5 {
				continue
			}
			inRow, row, rowStart = true, box, i
		} else if verticalOverlap(row, box) <= 0.5 {
			// scanned past the whole row
			if best >= 0 {
				return best
			}
			return i - step
		}

		overlap := horizontalOverlap(current, box)
		if overlap > 0 {
			if overlap < bestOverlap {
				return best
			}
			if overlap > bestOverlap {
				best, bestOverlap = i, overlap
			}
			continue
		}
		if best >= 0 {
			return best
		}
		if passed(current, box, step) {
			if i == rowStart {
				return i
			}
			prev := layout.BoundingBox(i - step)
			if horizontalGap(current, box) < horizontalGap(current, prev) {
				return i
			}
			return i - step
		}
	}

	if best >= 0 {
		return best
	}
	if step < 0 {
		return 0
	}
	return n - 1
}

// verticalOverlap is the share of a's height that b covers
func verticalOverlap(a, b Rect) float64 {
	if a.Height <= 0 {
		if a.Y >= b.Y && a.Y <= b.Bottom() {
			return 1
		}
		return 0
	}
	overlap := min(a.Bottom(), b.Bottom()) - max(a.Y, b.Y)
	if overlap <= 0 {
		return 0
	}
	return overlap / a.Height
}

// horizontalOverlap is the share of a's width that b covers
func horizontalOverlap(a, b Rect) float64 {
	overlap := min(a.Right(), b.Right()) - max(a.X, b.X)
	if overlap <= 0 {
		if a.Width <= 0 && a.X >= b.X && a.X <= b.Right() {
			return 1
		}
		return 0
	}
	if a.Width <= 0 {
		return 1
	}
	return overlap / a.Width
}

func horizontalGap(a, b Rect) float64 {
	if b.Right() <= a.X {
		return a.X - b.Right()
	}
	if b.X >= a.Right() {
		return b.X - a.Right()
	}
	return 0
}

// passed reports whether the scan moved beyond the current column.
// Scanning backwards walks a row right to left, forwards left to right.
func passed(current, box Rect, step int) bool {
	if step < 0 {
		return box.Right() <= current.X
	}
	return box.X >= current.Right()
}
