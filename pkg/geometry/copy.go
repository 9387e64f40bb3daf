package geometry

// CopyTileIn fills one channel of an executor input buffer from a source
// plane. dst is tightly packed (PatchW samples per row, PatchH rows). The
// window starts pad pixels above and left of the tile's interior anchor;
// samples outside the frame are synthesized by edge replication.
func CopyTileIn(dst, src []byte, io IOInfo, t Tile) {
	ss := io.In.SampleSize
	x0 := t.X - io.Pad
	y0 := t.Y - io.Pad
	dstPitch := io.In.PatchW * ss

	// Horizontal split: left replicated columns, interior copy, right
	// replicated columns. Constant across rows.
	left := clampInt(-x0, 0, io.In.PatchW)
	right := clampInt(x0+io.In.PatchW-io.In.Width, 0, io.In.PatchW-left)
	mid := io.In.PatchW - left - right

	for r := 0; r < io.In.PatchH; r++ {
		srcY := clampInt(y0+r, 0, io.In.Height-1)
		srcRow := src[srcY*io.In.Pitch:]
		dstRow := dst[r*dstPitch : (r+1)*dstPitch]

		if mid > 0 {
			off := (x0 + left) * ss
			copy(dstRow[left*ss:(left+mid)*ss], srcRow[off:off+mid*ss])
		}
		for i := 0; i < left; i++ {
			copy(dstRow[i*ss:(i+1)*ss], srcRow[:ss])
		}
		edge := (io.In.Width - 1) * ss
		for i := io.In.PatchW - right; i < io.In.PatchW; i++ {
			copy(dstRow[i*ss:(i+1)*ss], srcRow[edge:edge+ss])
		}
	}
}

// CopyTileOut writes the interior of one channel of an executor output
// buffer into the destination plane, cropping the scaled padding margin. src
// is tightly packed (PatchW*WScale samples per row, PatchH*HScale rows).
func CopyTileOut(dst, src []byte, io IOInfo, t Tile) {
	oss := io.Out.SampleSize
	outPatchW := io.In.PatchW * io.WScale
	srcPitch := outPatchW * oss

	rows := t.H * io.HScale
	rowBytes := t.W * io.WScale * oss
	srcX := io.Pad * io.WScale * oss
	srcY := io.Pad * io.HScale

	for r := 0; r < rows; r++ {
		srcOff := (srcY+r)*srcPitch + srcX
		dstOff := (t.Y*io.HScale+r)*io.Out.Pitch + t.X*io.WScale*oss
		copy(dst[dstOff:dstOff+rowBytes], src[srcOff:srcOff+rowBytes])
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
