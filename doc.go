/*
Package halftone turns continuous tone images into the ink drop patterns of
inkjet printers.

A Job reads rows from a PixelSource, maps them through the tone tables and
color separation of package colorsep, dithers them with package dither and
hands the resulting bit planes to an emit.Sink. Settings holds the flat key
value configuration of a job.

Images are loaded with Open, which understands the formats of the standard
library and golang.org/x/image as well as netpbm, and applies the EXIF
orientation. OpenFrames returns every frame of an animation as a page.
*/
package halftone

import "fmt"

type HalftoneVersion struct {
	Major, Minor, Patch uint
}

func (v HalftoneVersion) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

var Version = HalftoneVersion{0, 9, 0}
