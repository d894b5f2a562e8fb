package xl

import "github.com/adnsv/srw/xml"

// Font is one entry of the styles part font table. Cell styles select
// between the regular and the bold variant of the default face.
type Font struct {
	Name string
	Size int // points
	Bold bool
}

var fontTable = []Font{
	{Name: "Calibri", Size: 12},
	{Name: "Calibri", Size: 12, Bold: true},
}

func fontID(bold bool) int {
	if bold {
		return 1
	}
	return 0
}

func (f *Font) write(x *xml.Writer) {
	x.OTag("+font")
	if f.Bold {
		x.OTag("b").CTag()
	}
	x.OTag("sz").Attr("val", f.Size).CTag()
	x.OTag("color").Attr("rgb", "FF000000").CTag()
	x.OTag("name").Attr("val", f.Name).CTag()
	x.OTag("family").Attr("val", 2).CTag()
	x.OTag("scheme").Attr("val", "minor").CTag()
	x.CTag()
}
