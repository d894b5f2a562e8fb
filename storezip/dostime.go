package storezip

import "time"

// DOSTimeDate packs t into the MS-DOS time and date fields used by ZIP
// headers. Seconds have 2-second resolution. Years outside 1980..2107 leave
// the year bits of the date field zero.
func DOSTimeDate(t time.Time) (dosTime, dosDate uint16) {
	sec := min(t.Second(), 59)
	dosTime = 0x001F & uint16(sec/2)
	dosTime |= 0x07E0 & (uint16(t.Minute()) << 5)
	dosTime |= 0xF800 & (uint16(t.Hour()) << 11)

	dosDate = 0x001F & uint16(t.Day())
	dosDate |= 0x01E0 & (uint16(t.Month()) << 5)
	if y := t.Year() - 1980; y >= 0 && y < 128 {
		dosDate |= 0xFE00 & (uint16(y) << 9)
	}
	return
}
