package trend

import "time"

// RangeSpec describes one named query window: how far back to request
// and how many records to ask for per fetch. AllPages disables the
// server-side published-ge/le filter and walks the entire buffer.
type RangeSpec struct {
	Name        string
	Lookback    time.Duration
	MaxResults  int
	AllPages    bool
	LabelLayout string
}

// DefaultRangeName is the fallback window for unrecognized range values.
const DefaultRangeName = "1h"

var rangeSpecs = map[string]RangeSpec{
	"1h":  {Name: "1h", Lookback: time.Hour, MaxResults: 20, LabelLayout: "15:04"},
	"4h":  {Name: "4h", Lookback: 4 * time.Hour, MaxResults: 60, LabelLayout: "15:04"},
	"12h": {Name: "12h", Lookback: 12 * time.Hour, MaxResults: 150, LabelLayout: "01/02 15:04"},
	"24h": {Name: "24h", Lookback: 24 * time.Hour, MaxResults: 300, LabelLayout: "01/02 15:04"},
	"7d":  {Name: "7d", Lookback: 7 * 24 * time.Hour, MaxResults: 50000, AllPages: true, LabelLayout: "01/02"},
}

// LookupRange resolves a range name, silently falling back to 1h for
// values outside the supported set.
func LookupRange(name string) RangeSpec {
	if spec, ok := rangeSpecs[name]; ok {
		return spec
	}
	return rangeSpecs[DefaultRangeName]
}

// RangeNames lists the supported windows in display order.
func RangeNames() []string {
	return []string{"1h", "4h", "12h", "24h", "7d"}
}
