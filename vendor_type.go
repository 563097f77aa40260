package roadusage

type Vendor uint16

const (
	VENDOR_UNKNOWN = Vendor(iota + 1)
	VENDOR_LIME
	VENDOR_LYFT
	VENDOR_LINK
)

func (iotaIdx Vendor) String() string {
	return [...]string{"unknown", "Lime", "Lyft", "Link"}[iotaIdx-1]
}

// CounterName returns name of usage counter for vendor. Empty string for unknown vendor
func (iotaIdx Vendor) CounterName() string {
	return [...]string{"", COUNTER_LIME, COUNTER_LYFT, COUNTER_LINK}[iotaIdx-1]
}

// ParseVendor returns vendor by its tag. Comparison is case-sensitive
func ParseVendor(tag string) Vendor {
	if found, ok := vendorsTypes[tag]; ok {
		return found
	}
	return VENDOR_UNKNOWN
}

var (
	vendorsTypes = map[string]Vendor{
		"Lime": VENDOR_LIME,
		"Lyft": VENDOR_LYFT,
		"Link": VENDOR_LINK,
	}
)
