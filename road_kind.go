package roadusage

// DefaultRoadKinds is set of road types which scooters are able to use
var DefaultRoadKinds = []string{
	"living_street",
	"service",
	"track",
	"crossing",
	"cycleway",
	"residential",
	"pedestrian",
	"footway",
	"sidewalk",
	"walkway",
	"park road",
	"cycleway;footway",
	"cycleway; footway",
	"cycleway; footway; footway; footway",
	"cycleway; footway; footway",
	"footway; cycleway",
	"service; cycleway",
	"secondary",
}

// KindFilter allows to filter segments by their road type
type KindFilter struct {
	kinds map[string]struct{}
}

// NewKindFilter returns filter for given kinds. Empty list means that every kind passes
func NewKindFilter(kinds []string) KindFilter {
	filter := KindFilter{
		kinds: make(map[string]struct{}, len(kinds)),
	}
	for _, kind := range kinds {
		filter.kinds[kind] = struct{}{}
	}
	return filter
}

// CheckKind checks if incoming kind is represented in filter
func (filter KindFilter) CheckKind(kind string) bool {
	if len(filter.kinds) == 0 {
		return true
	}
	_, ok := filter.kinds[kind]
	return ok
}
