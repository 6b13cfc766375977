package video

const (
	DefaultSort = "hot"
	DefaultTime = "week"
)

// Query holds the ranking parameters of a video info request.
type Query struct {
	Sort string `json:"sort" query:"sort"`
	Time string `json:"time" query:"time"`
}

// Normalize returns a copy of q with empty fields replaced by their defaults.
// Values are not validated; any non-empty string is kept as is.
func (q Query) Normalize() Query {
	if q.Sort == "" {
		q.Sort = DefaultSort
	}
	if q.Time == "" {
		q.Time = DefaultTime
	}
	return q
}

// CacheKey identifies a ranked list both in the in-process cache and in the backend store.
type CacheKey string

func (k CacheKey) String() string {
	return string(k)
}

// BuildKey derives the key for q as "sort=<sort>&time=<time>" after defaults are applied.
func BuildKey(q Query) CacheKey {
	n := q.Normalize()
	return CacheKey("sort=" + n.Sort + "&time=" + n.Time)
}
