package places

// wire types of the nearby search JSON response

type nearbyResponse struct {
	Status        string     `json:"status"`
	ErrorMessage  string     `json:"error_message,omitempty"`
	NextPageToken string     `json:"next_page_token"`
	Results       []RawPlace `json:"results"`
}

// RawPlace is one provider record before enrichment.
type RawPlace struct {
	PlaceID  string    `json:"place_id"`
	Name     string    `json:"name"`
	Vicinity string    `json:"vicinity"`
	Rating   *float64  `json:"rating,omitempty"`
	Geometry *Geometry `json:"geometry,omitempty"`
	Photos   []Photo   `json:"photos,omitempty"`
}

type Geometry struct {
	Location *LatLng `json:"location,omitempty"`
}

type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type Photo struct {
	PhotoReference string `json:"photo_reference"`
	Width          int    `json:"width"`
	Height         int    `json:"height"`
}

// HasLocation reports whether the record carries geometry.location.
func (p RawPlace) HasLocation() bool {
	return p.Geometry != nil && p.Geometry.Location != nil
}

// FirstPhotoRef returns the first non-empty photo reference.
func (p RawPlace) FirstPhotoRef() (string, bool) {
	for _, ph := range p.Photos {
		if ph.PhotoReference != "" {
			return ph.PhotoReference, true
		}
	}
	return "", false
}

// Page is one provider response after records without a location are dropped.
type Page struct {
	Number        int
	Places        []RawPlace
	Discarded     int
	NextPageToken string
}
